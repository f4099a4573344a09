// Command entitycache prints a cached entity immediately and then every
// refreshed snapshot until the wait elapses.
//
//	entitycache -config entitycache.yaml -wait 5s octocat
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goforj/entitycache"
	"github.com/goforj/entitycache/config"
	"github.com/goforj/entitycache/logger"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "entitycache:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("entitycache", flag.ContinueOnError)
	configPath := fs.String("config", "entitycache.yaml", "path to config file")
	wait := fs.Duration("wait", 5*time.Second, "how long to watch for refreshed snapshots")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: entitycache [-config file] [-wait 5s] <key>")
	}
	key := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	source, err := entitycache.NewHTTPSource(entitycache.HTTPSourceConfig{
		BaseURL: cfg.Source.BaseURL,
		Token:   cfg.Source.Token,
	})
	if err != nil {
		return err
	}

	exec := newExecutor(log, cfg.Refresh.Workers)
	defer exec.Close()

	opts := append(cfg.Refresh.RepositoryOptions(),
		entitycache.WithExecutor(exec),
		entitycache.WithLogger(log),
		entitycache.WithObserver(entitycache.ObserverFunc(func(_ context.Context, ev entitycache.RefreshEvent) {
			log.Info("refresh finished",
				zap.String("key", ev.Key),
				zap.Stringer("outcome", ev.Outcome),
				zap.Duration("duration", ev.Duration),
				zap.String("driver", string(ev.Driver)),
			)
		})),
	)
	repo := entitycache.NewRepository(store, source, opts...)
	defer repo.Close()

	watchCtx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()
	return watch(watchCtx, repo, key, out)
}

// watch prints each snapshot of key as one JSON line until ctx ends.
func watch(ctx context.Context, repo entitycache.ReadAPI, key string, out io.Writer) error {
	sub, err := repo.GetEntity(ctx, key)
	if err != nil {
		return err
	}
	defer sub.Close()

	enc := json.NewEncoder(out)
	for {
		select {
		case e, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := enc.Encode(e); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func newExecutor(log logger.Logger, workers int) entitycache.Executor {
	if workers > 0 {
		return entitycache.NewQueueExecutor(log, workers)
	}
	return entitycache.NewGoExecutor(log)
}

// openStore builds the configured store, dialing redis or NATS when needed.
func openStore(ctx context.Context, cfg config.StoreConfig) (*entitycache.EntityStore, func(), error) {
	opts, err := cfg.StoreOptions()
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch entitycache.Driver(cfg.Driver) {
	case entitycache.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password(),
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		opts = append(opts, entitycache.WithRedisClient(client))
	case entitycache.DriverNATS:
		kv, nc, err := openNATSKeyValue(cfg.NATS)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, nc.Close)
		opts = append(opts, entitycache.WithNATSKeyValue(kv))
	}

	store := entitycache.NewStoreWith(ctx, entitycache.Driver(cfg.Driver), opts...)
	closers = append(closers, func() { _ = store.Close() })
	if err := store.Ready(ctx); err != nil {
		closeAll()
		return nil, nil, err
	}
	return store, closeAll, nil
}

func openNATSKeyValue(cfg config.NATSConfig) (nats.KeyValue, *nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.KeyValue(cfg.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: cfg.Bucket})
	}
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("open bucket %q: %w", cfg.Bucket, err)
	}
	return kv, nc, nil
}
