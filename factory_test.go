package entitycache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestNewStoreDefaultsToMemory(t *testing.T) {
	store := NewStore(context.Background(), StoreConfig{})
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %q, want memory", store.Driver())
	}
	if err := store.Ready(context.Background()); err != nil {
		t.Fatalf("expected ready memory store, got %v", err)
	}
}

func TestNewStoreWithDrivers(t *testing.T) {
	ctx := context.Background()
	cases := map[Driver]*EntityStore{
		DriverMemory: NewMemoryStore(ctx),
		DriverNull:   NewNullStore(ctx),
		DriverFile:   NewFileStore(ctx, t.TempDir()),
		DriverRedis:  NewRedisStore(ctx, newStubRedisClient()),
		DriverNATS:   NewNATSStore(ctx, newStubNATSKeyValue("b")),
		DriverDynamo: NewDynamoStore(ctx, newDynStub()),
		DriverSQL:    NewSQLStore(ctx, "sqlite", "file:"+filepath.Join(t.TempDir(), "f.db"), ""),
	}
	for want, store := range cases {
		if store.Driver() != want {
			t.Fatalf("driver = %q, want %q", store.Driver(), want)
		}
		if err := store.Ready(ctx); err != nil {
			t.Fatalf("%s not ready: %v", want, err)
		}
		_ = store.Close()
	}
}

func TestNewStoreConstructionFailureYieldsErrorBackend(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(ctx, "sqlite", "", "entities")
	if store.Driver() != DriverSQL {
		t.Fatalf("expected driver identity preserved, got %q", store.Driver())
	}
	err := store.Ready(ctx)
	if !errors.Is(err, ErrStorage) || !errors.Is(err, errSQLConfig) {
		t.Fatalf("expected init StorageError, got %v", err)
	}
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, errSQLConfig) {
		t.Fatalf("expected construction error on get, got %v", err)
	}
	if _, err := store.Put(ctx, Entity{Key: "k"}); !errors.Is(err, errSQLConfig) {
		t.Fatalf("expected construction error on put, got %v", err)
	}
	if _, err := store.Subscribe(ctx, "k"); !errors.Is(err, errSQLConfig) {
		t.Fatalf("expected construction error on subscribe, got %v", err)
	}
}

func TestNewStoreBadEncryptionKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx, WithEncryptionKey([]byte("short")))
	if err := store.Ready(ctx); !errors.Is(err, ErrEncryptionKey) {
		t.Fatalf("expected encryption key error, got %v", err)
	}
	if _, err := store.Put(ctx, Entity{Key: "k"}); !errors.Is(err, ErrEncryptionKey) {
		t.Fatalf("expected put to fail with key error, got %v", err)
	}
}

func TestStoreOptionsApply(t *testing.T) {
	cfg := StoreConfig{Driver: DriverDynamo}
	for _, opt := range []StoreOption{
		WithPrefix("users"),
		WithDynamoEndpoint("http://localhost:8000"),
		WithDynamoRegion("eu-west-1"),
		WithDynamoTable("people"),
		WithCompression(CompressionGzip),
		WithMaxRecordBytes(1024),
		WithOutOfOrderWrites(true),
	} {
		cfg = opt(cfg)
	}
	cfg = cfg.withDefaults()
	if cfg.Prefix != "users" || cfg.DynamoEndpoint != "http://localhost:8000" || cfg.DynamoRegion != "eu-west-1" || cfg.DynamoTable != "people" {
		t.Fatalf("unexpected dynamo config: %+v", cfg)
	}
	if cfg.Compression != CompressionGzip || cfg.MaxRecordBytes != 1024 || !cfg.AllowOutOfOrderWrites {
		t.Fatalf("unexpected codec config: %+v", cfg)
	}

	defaults := StoreConfig{}.withDefaults()
	if defaults.Prefix != defaultStorePrefix || defaults.SQLTable != defaultSQLTable || defaults.DynamoRegion != defaultDynamoRegion {
		t.Fatalf("unexpected defaults: %+v", defaults)
	}
}
