package entitytest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goforj/entitycache/entitycore"
)

// Options configures shared store contract checks.
type Options struct {
	// CaseName is used to namespace keys. Defaults to t.Name().
	CaseName string
	// NullSemantics enables relaxed expectations for the null store.
	NullSemantics bool
	// AllowOutOfOrder expects older refresh stamps to overwrite newer ones.
	AllowOutOfOrder bool
	// Wait bounds how long the harness waits for a subscription snapshot.
	Wait time.Duration
}

// Store is the contract required by RunStoreContract.
type Store = entitycore.Store

// RunStoreContract runs a backend-agnostic store contract suite.
func RunStoreContract(t *testing.T, store Store, opts Options) {
	t.Helper()

	caseName := opts.CaseName
	if caseName == "" {
		caseName = t.Name()
	}
	wait := opts.Wait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	ctx := context.Background()
	key := func(s string) string {
		return sanitize(caseName) + ":" + s
	}
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Missing key.
	if _, ok, err := store.Get(ctx, key("missing")); err != nil || ok {
		t.Fatalf("expected miss for unknown key; ok=%v err=%v", ok, err)
	}

	// Empty key.
	if _, err := store.Put(ctx, entitycore.Entity{}); !errors.Is(err, entitycore.ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}

	// Put/Get round-trip.
	alpha := entitycore.Entity{
		Key:    key("alpha"),
		Fields: map[string]string{"login": "octocat", "name": "The Octocat"},
	}.Stamped(t0)
	applied, err := store.Put(ctx, alpha)
	if err != nil || !applied {
		t.Fatalf("put failed: applied=%v err=%v", applied, err)
	}
	got, ok, err := store.Get(ctx, alpha.Key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if opts.NullSemantics {
		if ok {
			t.Fatalf("expected miss for null semantics")
		}
		runSubscribeNull(t, store, key("sub"), wait)
		return
	}
	if !ok {
		t.Fatalf("expected hit after put")
	}
	assertEntity(t, got, alpha)

	// Returned entities are copies.
	got.Fields["name"] = "mutated"
	again, _, err := store.Get(ctx, alpha.Key)
	if err != nil || again.Field("name") != "The Octocat" {
		t.Fatalf("expected stored value unchanged, got %q err=%v", again.Field("name"), err)
	}

	// Put replaces the whole record.
	replacement := entitycore.Entity{
		Key:    alpha.Key,
		Fields: map[string]string{"login": "octocat"},
	}.Stamped(t0.Add(time.Second))
	if _, err := store.Put(ctx, replacement); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	got, _, err = store.Get(ctx, alpha.Key)
	if err != nil {
		t.Fatalf("get after replace failed: %v", err)
	}
	if _, present := got.Fields["name"]; present {
		t.Fatalf("expected full replace to drop name, got %v", got.Fields)
	}

	// Older refresh stamps.
	older := entitycore.Entity{
		Key:    alpha.Key,
		Fields: map[string]string{"login": "stale"},
	}.Stamped(t0.Add(-time.Minute))
	applied, err = store.Put(ctx, older)
	if err != nil {
		t.Fatalf("out-of-order put failed: %v", err)
	}
	got, _, _ = store.Get(ctx, alpha.Key)
	if opts.AllowOutOfOrder {
		if !applied || got.Field("login") != "stale" {
			t.Fatalf("expected older write to apply; applied=%v login=%q", applied, got.Field("login"))
		}
	} else if applied || got.Field("login") != "octocat" {
		t.Fatalf("expected older write rejected; applied=%v login=%q", applied, got.Field("login"))
	}

	// Unstamped writes always apply.
	if applied, err := store.Put(ctx, entitycore.Entity{Key: key("plain"), Fields: map[string]string{"a": "1"}}); err != nil || !applied {
		t.Fatalf("unstamped put failed: applied=%v err=%v", applied, err)
	}
	if got, ok, err := store.Get(ctx, key("plain")); err != nil || !ok || got.LastRefreshedAt != nil {
		t.Fatalf("unexpected unstamped record: %+v ok=%v err=%v", got, ok, err)
	}

	runSubscribe(t, store, key("sub"), t0, wait)
	runConcurrentKeys(t, store, key, t0)
	runSameKeyAtomicity(t, store, key("atomic"), t0)
}

func runSubscribe(t *testing.T, store Store, key string, t0 time.Time, wait time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := entitycore.Entity{Key: key, Fields: map[string]string{"v": "1"}}.Stamped(t0)
	if _, err := store.Put(ctx, first); err != nil {
		t.Fatalf("put before subscribe failed: %v", err)
	}
	sub, err := store.Subscribe(ctx, key)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if sub.Key() != key {
		t.Fatalf("subscription key = %q, want %q", sub.Key(), key)
	}
	assertEntity(t, receive(t, sub, wait), first)

	second := entitycore.Entity{Key: key, Fields: map[string]string{"v": "2"}}.Stamped(t0.Add(time.Second))
	if _, err := store.Put(ctx, second); err != nil {
		t.Fatalf("put after subscribe failed: %v", err)
	}
	assertEntity(t, receive(t, sub, wait), second)

	sub.Close()
	assertClosed(t, sub, wait)

	// Closing one subscription leaves stored data alone.
	if got, ok, err := store.Get(ctx, key); err != nil || !ok || got.Field("v") != "2" {
		t.Fatalf("expected record intact after close; got %+v ok=%v err=%v", got, ok, err)
	}

	// A missing key emits nothing until the first put.
	emptyKey := key + ":empty"
	sub, err = store.Subscribe(ctx, emptyKey)
	if err != nil {
		t.Fatalf("subscribe missing failed: %v", err)
	}
	select {
	case e := <-sub.C():
		t.Fatalf("expected no snapshot for missing key, got %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
	created := entitycore.Entity{Key: emptyKey, Fields: map[string]string{"v": "new"}}.Stamped(t0)
	if _, err := store.Put(ctx, created); err != nil {
		t.Fatalf("put missing failed: %v", err)
	}
	assertEntity(t, receive(t, sub, wait), created)

	// Cancelling the subscribe context ends the stream.
	cancel()
	assertClosed(t, sub, wait)
}

func runSubscribeNull(t *testing.T, store Store, key string, wait time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := store.Subscribe(ctx, key)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	cancel()
	assertClosed(t, sub, wait)
}

func runConcurrentKeys(t *testing.T, store Store, key func(string) string, t0 time.Time) {
	t.Helper()
	ctx := context.Background()
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := entitycore.Entity{
				Key:    key(fmt.Sprintf("concurrent-%d", i)),
				Fields: map[string]string{"i": fmt.Sprint(i)},
			}.Stamped(t0)
			if _, err := store.Put(ctx, e); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent put failed: %v", err)
	}
	for i := 0; i < writers; i++ {
		got, ok, err := store.Get(ctx, key(fmt.Sprintf("concurrent-%d", i)))
		if err != nil || !ok || got.Field("i") != fmt.Sprint(i) {
			t.Fatalf("concurrent key %d: got %+v ok=%v err=%v", i, got, ok, err)
		}
	}
}

// runSameKeyAtomicity races writers of complete field sets against readers on
// one key. Every read must be exactly one of the written sets.
func runSameKeyAtomicity(t *testing.T, store Store, key string, t0 time.Time) {
	t.Helper()
	ctx := context.Background()
	const (
		writers = 8
		rounds  = 10
		readers = 4
	)
	fieldSet := func(w, r int) map[string]string {
		tag := fmt.Sprintf("%d-%d", w, r)
		return map[string]string{"writer": tag, "a": tag, "b": tag, "c": tag}
	}

	var (
		writersWG sync.WaitGroup
		readersWG sync.WaitGroup
		done      = make(chan struct{})
		errs      = make(chan error, writers+readers)
	)
	for r := 0; r < readers; r++ {
		readersWG.Add(1)
		go func() {
			defer readersWG.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				got, ok, err := store.Get(ctx, key)
				if err != nil {
					errs <- fmt.Errorf("get: %w", err)
					return
				}
				if ok {
					if err := checkWholeSet(got); err != nil {
						errs <- err
						return
					}
				}
			}
		}()
	}
	for w := 0; w < writers; w++ {
		writersWG.Add(1)
		go func(w int) {
			defer writersWG.Done()
			for r := 0; r < rounds; r++ {
				e := entitycore.Entity{Key: key, Fields: fieldSet(w, r)}.Stamped(t0)
				if _, err := store.Put(ctx, e); err != nil {
					errs <- fmt.Errorf("put: %w", err)
					return
				}
			}
		}(w)
	}
	writersWG.Wait()
	close(done)
	readersWG.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("same-key race: %v", err)
	}

	got, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("final get: ok=%v err=%v", ok, err)
	}
	if err := checkWholeSet(got); err != nil {
		t.Fatalf("final record: %v", err)
	}
}

func checkWholeSet(e entitycore.Entity) error {
	tag := e.Field("writer")
	if len(e.Fields) != 4 || tag == "" {
		return fmt.Errorf("partial record %v", e.Fields)
	}
	for _, name := range []string{"a", "b", "c"} {
		if e.Fields[name] != tag {
			return fmt.Errorf("mixed record %v", e.Fields)
		}
	}
	return nil
}

func receive(t *testing.T, sub entitycore.Subscription, wait time.Duration) entitycore.Entity {
	t.Helper()
	select {
	case e, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscription closed before snapshot")
		}
		return e
	case <-time.After(wait):
		t.Fatalf("no snapshot within %s", wait)
	}
	return entitycore.Entity{}
}

func assertClosed(t *testing.T, sub entitycore.Subscription, wait time.Duration) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case _, ok := <-sub.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("subscription still open after %s", wait)
		}
	}
}

func assertEntity(t *testing.T, got, want entitycore.Entity) {
	t.Helper()
	if got.Key != want.Key {
		t.Fatalf("key = %q, want %q", got.Key, want.Key)
	}
	if len(got.Fields) != len(want.Fields) {
		t.Fatalf("fields = %v, want %v", got.Fields, want.Fields)
	}
	for k, v := range want.Fields {
		if got.Fields[k] != v {
			t.Fatalf("field %q = %q, want %q", k, got.Fields[k], v)
		}
	}
	switch {
	case want.LastRefreshedAt == nil && got.LastRefreshedAt != nil:
		t.Fatalf("expected nil refresh stamp, got %v", *got.LastRefreshedAt)
	case want.LastRefreshedAt != nil && (got.LastRefreshedAt == nil || !got.LastRefreshedAt.Equal(*want.LastRefreshedAt)):
		t.Fatalf("refresh stamp = %v, want %v", got.LastRefreshedAt, *want.LastRefreshedAt)
	}
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
