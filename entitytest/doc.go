// Package entitytest provides reusable contract tests for entitycore.Store implementations.
//
// Example pattern:
//
//	func TestRedisStoreContract(t *testing.T) {
//		client := newTestRedisClient(t)
//		store := entitycache.NewRedisStore(context.Background(), client, entitycache.WithPrefix("test"))
//		if err := store.Ready(context.Background()); err != nil {
//			t.Fatalf("redis store: %v", err)
//		}
//		entitytest.RunStoreContract(t, store, entitytest.Options{CaseName: t.Name()})
//	}
package entitytest
