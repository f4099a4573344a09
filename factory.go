package entitycache

import "context"

// NewStore returns an entity store for the requested driver.
// Caller is responsible for providing any driver-specific dependencies.
// A driver that fails to initialize still yields a store; every call on it
// returns the construction error as a *StorageError, and Ready reports it.
// @group Constructors
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := entitycache.NewStore(ctx, entitycache.StoreConfig{
//		Driver: entitycache.DriverMemory,
//	})
//	fmt.Println(store.Driver()) // memory
func NewStore(ctx context.Context, cfg StoreConfig) *EntityStore {
	cfg = cfg.withDefaults()
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		backend = &errorBackend{driver: cfg.Driver, err: err}
	}
	store, err := newEntityStore(backend, cfg)
	if err != nil {
		plain := cfg
		plain.Compression = CompressionNone
		plain.EncryptionKey = nil
		store, _ = newEntityStore(&errorBackend{driver: cfg.Driver, err: err}, plain)
	}
	return store
}

func newBackend(ctx context.Context, cfg StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case DriverNull:
		return newNullBackend(), nil
	case DriverFile:
		return newFileBackend(cfg.FileDir)
	case DriverRedis:
		return newRedisBackend(cfg.RedisClient, cfg.Prefix), nil
	case DriverNATS:
		return newNATSBackend(cfg.NATSKeyValue, cfg.Prefix), nil
	case DriverSQL:
		return newSQLBackend(ctx, cfg)
	case DriverDynamo:
		return newDynamoBackend(ctx, cfg)
	default:
		return newMemoryBackend(), nil
	}
}

// Ready reports a driver construction failure, or nil when the store is usable.
func (s *EntityStore) Ready(context.Context) error {
	if eb, ok := s.backend.(*errorBackend); ok {
		return storageError("init", "", eb.driver, eb.err)
	}
	return nil
}

// NewStoreWith builds a store using a driver and a set of functional options.
// Required data (e.g., Redis client) must be provided via options when needed.
// @group Constructors
//
// Example: redis store (options)
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := entitycache.NewStoreWith(ctx, entitycache.DriverRedis,
//		entitycache.WithRedisClient(redisClient),
//		entitycache.WithPrefix("users"),
//	)
//	fmt.Println(store.Driver()) // redis
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) *EntityStore {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process store.
// @group Constructors
func NewMemoryStore(ctx context.Context, opts ...StoreOption) *EntityStore {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewNullStore returns a store that discards writes and never hits.
// @group Constructors
func NewNullStore(ctx context.Context, opts ...StoreOption) *EntityStore {
	return NewStoreWith(ctx, DriverNull, opts...)
}

// NewFileStore is a convenience for a filesystem-backed store.
// @group Constructors
//
// Example: file helper
//
//	store := entitycache.NewFileStore(ctx, "/var/lib/entitycache")
//	fmt.Println(store.Driver()) // file
func NewFileStore(ctx context.Context, dir string, opts ...StoreOption) *EntityStore {
	return NewStoreWith(ctx, DriverFile, append([]StoreOption{WithFileDir(dir)}, opts...)...)
}

// NewRedisStore is a convenience for a redis-backed store. Redis client is required.
// @group Constructors
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) *EntityStore {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewNATSStore is a convenience for a JetStream key-value backed store.
// @group Constructors
//
// Example: nats helper
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	js, _ := nc.JetStream()
//	kv, _ := js.CreateKeyValue(&nats.KeyValueConfig{Bucket: "entities"})
//	store := entitycache.NewNATSStore(ctx, kv)
//	fmt.Println(store.Driver()) // nats
func NewNATSStore(ctx context.Context, kv NATSKeyValue, opts ...StoreOption) *EntityStore {
	return NewStoreWith(ctx, DriverNATS, append([]StoreOption{WithNATSKeyValue(kv)}, opts...)...)
}

// NewSQLStore is a convenience for a database/sql backed store.
// Supported driver names are sqlite, pgx (or postgres) and mysql.
// @group Constructors
func NewSQLStore(ctx context.Context, driverName, dsn, table string, opts ...StoreOption) *EntityStore {
	return NewStoreWith(ctx, DriverSQL, append([]StoreOption{WithSQL(driverName, dsn, table)}, opts...)...)
}

// NewDynamoStore is a convenience for a DynamoDB-backed store. A nil client is
// built from the region and endpoint options.
// @group Constructors
func NewDynamoStore(ctx context.Context, client DynamoAPI, opts ...StoreOption) *EntityStore {
	return NewStoreWith(ctx, DriverDynamo, append([]StoreOption{WithDynamoClient(client)}, opts...)...)
}
