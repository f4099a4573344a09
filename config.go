package entitycache

import (
	"os"
	"path/filepath"

	"github.com/goforj/entitycache/entitycore"
)

const (
	defaultStorePrefix  = "entity"
	defaultSQLTable     = "entities"
	defaultDynamoTable  = "entities"
	defaultDynamoRegion = "us-east-1"
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "entitycache")
}

// StoreConfig controls how a store is constructed.
type StoreConfig struct {
	entitycore.BaseConfig

	Driver Driver

	// AllowOutOfOrderWrites disables the refresh-timestamp guard on Put so the
	// last completed write always wins.
	AllowOutOfOrderWrites bool

	// FileDir controls where the file driver keeps records.
	FileDir string

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// NATSKeyValue is required when DriverNATS is used.
	NATSKeyValue NATSKeyValue

	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// DynamoClient is built from region/endpoint when nil.
	DynamoClient   DynamoAPI
	DynamoEndpoint string
	DynamoRegion   string
	DynamoTable    string
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.Prefix == "" {
		c.Prefix = defaultStorePrefix
	}
	if c.Compression == "" {
		c.Compression = entitycore.CompressionNone
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = defaultDynamoRegion
	}
	return c
}
