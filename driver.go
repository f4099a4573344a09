package entitycache

import "github.com/goforj/entitycache/entitycore"

// Driver identifies the store backend.
type Driver = entitycore.Driver

const (
	DriverNull   = entitycore.DriverNull
	DriverFile   = entitycore.DriverFile
	DriverMemory = entitycore.DriverMemory
	DriverDynamo = entitycore.DriverDynamo
	DriverSQL    = entitycore.DriverSQL
	DriverRedis  = entitycore.DriverRedis
	DriverNATS   = entitycore.DriverNATS
)
