package entitycache

import "github.com/goforj/entitycache/entitycore"

type (
	Entity       = entitycore.Entity
	Store        = entitycore.Store
	Subscription = entitycore.Subscription
	Source       = entitycore.Source
	SourceFunc   = entitycore.SourceFunc

	StorageError  = entitycore.StorageError
	NetworkError  = entitycore.NetworkError
	NotFoundError = entitycore.NotFoundError
	DecodeError   = entitycore.DecodeError
)

var (
	ErrEmptyKey = entitycore.ErrEmptyKey
	ErrStorage  = entitycore.ErrStorage
	ErrNetwork  = entitycore.ErrNetwork
	ErrNotFound = entitycore.ErrNotFound
	ErrDecode   = entitycore.ErrDecode
)

func storageError(op, key string, driver Driver, err error) error {
	if err == nil {
		return nil
	}
	return &entitycore.StorageError{Op: op, Key: key, Driver: driver, Err: err}
}
