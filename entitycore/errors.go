package entitycore

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyKey rejects entities and lookups without a key.
	ErrEmptyKey = errors.New("entitycache: entity key is empty")
	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("entitycache: storage failure")
	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("entitycache: network failure")
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("entitycache: entity not found")
	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("entitycache: decode failure")
)

// StorageError is a local persistence failure. It is always returned to the caller.
type StorageError struct {
	Op     string
	Key    string
	Driver Driver
	Err    error
}

// Error implements error.
func (e *StorageError) Error() string {
	return fmt.Sprintf("entitycache: %s %s %q: %v", e.Driver, e.Op, e.Key, e.Err)
}

// Unwrap returns the backend failure.
func (e *StorageError) Unwrap() error { return e.Err }

// Is reports target == ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NetworkError is a transport or upstream failure while fetching key.
type NetworkError struct {
	Key string
	Err error
}

// Error implements error.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("entitycache: fetch %q: %v", e.Key, e.Err)
}

// Unwrap returns the transport or status failure.
func (e *NetworkError) Unwrap() error { return e.Err }

// Is reports target == ErrNetwork.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// NotFoundError reports that the source has no entity for Key.
type NotFoundError struct {
	Key string
}

// Error implements error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entitycache: %q not found at source", e.Key)
}

// Is reports target == ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DecodeError reports a malformed source payload for Key.
type DecodeError struct {
	Key string
	Err error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("entitycache: decode %q: %v", e.Key, e.Err)
}

// Unwrap returns the parse failure.
func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports target == ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
