package entitycache

import "context"

// Backend persists encoded entity records as opaque bytes, one record per key.
// Write must replace the whole record so a concurrent Read never sees a partial value.
type Backend interface {
	Driver() Driver
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, body []byte) error
}

// errorBackend is used when a driver fails to initialize; it keeps the driver
// identity while surfacing the construction error on every call.
type errorBackend struct {
	driver Driver
	err    error
}

func (e *errorBackend) Driver() Driver { return e.driver }

func (e *errorBackend) Read(context.Context, string) ([]byte, bool, error) {
	return nil, false, e.err
}

func (e *errorBackend) Write(context.Context, string, []byte) error { return e.err }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
