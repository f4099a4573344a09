package entitycache

import "context"

type nullBackend struct{}

func newNullBackend() Backend { return nullBackend{} }

func (nullBackend) Driver() Driver { return DriverNull }

func (nullBackend) Read(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (nullBackend) Write(context.Context, string, []byte) error { return nil }
