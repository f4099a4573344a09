package entitycache

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/nats-io/nats.go"
)

// NATSKeyValue captures the subset of nats.KeyValue used by the store.
type NATSKeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
}

var errNATSKeyValueUnavailable = errors.New("nats store key-value unavailable")

type natsBackend struct {
	kv     NATSKeyValue
	prefix string
}

func newNATSBackend(kv NATSKeyValue, prefix string) Backend {
	if prefix == "" {
		prefix = defaultStorePrefix
	}
	return &natsBackend{kv: kv, prefix: prefix}
}

func (b *natsBackend) Driver() Driver { return DriverNATS }

func (b *natsBackend) Read(_ context.Context, key string) ([]byte, bool, error) {
	if b.kv == nil {
		return nil, false, errNATSKeyValueUnavailable
	}
	entry, err := b.kv.Get(b.natsKey(key))
	if isNATSMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if entry.Operation() == nats.KeyValueDelete || entry.Operation() == nats.KeyValuePurge {
		return nil, false, nil
	}
	return cloneBytes(entry.Value()), true, nil
}

func (b *natsBackend) Write(_ context.Context, key string, body []byte) error {
	if b.kv == nil {
		return errNATSKeyValueUnavailable
	}
	_, err := b.kv.Put(b.natsKey(key), cloneBytes(body))
	return err
}

// natsKey encodes both parts so arbitrary keys stay within the KV key alphabet.
func (b *natsBackend) natsKey(key string) string {
	return "p." + encodeNATSKeyPart(b.prefix) + ".k." + encodeNATSKeyPart(key)
}

func isNATSMiss(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}

func encodeNATSKeyPart(part string) string {
	if part == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(part))
}
