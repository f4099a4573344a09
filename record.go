package entitycache

import (
	"encoding/json"
	"fmt"
)

// recordCodec turns an Entity into the bytes a Backend stores:
// JSON, then optional gzip, then optional AES-GCM.
type recordCodec struct {
	compression CompressionCodec
	maxBytes    int
	sealer      *sealer
}

func newRecordCodec(cfg StoreConfig) (recordCodec, error) {
	switch cfg.Compression {
	case CompressionNone, CompressionGzip, "":
	default:
		return recordCodec{}, fmt.Errorf("%w: %q", ErrUnsupportedCodec, cfg.Compression)
	}
	s, err := newSealer(cfg.EncryptionKey)
	if err != nil {
		return recordCodec{}, err
	}
	return recordCodec{compression: cfg.Compression, maxBytes: cfg.MaxRecordBytes, sealer: s}, nil
}

func (c recordCodec) encode(e Entity) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	body, err = compressRecord(c.compression, c.maxBytes, body)
	if err != nil {
		return nil, err
	}
	if c.sealer == nil {
		return body, nil
	}
	return c.sealer.seal(e.Key, body)
}

func (c recordCodec) decode(key string, body []byte) (Entity, error) {
	var err error
	if c.sealer != nil {
		if body, err = c.sealer.open(key, body); err != nil {
			return Entity{}, err
		}
	}
	if body, err = decompressRecord(body); err != nil {
		return Entity{}, err
	}
	var e Entity
	if err := json.Unmarshal(body, &e); err != nil {
		return Entity{}, fmt.Errorf("decode record: %w", err)
	}
	if e.Key == "" {
		e.Key = key
	}
	return e, nil
}
