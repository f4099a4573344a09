package entitycache

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"

	"github.com/goforj/entitycache/entitycore"
)

// CompressionCodec represents a record compression algorithm.
type CompressionCodec = entitycore.CompressionCodec

const (
	CompressionNone = entitycore.CompressionNone
	CompressionGzip = entitycore.CompressionGzip
)

var (
	compressMagic = []byte("CMP1")

	ErrRecordTooLarge     = errors.New("entitycache: record exceeds max size")
	ErrUnsupportedCodec   = errors.New("entitycache: unsupported compression codec")
	ErrCorruptCompression = errors.New("entitycache: corrupt compressed record")
)

func compressRecord(codec CompressionCodec, max int, body []byte) ([]byte, error) {
	if max > 0 && len(body) > max {
		return nil, ErrRecordTooLarge
	}
	switch codec {
	case CompressionNone, "":
		return body, nil
	case CompressionGzip:
		var buf bytes.Buffer
		buf.Write(compressMagic)
		_ = buf.WriteByte('g')
		zw, _ := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
		if _, err := zw.Write(body); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, ErrUnsupportedCodec
	}
}

// decompressRecord passes through bodies written without compression.
func decompressRecord(in []byte) ([]byte, error) {
	if len(in) < len(compressMagic)+1 || !bytes.Equal(in[:len(compressMagic)], compressMagic) {
		return in, nil
	}
	if in[len(compressMagic)] != 'g' {
		return nil, ErrUnsupportedCodec
	}
	gr, err := gzip.NewReader(bytes.NewReader(in[len(compressMagic)+1:]))
	if err != nil {
		return nil, ErrCorruptCompression
	}
	defer gr.Close()
	out, err := io.ReadAll(gr)
	if err != nil {
		return nil, ErrCorruptCompression
	}
	return out, nil
}
