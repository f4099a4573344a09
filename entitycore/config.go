package entitycore

// BaseConfig contains shared, backend-agnostic store configuration.
type BaseConfig struct {
	Prefix         string
	Compression    CompressionCodec
	MaxRecordBytes int
	EncryptionKey  []byte
}

// CompressionCodec represents a record compression algorithm.
type CompressionCodec string

const (
	CompressionNone CompressionCodec = "none"
	CompressionGzip CompressionCodec = "gzip"
)
