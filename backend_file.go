package entitycache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	createTempFile = os.CreateTemp
	renameFile     = os.Rename
)

var fileRecordMagic = []byte("ECR1")

var errCorruptFileRecord = errors.New("entitycache: file record missing header")

// fileBackend stores one file per key. Writes go to a temp file in the same
// directory and are renamed into place, so readers see old or new bytes, never both.
type fileBackend struct {
	dir string
}

func newFileBackend(dir string) (Backend, error) {
	if dir == "" {
		dir = defaultFileDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create file store dir: %w", err)
	}
	return &fileBackend{dir: dir}, nil
}

func (b *fileBackend) Driver() Driver { return DriverFile }

func (b *fileBackend) Read(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(data) < len(fileRecordMagic) || !bytes.Equal(data[:len(fileRecordMagic)], fileRecordMagic) {
		return nil, false, errCorruptFileRecord
	}
	return data[len(fileRecordMagic):], true, nil
}

func (b *fileBackend) Write(_ context.Context, key string, body []byte) error {
	tmp, err := createTempFile(b.dir, "entity-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(fileRecordMagic); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := renameFile(tmpPath, b.path(key)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (b *fileBackend) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:])+".entity")
}
