package storage

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore keeps uploaded study material next to the tests generated from it.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
}

// MaterialKey returns a fresh key of the form materials/<uuid>/<basename>.
func MaterialKey(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		base = "upload"
	}
	return "materials/" + uuid.NewString() + "/" + base
}
