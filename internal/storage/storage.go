// Package storage implements the polymorphic Storage Backend over the
// capability set {put, get, exists, delete, list_keys, put_stream,
// get_stream, size}, with local filesystem and S3-compatible variants.
package storage

import (
	"io"
)

// PutResult is the outcome of a Put/PutStream call. On success the caller
// receives the computed hash of the stored bytes, so writes can be audited
// even when expectedSHA256 was not given; on failure the result is empty.
type PutResult struct {
	Key       string
	SHA256    string
	SizeBytes int64
}

// GetResult is the outcome of a Get call.
type GetResult struct {
	Data      []byte
	SHA256    string
	SizeBytes int64
}

// Backend is the uniform interface every storage variant implements. Keys
// are slash-delimited paths relative to a configured root. Implementations
// must reject any key that, after normalization, escapes the configured
// root (errs.ErrInvalidKey), must refuse to overwrite an existing key
// (errs.ErrKeyExists), and must verify expectedSHA256 when supplied
// (errs.ErrIntegrityMismatch), leaving no partial bytes persisted on
// mismatch.
type Backend interface {
	Put(key string, data []byte, expectedSHA256 string) (PutResult, error)
	PutStream(key string, r io.Reader, expectedSHA256 string) (PutResult, error)
	Get(key string) (GetResult, error)
	GetStream(key string) (io.ReadCloser, error)
	Exists(key string) (bool, error)
	Delete(key string) (bool, error)
	ListKeys(prefix string) ([]string, error)
	Size(key string) (int64, bool, error)
}
