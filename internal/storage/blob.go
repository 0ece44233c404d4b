package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("slidecheck-storage")

// ErrBlobNotFound is returned when a key has no stored artifact.
var ErrBlobNotFound = errors.New("artifact not found in storage")

// BlobStore holds artifact bytes by key. Backed by MinIO in production
// and the local disk in development.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Checksum computes the SHA256 hex digest of an artifact. Recorded on
// upload and verified on download.
func Checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// VerifyChecksum reports whether data matches the expected digest.
func VerifyChecksum(data []byte, expected string) bool {
	return Checksum(data) == expected
}
