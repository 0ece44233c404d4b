package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DiskStore keeps artifacts as plain files under a base directory.
// Keys are generated internally (uuid + extension), never taken from
// client input.
type DiskStore struct {
	baseDir string
}

// NewDiskStore creates the base directory if needed.
func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &DiskStore{baseDir: baseDir}, nil
}

// Put writes an artifact file with tracing
func (ds *DiskStore) Put(ctx context.Context, key string, data []byte) error {
	_, span := tracer.Start(ctx, "disk.put_artifact",
		trace.WithAttributes(
			attribute.String("object_key", key),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	if err := os.WriteFile(ds.path(key), data, 0o644); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	span.SetAttributes(attribute.Bool("upload_success", true))
	return nil
}

// Get reads an artifact file with tracing
func (ds *DiskStore) Get(ctx context.Context, key string) ([]byte, error) {
	_, span := tracer.Start(ctx, "disk.get_artifact",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	data, err := os.ReadFile(ds.path(key))
	if os.IsNotExist(err) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, ErrBlobNotFound
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	span.SetAttributes(attribute.Int("size_bytes", len(data)))
	return data, nil
}

// Delete removes an artifact file with tracing. Deleting a missing key
// is not an error.
func (ds *DiskStore) Delete(ctx context.Context, key string) error {
	_, span := tracer.Start(ctx, "disk.delete_artifact",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	if err := os.Remove(ds.path(key)); err != nil && !os.IsNotExist(err) {
		span.RecordError(err)
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

func (ds *DiskStore) path(key string) string {
	return filepath.Join(ds.baseDir, filepath.Base(key))
}
