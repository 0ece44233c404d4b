package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const pptxContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// MinioStore keeps artifacts in a MinIO bucket, with tracing.
type MinioStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinioStore initializes the MinIO client and ensures the bucket exists.
func NewMinioStore(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ms := &MinioStore{
		client:     client,
		bucketName: bucketName,
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		log.Printf("Creating bucket: %s", bucketName)
		err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Printf("Bucket %s created successfully", bucketName)
	}

	return ms, nil
}

// Put uploads an artifact with tracing
func (ms *MinioStore) Put(ctx context.Context, key string, data []byte) error {
	ctx, span := tracer.Start(ctx, "minio.put_artifact",
		trace.WithAttributes(
			attribute.String("object_key", key),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	reader := bytes.NewReader(data)
	_, err := ms.client.PutObject(ctx, ms.bucketName, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: pptxContentType,
	})

	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upload artifact: %w", err)
	}

	span.SetAttributes(attribute.Bool("upload_success", true))
	return nil
}

// Get downloads an artifact with tracing
func (ms *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "minio.get_artifact",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	object, err := ms.client.GetObject(ctx, ms.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		// GetObject defers the request; missing keys surface here.
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			span.SetAttributes(attribute.Bool("found", false))
			return nil, ErrBlobNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}

	span.SetAttributes(
		attribute.Int("size_bytes", len(data)),
		attribute.Bool("download_success", true),
	)
	return data, nil
}

// Delete removes an artifact with tracing
func (ms *MinioStore) Delete(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "minio.delete_artifact",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	err := ms.client.RemoveObject(ctx, ms.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete artifact: %w", err)
	}

	return nil
}
