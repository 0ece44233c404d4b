package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyunwoo/slidecheck/internal/apierr"
	"github.com/hyunwoo/slidecheck/internal/models"
	"github.com/hyunwoo/slidecheck/internal/registry"
	"github.com/hyunwoo/slidecheck/internal/storage"
)

// UploadHandler validates and stores an incoming presentation, creating
// a new session record. Nothing is persisted until validation passes.
type UploadHandler struct {
	blobs    storage.BlobStore
	registry registry.Registry
	maxBytes int64
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(blobs storage.BlobStore, reg registry.Registry, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		blobs:    blobs,
		registry: reg,
		maxBytes: maxBytes,
	}
}

// UploadResponse is the response for a successful upload
type UploadResponse struct {
	FileID    string `json:"file_id"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

// ServeHTTP handles POST /api/upload (multipart field "file")
func (uh *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "upload_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	// Slack covers the multipart framing around the payload itself.
	r.Body = http.MaxBytesReader(w, r.Body, uh.maxBytes+64*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierr.FileTooLarge(w, fmt.Sprintf("file exceeds the %d MB limit", uh.maxBytes/(1024*1024)))
			return
		}
		apierr.ValidationError(w, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	filename := header.Filename
	span.SetAttributes(attribute.String("file_name", filename))

	if !strings.HasSuffix(strings.ToLower(filename), ".pptx") {
		apierr.ValidationError(w, "only .pptx files are supported")
		return
	}

	if header.Size > uh.maxBytes {
		apierr.FileTooLarge(w, fmt.Sprintf("file exceeds the %d MB limit", uh.maxBytes/(1024*1024)))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, uh.maxBytes+1))
	if err != nil {
		span.RecordError(err)
		apierr.InternalError(w, "failed to read uploaded file")
		return
	}
	if int64(len(data)) > uh.maxBytes {
		apierr.FileTooLarge(w, fmt.Sprintf("file exceeds the %d MB limit", uh.maxBytes/(1024*1024)))
		return
	}

	// Generate session ID
	fileID := uuid.New().String()
	span.SetAttributes(
		attribute.String("file_id", fileID),
		attribute.Int("size_bytes", len(data)),
	)

	log.Printf("Storing upload: %s (ID: %s, %d bytes)", filename, fileID, len(data))

	storageKey := fileID + filepath.Ext(filename)
	if err := uh.storeArtifact(ctx, storageKey, data); err != nil {
		span.RecordError(err)
		apierr.InternalError(w, "failed to store file")
		return
	}

	session := &models.FileSession{
		ID:           fileID,
		OriginalName: filename,
		StorageKey:   storageKey,
		SizeBytes:    int64(len(data)),
		Checksum:     storage.Checksum(data),
		UploadedAt:   time.Now(),
		IsDerived:    false,
	}

	if err := uh.registry.Put(ctx, session); err != nil {
		span.RecordError(err)
		// Keep storage consistent with the registry on failure.
		if delErr := uh.blobs.Delete(ctx, storageKey); delErr != nil {
			log.Printf("Warning: failed to remove orphaned artifact %s: %v", storageKey, delErr)
		}
		apierr.InternalError(w, "failed to register file")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(UploadResponse{
		FileID:    fileID,
		Filename:  filename,
		SizeBytes: int64(len(data)),
	})

	log.Printf("File upload completed: %s (ID: %s)", filename, fileID)
}

func (uh *UploadHandler) storeArtifact(ctx context.Context, key string, data []byte) error {
	ctx, span := tracer.Start(ctx, "store_artifact")
	defer span.End()

	return uh.blobs.Put(ctx, key, data)
}
