package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyunwoo/slidecheck/internal/apierr"
	"github.com/hyunwoo/slidecheck/internal/registry"
	"github.com/hyunwoo/slidecheck/internal/storage"
)

// CleanupHandler deletes a session and its artifact. Idempotent: an id
// that is already gone is reported as cleaned.
type CleanupHandler struct {
	registry registry.Registry
	blobs    storage.BlobStore
	cache    *storage.SessionCache
}

// NewCleanupHandler creates a new cleanup handler
func NewCleanupHandler(reg registry.Registry, blobs storage.BlobStore, cache *storage.SessionCache) *CleanupHandler {
	return &CleanupHandler{
		registry: reg,
		blobs:    blobs,
		cache:    cache,
	}
}

// CleanupResponse is the response for a cleanup request
type CleanupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ServeHTTP handles DELETE /api/cleanup/{file_id}
func (ch *CleanupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "cleanup_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	fileID := mux.Vars(r)["file_id"]
	if fileID == "" {
		apierr.ValidationError(w, "file_id is required")
		return
	}
	span.SetAttributes(attribute.String("file_id", fileID))

	session, err := ch.registry.Get(ctx, fileID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(CleanupResponse{
				Success: true,
				Message: "file already cleaned up",
			})
			return
		}
		span.RecordError(err)
		apierr.InternalError(w, "failed to load session")
		return
	}

	if err := ch.blobs.Delete(ctx, session.StorageKey); err != nil {
		log.Printf("Warning: failed to delete artifact %s: %v", session.StorageKey, err)
	}

	if err := ch.registry.Delete(ctx, fileID); err != nil && !errors.Is(err, registry.ErrNotFound) {
		span.RecordError(err)
		apierr.InternalError(w, "failed to delete session")
		return
	}
	invalidateCache(ctx, ch.cache, fileID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CleanupResponse{
		Success: true,
		Message: "file cleaned up",
	})

	log.Printf("Session cleaned up: %s", fileID)
}
