package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyunwoo/slidecheck/internal/apierr"
	"github.com/hyunwoo/slidecheck/internal/registry"
	"github.com/hyunwoo/slidecheck/internal/storage"
)

const pptxContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// DownloadHandler streams a session's stored artifact back to the
// caller. Read-only.
type DownloadHandler struct {
	registry registry.Registry
	blobs    storage.BlobStore
	cache    *storage.SessionCache
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(reg registry.Registry, blobs storage.BlobStore, cache *storage.SessionCache) *DownloadHandler {
	return &DownloadHandler{
		registry: reg,
		blobs:    blobs,
		cache:    cache,
	}
}

// ServeHTTP handles GET /api/download/{file_id}
func (dh *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "download_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	fileID := mux.Vars(r)["file_id"]
	if fileID == "" {
		apierr.ValidationError(w, "file_id is required")
		return
	}
	span.SetAttributes(attribute.String("file_id", fileID))
	log.Printf("Downloading file: %s", fileID)

	session, err := lookupSession(ctx, dh.registry, dh.cache, fileID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			// Unknown session id: one of the two NotFound causes.
			log.Printf("Unknown session id: %s", fileID)
			apierr.NotFound(w, "file not found")
			return
		}
		span.RecordError(err)
		apierr.InternalError(w, "failed to load session")
		return
	}

	data, err := dh.blobs.Get(ctx, session.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			// Session exists but the artifact is gone: the other cause.
			log.Printf("Artifact missing from storage for session %s (key %s)", fileID, session.StorageKey)
			apierr.NotFound(w, "file not found")
			return
		}
		span.RecordError(err)
		apierr.InternalError(w, "failed to read file")
		return
	}

	if session.Checksum != "" && !storage.VerifyChecksum(data, session.Checksum) {
		log.Printf("Checksum mismatch for session %s", fileID)
		span.SetAttributes(attribute.Bool("checksum_ok", false))
		apierr.InternalError(w, "stored file failed integrity check")
		return
	}

	span.SetAttributes(
		attribute.String("file_name", session.OriginalName),
		attribute.Int("size_bytes", len(data)),
	)

	w.Header().Set("Content-Type", pptxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", session.OriginalName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)

	log.Printf("Download completed: %s (ID: %s)", session.OriginalName, fileID)
}
