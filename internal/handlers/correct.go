package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyunwoo/slidecheck/internal/apierr"
	"github.com/hyunwoo/slidecheck/internal/models"
	"github.com/hyunwoo/slidecheck/internal/registry"
	"github.com/hyunwoo/slidecheck/internal/rewrite"
	"github.com/hyunwoo/slidecheck/internal/storage"
)

// CorrectHandler applies a selected subset of correction candidates to
// a session's artifact, producing a new derived session. The parent
// artifact is never mutated.
type CorrectHandler struct {
	registry registry.Registry
	blobs    storage.BlobStore
	cache    *storage.SessionCache
	rewriter rewrite.Rewriter
	timeout  time.Duration
}

// NewCorrectHandler creates a new correct handler
func NewCorrectHandler(reg registry.Registry, blobs storage.BlobStore, cache *storage.SessionCache, rewriter rewrite.Rewriter, timeout time.Duration) *CorrectHandler {
	return &CorrectHandler{
		registry: reg,
		blobs:    blobs,
		cache:    cache,
		rewriter: rewriter,
		timeout:  timeout,
	}
}

// CorrectRequest is the POST /api/correct request body
type CorrectRequest struct {
	FileID          string `json:"file_id"`
	SelectedIndices []int  `json:"selected_indices"`
}

// CorrectResponse is the response for a successful correction
type CorrectResponse struct {
	Success        bool   `json:"success"`
	NewFileID      string `json:"new_file_id"`
	Filename       string `json:"filename"`
	AppliedCount   int    `json:"applied_count"`
	FailedCount    int    `json:"failed_count"`
	TotalRequested int    `json:"total_requested"`
}

// ServeHTTP handles POST /api/correct
func (ch *CorrectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "apply_corrections",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var req CorrectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.ValidationError(w, "invalid request body")
		return
	}
	if req.FileID == "" {
		apierr.ValidationError(w, "file_id is required")
		return
	}
	span.SetAttributes(
		attribute.String("file_id", req.FileID),
		attribute.Int("selected_count", len(req.SelectedIndices)),
	)

	session, err := lookupSession(ctx, ch.registry, ch.cache, req.FileID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			apierr.NotFound(w, "file not found")
			return
		}
		span.RecordError(err)
		apierr.InternalError(w, "failed to load session")
		return
	}

	if session.CheckResult == nil {
		apierr.PreconditionFailed(w, "no check result for this file; run check first")
		return
	}

	// Out-of-range indices are ignored rather than rejected.
	var selected []models.CorrectionCandidate
	for _, idx := range req.SelectedIndices {
		if idx >= 0 && idx < len(session.CheckResult.Errors) {
			selected = append(selected, session.CheckResult.Errors[idx])
		}
	}

	artifact, err := ch.blobs.Get(ctx, session.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			log.Printf("Artifact missing from storage for session %s", req.FileID)
			apierr.NotFound(w, "file not found")
			return
		}
		span.RecordError(err)
		apierr.InternalError(w, "failed to load file")
		return
	}

	log.Printf("Applying %d corrections to session %s", len(selected), req.FileID)

	corrected, applied, failed, err := ch.applyCorrections(ctx, artifact, selected)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			apierr.InternalError(w, "correction rewrite timed out")
			return
		}
		apierr.InternalError(w, "failed to apply corrections")
		return
	}
	span.SetAttributes(
		attribute.Int("applied_count", applied),
		attribute.Int("failed_count", failed),
	)

	newFileID := uuid.New().String()
	filename := derivedFilename(session.OriginalName)
	storageKey := newFileID + ".pptx"

	if err := ch.blobs.Put(ctx, storageKey, corrected); err != nil {
		span.RecordError(err)
		apierr.InternalError(w, "failed to store corrected file")
		return
	}

	derived := &models.FileSession{
		ID:           newFileID,
		OriginalName: filename,
		StorageKey:   storageKey,
		SizeBytes:    int64(len(corrected)),
		Checksum:     storage.Checksum(corrected),
		UploadedAt:   time.Now(),
		IsDerived:    true,
		ParentID:     session.ID,
	}

	if err := ch.registry.Put(ctx, derived); err != nil {
		span.RecordError(err)
		if delErr := ch.blobs.Delete(ctx, storageKey); delErr != nil {
			log.Printf("Warning: failed to remove orphaned artifact %s: %v", storageKey, delErr)
		}
		apierr.InternalError(w, "failed to register corrected file")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CorrectResponse{
		Success:        true,
		NewFileID:      newFileID,
		Filename:       filename,
		AppliedCount:   applied,
		FailedCount:    failed,
		TotalRequested: len(selected),
	})

	log.Printf("Corrections applied for session %s: %d applied, %d failed (new ID: %s)",
		req.FileID, applied, failed, newFileID)
}

// applyCorrections runs the rewriter under the configured timeout.
func (ch *CorrectHandler) applyCorrections(ctx context.Context, artifact []byte, selected []models.CorrectionCandidate) ([]byte, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, ch.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "run_rewriter",
		trace.WithAttributes(
			attribute.Int("selected_count", len(selected)),
		),
	)
	defer span.End()

	return ch.rewriter.Rewrite(ctx, artifact, selected)
}

// derivedFilename builds the display name for a corrected artifact:
// "<base>_corrected_<yyyymmdd_hhmmss>.pptx".
func derivedFilename(originalName string) string {
	base := strings.TrimSuffix(originalName, ".pptx")
	base = strings.TrimSuffix(base, ".PPTX")
	timestamp := time.Now().Format("20060102_150405")
	return base + "_corrected_" + timestamp + ".pptx"
}
