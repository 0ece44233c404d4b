package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyunwoo/slidecheck/internal/analysis"
	"github.com/hyunwoo/slidecheck/internal/apierr"
	"github.com/hyunwoo/slidecheck/internal/models"
	"github.com/hyunwoo/slidecheck/internal/registry"
	"github.com/hyunwoo/slidecheck/internal/storage"
)

// CheckHandler runs the correction analyzer over a session's artifact
// and attaches the resulting report to the session. Safe to call
// repeatedly; each call recomputes and the new report replaces any
// prior one.
type CheckHandler struct {
	registry registry.Registry
	blobs    storage.BlobStore
	cache    *storage.SessionCache
	analyzer analysis.Analyzer
	timeout  time.Duration
}

// NewCheckHandler creates a new check handler
func NewCheckHandler(reg registry.Registry, blobs storage.BlobStore, cache *storage.SessionCache, analyzer analysis.Analyzer, timeout time.Duration) *CheckHandler {
	return &CheckHandler{
		registry: reg,
		blobs:    blobs,
		cache:    cache,
		analyzer: analyzer,
		timeout:  timeout,
	}
}

// ServeHTTP handles POST /api/check (form field "file_id")
func (ch *CheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "check_spelling",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	fileID := r.FormValue("file_id")
	if fileID == "" {
		apierr.ValidationError(w, "file_id is required")
		return
	}
	span.SetAttributes(attribute.String("file_id", fileID))

	session, err := lookupSession(ctx, ch.registry, ch.cache, fileID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			apierr.NotFound(w, "file not found")
			return
		}
		span.RecordError(err)
		apierr.InternalError(w, "failed to load session")
		return
	}

	artifact, err := ch.blobs.Get(ctx, session.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			log.Printf("Artifact missing from storage for session %s", fileID)
			apierr.NotFound(w, "file not found")
			return
		}
		span.RecordError(err)
		apierr.InternalError(w, "failed to load file")
		return
	}

	log.Printf("Running spelling analysis for session %s (%d bytes)", fileID, len(artifact))

	start := time.Now()
	candidates, err := ch.analyze(ctx, artifact)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			apierr.InternalError(w, "spelling analysis timed out")
			return
		}
		apierr.InternalError(w, "spelling analysis failed")
		return
	}

	report := &models.CorrectionReport{
		SessionID:             fileID,
		TotalErrors:           len(candidates),
		ProcessingTimeSeconds: time.Since(start).Seconds(),
		Errors:                candidates,
	}
	span.SetAttributes(attribute.Int("total_errors", report.TotalErrors))

	if _, err := ch.registry.Update(ctx, fileID, func(s *models.FileSession) {
		s.CheckResult = report
	}); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			// Session was cleaned up while the analyzer ran.
			apierr.NotFound(w, "file not found")
			return
		}
		span.RecordError(err)
		apierr.InternalError(w, "failed to attach check result")
		return
	}
	invalidateCache(ctx, ch.cache, fileID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)

	log.Printf("Spelling check completed for session %s: %d errors in %.2fs",
		fileID, report.TotalErrors, report.ProcessingTimeSeconds)
}

// analyze runs the analyzer under the configured timeout.
func (ch *CheckHandler) analyze(ctx context.Context, artifact []byte) ([]models.CorrectionCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, ch.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "run_analyzer",
		trace.WithAttributes(
			attribute.Int("artifact_bytes", len(artifact)),
		),
	)
	defer span.End()

	return ch.analyzer.Analyze(ctx, artifact)
}
