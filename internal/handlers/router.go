package handlers

import (
	"net/http"
	"strings"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hyunwoo/slidecheck/internal/analysis"
	"github.com/hyunwoo/slidecheck/internal/auth"
	"github.com/hyunwoo/slidecheck/internal/metrics"
	"github.com/hyunwoo/slidecheck/internal/registry"
	"github.com/hyunwoo/slidecheck/internal/rewrite"
	"github.com/hyunwoo/slidecheck/internal/storage"
)

// RouterConfig collects everything the HTTP surface depends on.
// Cache may be nil when Redis is not configured.
type RouterConfig struct {
	Registry       registry.Registry
	Blobs          storage.BlobStore
	Cache          *storage.SessionCache
	Analyzer       analysis.Analyzer
	Rewriter       rewrite.Rewriter
	Tokens         *auth.TokenManager
	AppPassword    string
	MaxUploadBytes int64
	CollabTimeout  time.Duration
	AllowedOrigins string
}

// NewRouter builds the full route table: /health and /metrics open,
// /api/auth open, every other /api route behind the token middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.AppPassword, cfg.Tokens)
	uploadHandler := NewUploadHandler(cfg.Blobs, cfg.Registry, cfg.MaxUploadBytes)
	checkHandler := NewCheckHandler(cfg.Registry, cfg.Blobs, cfg.Cache, cfg.Analyzer, cfg.CollabTimeout)
	correctHandler := NewCorrectHandler(cfg.Registry, cfg.Blobs, cfg.Cache, cfg.Rewriter, cfg.CollabTimeout)
	downloadHandler := NewDownloadHandler(cfg.Registry, cfg.Blobs, cfg.Cache)
	cleanupHandler := NewCleanupHandler(cfg.Registry, cfg.Blobs, cfg.Cache)

	router := mux.NewRouter()
	router.Use(metrics.Middleware)

	// Health check endpoint (no tracing needed)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Authentication issues the token the workflow routes require.
	router.Handle("/api/auth", otelhttp.NewHandler(authHandler, "POST /api/auth")).Methods("POST")

	// Workflow operations with tracing, behind token auth.
	api := router.PathPrefix("/api").Subrouter()
	api.Use(cfg.Tokens.Middleware)
	api.Handle("/upload", otelhttp.NewHandler(uploadHandler, "POST /api/upload")).Methods("POST")
	api.Handle("/check", otelhttp.NewHandler(checkHandler, "POST /api/check")).Methods("POST")
	api.Handle("/correct", otelhttp.NewHandler(correctHandler, "POST /api/correct")).Methods("POST")
	api.Handle("/download/{file_id}", otelhttp.NewHandler(downloadHandler, "GET /api/download/{file_id}")).Methods("GET")
	api.Handle("/cleanup/{file_id}", otelhttp.NewHandler(cleanupHandler, "DELETE /api/cleanup/{file_id}")).Methods("DELETE")

	// The consumer is a browser client.
	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(strings.Split(cfg.AllowedOrigins, ",")),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	return cors(router)
}
