package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyunwoo/slidecheck/internal/analysis"
	"github.com/hyunwoo/slidecheck/internal/auth"
	"github.com/hyunwoo/slidecheck/internal/config"
	"github.com/hyunwoo/slidecheck/internal/handlers"
	"github.com/hyunwoo/slidecheck/internal/janitor"
	"github.com/hyunwoo/slidecheck/internal/registry"
	"github.com/hyunwoo/slidecheck/internal/rewrite"
	"github.com/hyunwoo/slidecheck/internal/storage"
	"github.com/hyunwoo/slidecheck/internal/tracing"
)

func main() {
	log.Println("Starting slidecheck service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Service: %s, Port: %s", cfg.ServiceName, cfg.ServicePort)

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	// Initialize artifact storage
	var blobs storage.BlobStore
	switch cfg.BlobBackend {
	case "minio":
		log.Println("Connecting to MinIO...")
		minioStore, err := storage.NewMinioStore(
			cfg.MinIOEndpoint,
			cfg.MinIOAccessKey,
			cfg.MinIOSecretKey,
			cfg.MinIOBucketName,
			cfg.MinIOUseSSL,
		)
		if err != nil {
			log.Fatalf("Failed to initialize MinIO store: %v", err)
		}
		blobs = minioStore
		log.Println("MinIO store initialized")
	case "disk":
		diskStore, err := storage.NewDiskStore(cfg.DataDir)
		if err != nil {
			log.Fatalf("Failed to initialize disk store: %v", err)
		}
		blobs = diskStore
		log.Printf("Disk store initialized at %s", cfg.DataDir)
	default:
		log.Fatalf("Unknown blob backend: %s", cfg.BlobBackend)
	}

	// Initialize session registry
	var reg registry.Registry
	switch cfg.RegistryBackend {
	case "mysql":
		log.Println("Connecting to MySQL...")
		mysqlRegistry, err := registry.NewMySQL(cfg.GetDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL registry: %v", err)
		}
		defer mysqlRegistry.Close()
		reg = mysqlRegistry
		log.Println("MySQL registry initialized")
	case "memory":
		reg = registry.NewMemory()
		log.Println("In-memory registry initialized")
	default:
		log.Fatalf("Unknown registry backend: %s", cfg.RegistryBackend)
	}

	// Initialize Redis session cache (optional)
	var cache *storage.SessionCache
	if cfg.RedisEnabled {
		log.Println("Connecting to Redis...")
		cache, err = storage.NewSessionCache(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to initialize Redis cache: %v", err)
		}
		defer cache.Close()
		log.Println("Redis cache initialized")
	}

	// Initialize the correction analyzer
	var analyzer analysis.Analyzer
	switch cfg.Analyzer {
	case "ruleset":
		analyzer = analysis.NewRuleset()
	case "static":
		analyzer = analysis.NewStatic()
	default:
		log.Fatalf("Unknown analyzer: %s", cfg.Analyzer)
	}
	log.Printf("Analyzer: %s", cfg.Analyzer)

	// Token manager for the auth workflow
	tokens := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)

	// Setup HTTP routes
	router := handlers.NewRouter(handlers.RouterConfig{
		Registry:       reg,
		Blobs:          blobs,
		Cache:          cache,
		Analyzer:       analyzer,
		Rewriter:       rewrite.NewPptxRewriter(),
		Tokens:         tokens,
		AppPassword:    cfg.AppPassword,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		CollabTimeout:  cfg.CollabTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// Start the expired-session janitor
	j := janitor.New(reg, blobs, cache, cfg.SessionTTL)
	if err := j.Start(cfg.CleanupSchedule); err != nil {
		log.Fatalf("Failed to start janitor: %v", err)
	}
	defer j.Stop()

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.ServicePort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on port %s", cfg.ServicePort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
