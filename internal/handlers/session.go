package handlers

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"

	"github.com/hyunwoo/slidecheck/internal/models"
	"github.com/hyunwoo/slidecheck/internal/registry"
	"github.com/hyunwoo/slidecheck/internal/storage"
)

var tracer = otel.Tracer("slidecheck-handlers")

// lookupSession reads a session cache-aside: Redis first, registry on
// a miss, refilling the cache for next time. cache may be nil when
// Redis is not configured.
func lookupSession(ctx context.Context, reg registry.Registry, cache *storage.SessionCache, sessionID string) (*models.FileSession, error) {
	if cache != nil {
		ctx, cacheSpan := tracer.Start(ctx, "cache_lookup")
		session, err := cache.GetSession(ctx, sessionID)
		cacheSpan.End()

		if err != nil {
			// A degraded cache should not fail the request.
			log.Printf("Warning: session cache lookup failed: %v", err)
		} else if session != nil {
			log.Printf("Cache HIT for session: %s", sessionID)
			return session, nil
		} else {
			log.Printf("Cache MISS for session: %s", sessionID)
		}
	}

	ctx, dbSpan := tracer.Start(ctx, "registry_lookup")
	defer dbSpan.End()

	session, err := reg.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.SetSession(ctx, session); err != nil {
			log.Printf("Warning: failed to update session cache: %v", err)
		}
	}

	return session, nil
}

// invalidateCache drops a session from the cache after a registry
// write. Safe to call with a nil cache.
func invalidateCache(ctx context.Context, cache *storage.SessionCache, sessionID string) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, sessionID); err != nil {
		log.Printf("Warning: failed to invalidate session cache: %v", err)
	}
}
