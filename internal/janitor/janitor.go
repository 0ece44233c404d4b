// Package janitor evicts expired sessions in the background. Sessions
// have no client-driven lifecycle beyond explicit cleanup, so a
// scheduled sweep bounds storage growth.
package janitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hyunwoo/slidecheck/internal/registry"
	"github.com/hyunwoo/slidecheck/internal/storage"
)

// sweepTimeout bounds one full sweep.
const sweepTimeout = time.Minute

// Janitor deletes sessions older than the configured TTL on a cron
// schedule.
type Janitor struct {
	registry registry.Registry
	blobs    storage.BlobStore
	cache    *storage.SessionCache
	ttl      time.Duration
	cron     *cron.Cron
}

// New creates a janitor. cache may be nil.
func New(reg registry.Registry, blobs storage.BlobStore, cache *storage.SessionCache, ttl time.Duration) *Janitor {
	return &Janitor{
		registry: reg,
		blobs:    blobs,
		cache:    cache,
		ttl:      ttl,
	}
}

// Start begins sweeping on the given cron schedule (e.g. "@every 10m").
func (j *Janitor) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := j.SweepOnce(ctx); err != nil {
			log.Printf("Janitor sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	c.Start()
	j.cron = c
	log.Printf("Janitor started: schedule %s, session TTL %s", schedule, j.ttl)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// SweepOnce deletes every session older than the TTL and returns how
// many were evicted.
func (j *Janitor) SweepOnce(ctx context.Context) (int, error) {
	sessions, err := j.registry.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	cutoff := time.Now().Add(-j.ttl)
	evicted := 0
	for _, session := range sessions {
		if !session.UploadedAt.Before(cutoff) {
			continue
		}

		if err := j.blobs.Delete(ctx, session.StorageKey); err != nil {
			log.Printf("Warning: failed to delete expired artifact %s: %v", session.StorageKey, err)
		}
		if err := j.registry.Delete(ctx, session.ID); err != nil && err != registry.ErrNotFound {
			log.Printf("Warning: failed to delete expired session %s: %v", session.ID, err)
			continue
		}
		if j.cache != nil {
			if err := j.cache.Invalidate(ctx, session.ID); err != nil {
				log.Printf("Warning: failed to invalidate expired session %s: %v", session.ID, err)
			}
		}
		evicted++
	}

	if evicted > 0 {
		log.Printf("Janitor evicted %d expired session(s)", evicted)
	}
	return evicted, nil
}
