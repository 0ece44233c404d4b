package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyunwoo/slidecheck/internal/models"
)

func newSession(id string) *models.FileSession {
	return &models.FileSession{
		ID:           id,
		OriginalName: "slides.pptx",
		StorageKey:   id + ".pptx",
		SizeBytes:    1024,
		UploadedAt:   time.Now(),
	}
}

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()

	require.NoError(t, reg.Put(ctx, newSession("a")))

	got, err := reg.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, "slides.pptx", got.OriginalName)
}

func TestMemoryGetNotFound(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()
	require.NoError(t, reg.Put(ctx, newSession("a")))

	first, err := reg.Get(ctx, "a")
	require.NoError(t, err)
	first.OriginalName = "mutated.pptx"

	second, err := reg.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "slides.pptx", second.OriginalName)
}

func TestMemoryUpdateAttachesReport(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()
	require.NoError(t, reg.Put(ctx, newSession("a")))

	report := &models.CorrectionReport{SessionID: "a", TotalErrors: 1,
		Errors: []models.CorrectionCandidate{{SlideNumber: 1, Original: "teh", Corrected: "the"}}}

	updated, err := reg.Update(ctx, "a", func(s *models.FileSession) {
		s.CheckResult = report
	})
	require.NoError(t, err)
	require.NotNil(t, updated.CheckResult)
	assert.Equal(t, 1, updated.CheckResult.TotalErrors)

	got, err := reg.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got.CheckResult)
	assert.Equal(t, "teh", got.CheckResult.Errors[0].Original)
}

func TestMemoryUpdateNotFound(t *testing.T) {
	_, err := NewMemory().Update(context.Background(), "missing", func(s *models.FileSession) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()
	require.NoError(t, reg.Put(ctx, newSession("a")))

	require.NoError(t, reg.Delete(ctx, "a"))

	_, err := reg.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, reg.Delete(ctx, "a"), ErrNotFound)
}

func TestMemoryList(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()

	sessions, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	require.NoError(t, reg.Put(ctx, newSession("a")))
	require.NoError(t, reg.Put(ctx, newSession("b")))

	sessions, err = reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i)
			_ = reg.Put(ctx, newSession(id))
			_, _ = reg.Get(ctx, id)
			_, _ = reg.Update(ctx, id, func(s *models.FileSession) { s.SizeBytes++ })
			_, _ = reg.List(ctx)
		}(i)
	}
	wg.Wait()

	sessions, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 50)
}
