package store

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"novytek/api/models"
)

type failingStore struct {
	*MemoryStore
	calls int
}

func (f *failingStore) InsertVisit(context.Context, models.Visit) (string, error) {
	f.calls++
	return "", errors.New("backend down")
}

func TestBreakerStoreOpensAfterFailures(t *testing.T) {
	backend := &failingStore{MemoryStore: NewMemoryStore()}
	cfg := DefaultBreakerConfig("visits")
	s := NewBreakerStore(backend, cfg, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < int(cfg.MinRequests); i++ {
		_, err := s.InsertVisit(ctx, models.Visit{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, s.State())

	_, err := s.InsertVisit(ctx, models.Visit{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int(cfg.MinRequests), backend.calls, "open breaker must not reach the backend")
}

func TestBreakerStorePassesThrough(t *testing.T) {
	backend := NewMemoryStore()
	s := NewBreakerStore(backend, DefaultBreakerConfig("visits"), zap.NewNop())
	ctx := context.Background()

	id, err := s.InsertVisit(ctx, models.Visit{SessionID: "s1"})
	require.NoError(t, err)
	depth := 30
	require.NoError(t, s.UpdateVisit(ctx, id, models.VisitUpdate{ScrollDepth: &depth}))

	v, ok := backend.Visit(id)
	require.True(t, ok)
	assert.Equal(t, 30, v.ScrollDepth)

	_, err = s.InsertConversion(ctx, models.Conversion{ConversionType: models.ConversionEmail})
	require.NoError(t, err)
	n, err := s.CountConversions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
