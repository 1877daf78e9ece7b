package store

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"novytek/api/models"
)

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerStore stops calling the remote store for tracking writes after a
// run of failures, so beacons fail fast while the backend is down. Reads go
// straight through.
type BreakerStore struct {
	Store
	cb *gobreaker.CircuitBreaker
}

func NewBreakerStore(next Store, cfg BreakerConfig, logger *zap.Logger) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &BreakerStore{Store: next, cb: cb}
}

func (s *BreakerStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *BreakerStore) InsertVisit(ctx context.Context, v models.Visit) (string, error) {
	id, err := s.cb.Execute(func() (interface{}, error) {
		return s.Store.InsertVisit(ctx, v)
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

func (s *BreakerStore) UpdateVisit(ctx context.Context, id string, u models.VisitUpdate) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.Store.UpdateVisit(ctx, id, u)
	})
	return err
}

func (s *BreakerStore) InsertConversion(ctx context.Context, c models.Conversion) (string, error) {
	id, err := s.cb.Execute(func() (interface{}, error) {
		return s.Store.InsertConversion(ctx, c)
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}
