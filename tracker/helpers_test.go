package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"novytek/api/models"
)

type recordedUpdate struct {
	visitID string
	update  models.VisitUpdate
}

type fakeStore struct {
	mu          sync.Mutex
	visits      []models.Visit
	updates     []recordedUpdate
	conversions []models.Conversion
	nextID      int

	insertVisitErr error
	updateErr      error
	conversionErr  error
}

func (f *fakeStore) InsertVisit(_ context.Context, v models.Visit) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertVisitErr != nil {
		return "", f.insertVisitErr
	}
	f.nextID++
	v.ID = fmt.Sprintf("visit-%d", f.nextID)
	f.visits = append(f.visits, v)
	return v.ID, nil
}

func (f *fakeStore) UpdateVisit(_ context.Context, id string, u models.VisitUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, recordedUpdate{visitID: id, update: u})
	return nil
}

func (f *fakeStore) InsertConversion(_ context.Context, c models.Conversion) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conversionErr != nil {
		return "", f.conversionErr
	}
	f.conversions = append(f.conversions, c)
	return fmt.Sprintf("conversion-%d", len(f.conversions)), nil
}

func (f *fakeStore) Updates() []recordedUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedUpdate(nil), f.updates...)
}

func (f *fakeStore) Conversions() []models.Conversion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Conversion(nil), f.conversions...)
}

func (f *fakeStore) Visits() []models.Visit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Visit(nil), f.visits...)
}

type fakeSink struct {
	mu     sync.Mutex
	events []models.TrackingEvent
}

func (s *fakeSink) Emit(_ context.Context, events ...models.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *fakeSink) Events() []models.TrackingEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TrackingEvent(nil), s.events...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testOptions keeps the sampling ticker out of the way unless a test wants it.
func testOptions() Options {
	opts := DefaultOptions()
	opts.SampleInterval = time.Hour
	opts.WriteTimeout = time.Second
	return opts
}

func newTestTracker(t *testing.T, store *fakeStore, opts Options, options ...Option) (*Tracker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	tr := New(store, opts, zap.NewNop(), options...)
	tr.now = clock.Now
	tr.sessions.now = clock.Now
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = tr.Shutdown(ctx)
	})
	return tr, clock
}

func homePage() Environment {
	return Environment{
		URL:       "https://novytek.fr/",
		Title:     "NovyTek",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		ClientIP:  "203.0.113.7",
		Width:     1400,
		Height:    900,
	}
}
