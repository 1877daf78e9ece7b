// Package tracker records page visits, engagement and conversions for the
// marketing site. Pages report through beacons; the tracker keeps the
// per-session and per-page-view state and writes it to the remote store.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"novytek/api/models"
)

type VisitWriter interface {
	InsertVisit(ctx context.Context, v models.Visit) (string, error)
	UpdateVisit(ctx context.Context, id string, u models.VisitUpdate) error
}

type ConversionWriter interface {
	InsertConversion(ctx context.Context, c models.Conversion) (string, error)
}

// Store is the slice of the remote persistence API the tracker writes to.
type Store interface {
	VisitWriter
	ConversionWriter
}

// EventSink receives a copy of every tracking event.
type EventSink interface {
	Emit(ctx context.Context, events ...models.TrackingEvent) error
}

type Metrics interface {
	VisitRecorded()
	ConversionRecorded(t models.ConversionType)
	TrackingFailure(op string)
	ActivePageViews(n int)
}

type nopMetrics struct{}

func (nopMetrics) VisitRecorded()                           {}
func (nopMetrics) ConversionRecorded(models.ConversionType) {}
func (nopMetrics) TrackingFailure(string)                   {}
func (nopMetrics) ActivePageViews(int)                      {}

type Tracker struct {
	store      Store
	sink       EventSink
	metrics    Metrics
	logger     *zap.Logger
	opts       Options
	classifier Classifier
	sessions   *SessionStore
	views      *registry
	now        func() time.Time

	// ctx bounds the page view goroutines; cancelled by Shutdown.
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closing bool
	pending sync.WaitGroup
}

type Option func(*Tracker)

func WithEventSink(sink EventSink) Option {
	return func(t *Tracker) { t.sink = sink }
}

func WithMetrics(m Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func New(store Store, opts Options, logger *zap.Logger, options ...Option) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		store:      store,
		metrics:    nopMetrics{},
		logger:     logger.Named("tracker"),
		opts:       opts,
		classifier: NewClassifier(opts),
		sessions:   NewSessionStore(opts.SessionTTL),
		views:      newRegistry(),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, o := range options {
		o(t)
	}
	return t
}

func (t *Tracker) Sessions() *SessionStore { return t.sessions }

func (t *Tracker) Classifier() Classifier { return t.classifier }

// Run expires idle page views and sessions until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	go t.sessions.Run(ctx)

	ticker := time.NewTicker(t.opts.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.views.expireIdle(t.now(), t.opts.IdleTimeout); n > 0 {
				t.logger.Debug("expired idle page views", zap.Int("count", n))
			}
			t.metrics.ActivePageViews(t.views.len())
		}
	}
}

// Shutdown ends every open page view with a final update and waits for
// in-flight writes until ctx is done. Writes still running then are dropped.
// Page views and conversions arriving after Shutdown started are refused.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closing = true
	t.mu.Unlock()

	t.views.close(t.now())
	err := errors.Join(t.views.wait(ctx), waitGroup(ctx, &t.pending))
	t.cancel()
	return err
}

// Wait blocks until background conversion and event writes are done.
func (t *Tracker) Wait() {
	t.pending.Wait()
}

// TrackPageView records a visit for the page described by env and starts
// sampling its engagement. It returns the new visit id, or false when the
// remote write failed; the failure is logged and dependent updates are skipped.
func (t *Tracker) TrackPageView(ctx context.Context, sess *Session, env Environment) (string, bool) {
	if t.shuttingDown() {
		return "", false
	}

	// A new page load has no visit until the insert below succeeds.
	sess.SetVisitID("")

	source := t.classifier.Source(env)
	sess.FirstTouchSource(func() string { return source })

	utm := t.classifier.UTM(env)
	visit := models.Visit{
		SessionID:    sess.ID,
		IPAddress:    optional(env.ClientIP),
		UserAgent:    env.UserAgent,
		Source:       source,
		Referrer:     optional(env.Referrer),
		UTMSource:    utm.Source,
		UTMMedium:    utm.Medium,
		UTMCampaign:  utm.Campaign,
		PageURL:      env.URL,
		PageTitle:    env.Title,
		DeviceType:   t.classifier.DeviceType(env.Width),
		Browser:      t.classifier.Browser(env.UserAgent),
		OS:           t.classifier.OS(env.UserAgent),
		ScreenWidth:  env.Width,
		ScreenHeight: env.Height,
	}

	wctx, cancel := context.WithTimeout(ctx, t.opts.WriteTimeout)
	defer cancel()

	visitID, err := t.store.InsertVisit(wctx, visit)
	if err != nil {
		t.logger.Warn("failed to record visit",
			zap.String("session_id", sess.ID),
			zap.String("page_url", env.URL),
			zap.Error(err))
		t.metrics.TrackingFailure("insert_visit")
		return "", false
	}

	sess.SetVisitID(visitID)
	t.metrics.VisitRecorded()

	view := newPageView(visitID, sess.ID, env.URL, t.opts, t.store, t.emitNow, t.logger, t.metrics, t.now)
	if !t.views.add(t.ctx, view) {
		t.logger.Debug("shutting down, visit recorded without sampling", zap.String("visit_id", visitID))
	}
	t.metrics.ActivePageViews(t.views.len())

	t.emit(ctx, models.TrackingEvent{
		EventType:  models.EventPageView,
		SessionID:  sess.ID,
		VisitID:    visitID,
		PagePath:   pagePath(env.URL),
		Referrer:   env.Referrer,
		UserAgent:  env.UserAgent,
		IPAddress:  env.ClientIP,
		Source:     source,
		DeviceType: visit.DeviceType,
	})
	return visitID, true
}

// Scroll records a scroll position for a visit. It returns the maximum depth
// reached so far, or false when the visit has no running page view.
func (t *Tracker) Scroll(visitID string, scrollTop, viewportHeight, documentHeight float64) (int, bool) {
	p, ok := t.views.get(visitID)
	if !ok {
		return 0, false
	}
	return p.scroll(scrollTop, viewportHeight, documentHeight), true
}

func (t *Tracker) Click(visitID string) (int, bool) {
	p, ok := t.views.get(visitID)
	if !ok {
		return 0, false
	}
	return p.click(), true
}

// Ping keeps a page view alive without other activity.
func (t *Tracker) Ping(visitID string) bool {
	p, ok := t.views.get(visitID)
	if ok {
		p.ping()
	}
	return ok
}

// Leave ends a page view: the final update carries time on page, exit page
// and the bounce flag.
func (t *Tracker) Leave(visitID, exitPage string) bool {
	p, ok := t.views.get(visitID)
	if !ok {
		return false
	}
	if exitPage == "" {
		exitPage = p.pageURL
	}
	p.stop(exitPage, t.now())
	return true
}

// TrackConversion records a qualifying action. It never blocks on the remote
// store and never fails: the writes run in the background and errors are
// only logged.
func (t *Tracker) TrackConversion(ctx context.Context, sess *Session, env Environment, ct models.ConversionType, contactID string) {
	if !ct.Valid() {
		t.logger.Warn("ignoring unknown conversion type", zap.String("type", string(ct)))
		return
	}

	source := sess.FirstTouchSource(func() string { return t.classifier.Source(env) })
	visitID := sess.VisitID()

	t.background(ctx, func(ctx context.Context) {
		t.recordConversion(ctx, sess.ID, visitID, ct, contactID, source)
	})
}

func (t *Tracker) recordConversion(ctx context.Context, sessionID, visitID string, ct models.ConversionType, contactID, source string) {
	logger := t.logger.With(
		zap.String("session_id", sessionID),
		zap.String("visit_id", visitID),
		zap.String("type", string(ct)))

	if visitID != "" {
		if err := t.store.UpdateVisit(ctx, visitID, models.VisitUpdate{Flag: ct.Flag()}); err != nil {
			logger.Warn("failed to flag visit", zap.Error(err))
			t.metrics.TrackingFailure("flag_visit")
		}
	}

	conv := models.Conversion{
		VisitID:        optional(visitID),
		ContactID:      optional(contactID),
		ConversionType: ct,
		OriginalSource: source,
	}
	if _, err := t.store.InsertConversion(ctx, conv); err != nil {
		logger.Warn("failed to record conversion", zap.Error(err))
		t.metrics.TrackingFailure("insert_conversion")
		return
	}
	t.metrics.ConversionRecorded(ct)

	t.emitNow(ctx, models.TrackingEvent{
		EventType: models.EventConversion,
		SessionID: sessionID,
		VisitID:   visitID,
		Source:    source,
		EventData: conversionData(ct, contactID),
	})
}

func (t *Tracker) shuttingDown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closing
}

// background runs fn detached from the request. Work submitted after
// Shutdown started is dropped.
func (t *Tracker) background(ctx context.Context, fn func(context.Context)) {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		t.logger.Debug("shutting down, dropping background write")
		return
	}
	t.pending.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.pending.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.opts.WriteTimeout)
		defer cancel()
		fn(wctx)
	}()
}

// emit forwards events to the sink in the background.
func (t *Tracker) emit(ctx context.Context, events ...models.TrackingEvent) {
	if t.sink == nil {
		return
	}
	t.background(ctx, func(ctx context.Context) {
		t.emitNow(ctx, events...)
	})
}

func (t *Tracker) emitNow(ctx context.Context, events ...models.TrackingEvent) {
	if t.sink == nil {
		return
	}
	now := t.now().UTC()
	for i := range events {
		events[i].EventID = uuid.NewString()
		events[i].Timestamp = now
	}
	if err := t.sink.Emit(ctx, events...); err != nil {
		t.logger.Warn("failed to mirror tracking events", zap.Error(err))
		t.metrics.TrackingFailure("emit_events")
	}
}
