package tracker

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"novytek/api/models"
)

// ScrollDepth converts a scroll position into the percentage of the document
// seen so far, clamped to [0, 100].
func ScrollDepth(scrollTop, viewportHeight, documentHeight float64) int {
	if documentHeight <= 0 {
		return 0
	}
	depth := int(math.Round((scrollTop + viewportHeight) / documentHeight * 100))
	return min(max(depth, 0), 100)
}

// IsBounce reports whether a page view ended with minimal engagement.
func (o Options) IsBounce(elapsed time.Duration, clicks int) bool {
	return elapsed < time.Duration(o.BounceSeconds)*time.Second && clicks < o.BounceClicks
}

// IsBounce applies the default thresholds.
func IsBounce(elapsed time.Duration, clicks int) bool {
	return DefaultOptions().IsBounce(elapsed, clicks)
}

func elapsedSeconds(d time.Duration) int {
	return int(math.Round(d.Seconds()))
}

// pageView samples engagement for one visit. Beacons mutate the counters
// under mu; every remote write goes through run, so writes for a visit are
// sequential and only ever carry the current maximum.
type pageView struct {
	visitID   string
	sessionID string
	pageURL   string
	opts      Options
	writer    VisitWriter
	report    func(context.Context, ...models.TrackingEvent)
	logger    *zap.Logger
	metrics   Metrics
	now       func() time.Time

	mu          sync.Mutex
	start       time.Time
	lastActive  time.Time
	maxScroll   int
	clicks      int
	scrollDirty bool
	clicksDirty bool
	end         time.Time
	exitPage    string

	wake  chan struct{}
	leave chan struct{}
	once  sync.Once
	done  chan struct{}
}

// newPageView starts sampling a visit. report receives the page_leave event
// once the page view ends, however it ends.
func newPageView(visitID, sessionID, pageURL string, opts Options, writer VisitWriter, report func(context.Context, ...models.TrackingEvent), logger *zap.Logger, metrics Metrics, now func() time.Time) *pageView {
	started := now()
	return &pageView{
		visitID:    visitID,
		sessionID:  sessionID,
		pageURL:    pageURL,
		opts:       opts,
		writer:     writer,
		report:     report,
		logger:     logger.With(zap.String("visit_id", visitID)),
		metrics:    metrics,
		now:        now,
		start:      started,
		lastActive: started,
		wake:       make(chan struct{}, 1),
		leave:      make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// scroll records a scroll position and returns the maximum depth reached.
func (p *pageView) scroll(scrollTop, viewportHeight, documentHeight float64) int {
	depth := ScrollDepth(scrollTop, viewportHeight, documentHeight)

	p.mu.Lock()
	p.lastActive = p.now()
	raised := depth > p.maxScroll
	if raised {
		p.maxScroll = depth
		p.scrollDirty = true
	}
	deepest := p.maxScroll
	p.mu.Unlock()

	if raised {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
	return deepest
}

func (p *pageView) click() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastActive = p.now()
	p.clicks++
	p.clicksDirty = true
	return p.clicks
}

func (p *pageView) ping() {
	p.mu.Lock()
	p.lastActive = p.now()
	p.mu.Unlock()
}

func (p *pageView) idleSince(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastActive)
}

// stop ends the page view at the given time. Only the first call counts.
func (p *pageView) stop(exitPage string, at time.Time) {
	p.once.Do(func() {
		p.mu.Lock()
		p.exitPage = exitPage
		p.end = at
		p.mu.Unlock()
		close(p.leave)
	})
}

// stopIdle ends a page view the client stopped reporting on, measuring time
// up to the last beacon seen.
func (p *pageView) stopIdle() {
	p.mu.Lock()
	at := p.lastActive
	p.mu.Unlock()
	p.stop(p.pageURL, at)
}

func (p *pageView) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.opts.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.wake:
			p.flush(ctx, false)
		case <-ticker.C:
			p.flush(ctx, true)
		case <-p.leave:
			p.finish(ctx)
			return
		case <-ctx.Done():
			p.finish(ctx)
			return
		}
	}
}

func (p *pageView) flush(ctx context.Context, withTime bool) {
	var u models.VisitUpdate

	p.mu.Lock()
	if p.scrollDirty {
		depth := p.maxScroll
		u.ScrollDepth = &depth
		p.scrollDirty = false
	}
	if withTime {
		if p.clicksDirty {
			clicks := p.clicks
			u.ClickCount = &clicks
			p.clicksDirty = false
		}
		secs := elapsedSeconds(p.now().Sub(p.start))
		u.TimeOnPage = &secs
	}
	p.mu.Unlock()

	if u.IsEmpty() {
		return
	}
	p.write(ctx, "update_visit", u)
}

func (p *pageView) finish(ctx context.Context) {
	p.mu.Lock()
	end := p.end
	if end.IsZero() {
		end = p.now()
	}
	exit := p.exitPage
	if exit == "" {
		exit = p.pageURL
	}
	elapsed := end.Sub(p.start)
	secs := elapsedSeconds(elapsed)
	clicks := p.clicks
	bounce := p.opts.IsBounce(elapsed, clicks)
	u := models.VisitUpdate{
		TimeOnPage: &secs,
		ClickCount: &clicks,
		ExitPage:   &exit,
		IsBounce:   &bounce,
	}
	if p.scrollDirty {
		depth := p.maxScroll
		u.ScrollDepth = &depth
		p.scrollDirty = false
	}
	p.mu.Unlock()

	p.write(ctx, "finish_visit", u)
	p.reportLeave(ctx, exit, elapsed)
	p.logger.Debug("page view ended",
		zap.Int("time_on_page", secs),
		zap.Int("clicks", clicks),
		zap.Bool("bounce", bounce))
}

func (p *pageView) write(ctx context.Context, op string, u models.VisitUpdate) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.WriteTimeout)
	defer cancel()

	if err := p.writer.UpdateVisit(wctx, p.visitID, u); err != nil {
		p.logger.Warn("visit update failed", zap.String("op", op), zap.Error(err))
		p.metrics.TrackingFailure(op)
	}
}

func (p *pageView) reportLeave(ctx context.Context, exitPage string, elapsed time.Duration) {
	if p.report == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.WriteTimeout)
	defer cancel()

	p.report(wctx, models.TrackingEvent{
		EventType:  models.EventPageLeave,
		SessionID:  p.sessionID,
		VisitID:    p.visitID,
		PagePath:   pagePath(exitPage),
		DurationMs: elapsed.Milliseconds(),
	})
}

// registry owns the running page views, keyed by visit id.
type registry struct {
	mu     sync.Mutex
	views  map[string]*pageView
	closed bool
	wg     sync.WaitGroup
}

func newRegistry() *registry {
	return &registry{views: make(map[string]*pageView)}
}

// add starts the page view goroutine. It reports false once the registry is
// closed; wg.Add happens under mu so it never races the final wait.
func (r *registry) add(ctx context.Context, p *pageView) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.views[p.visitID] = p
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		p.run(ctx)
		r.remove(p)
	}()
	return true
}

func (r *registry) remove(p *pageView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.views[p.visitID] == p {
		delete(r.views, p.visitID)
	}
}

func (r *registry) get(visitID string) (*pageView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.views[visitID]
	return p, ok
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *registry) snapshot() []*pageView {
	r.mu.Lock()
	defer r.mu.Unlock()
	views := make([]*pageView, 0, len(r.views))
	for _, p := range r.views {
		views = append(views, p)
	}
	return views
}

// expireIdle stops page views with no beacon for longer than timeout.
func (r *registry) expireIdle(now time.Time, timeout time.Duration) int {
	expired := 0
	for _, p := range r.snapshot() {
		if p.idleSince(now) > timeout {
			p.stopIdle()
			expired++
		}
	}
	return expired
}

// close refuses new page views and stops the running ones.
func (r *registry) close(now time.Time) {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	for _, p := range r.snapshot() {
		p.stop(p.pageURL, now)
	}
}

// wait blocks until every page view goroutine returned or ctx is done.
func (r *registry) wait(ctx context.Context) error {
	return waitGroup(ctx, &r.wg)
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
