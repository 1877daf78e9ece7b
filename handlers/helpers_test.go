package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"novytek/api/middleware"
	"novytek/api/models"
	"novytek/api/notify"
	"novytek/api/store"
	"novytek/api/tracker"
	"novytek/api/utils"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.ContactEmail
	err  error
}

func (n *fakeNotifier) SendContactEmail(_ context.Context, msg notify.ContactEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *fakeNotifier) Sent() []notify.ContactEmail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.ContactEmail(nil), n.sent...)
}

type fakeEventStats struct {
	counts []models.EventCountByTime
	paths  []models.PathViews
	err    error

	lastInterval string
	lastLimit    uint64
}

func (f *fakeEventStats) GetEventCountsOverTime(_ context.Context, interval string, _, _ time.Time, _ string) ([]models.EventCountByTime, error) {
	f.lastInterval = interval
	return f.counts, f.err
}

func (f *fakeEventStats) GetUniqueSessionsOverTime(_ context.Context, interval string, _, _ time.Time) ([]models.EventCountByTime, error) {
	f.lastInterval = interval
	return f.counts, f.err
}

func (f *fakeEventStats) GetTopNPagePaths(_ context.Context, _, _ time.Time, limit uint64) ([]models.PathViews, error) {
	f.lastLimit = limit
	return f.paths, f.err
}

func (f *fakeEventStats) GetAverageTimeOnPage(context.Context, time.Time, time.Time) (float64, error) {
	return 12500, f.err
}

type testServer struct {
	router   *gin.Engine
	store    *store.MemoryStore
	tracker  *tracker.Tracker
	notifier *fakeNotifier
	contacts *ContactHandlers
	tokens   *utils.TokenIssuer
}

type serverOption func(*testServer, *Handlers)

func withEventStats(events store.EventStats) serverOption {
	return func(_ *testServer, h *Handlers) { h.Stats.Events = events }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	logger := zap.NewNop()
	s := store.NewMemoryStore()

	trackerOpts := tracker.DefaultOptions()
	trackerOpts.SampleInterval = time.Hour
	trackerOpts.WriteTimeout = time.Second
	tr := tracker.New(s, trackerOpts, logger)

	ts := &testServer{
		store:    s,
		tracker:  tr,
		notifier: &fakeNotifier{},
		tokens:   utils.NewTokenIssuer("test-secret"),
	}
	ts.contacts = NewContactHandlers(s, tr, ts.notifier, false, logger)

	h := Handlers{
		Track:   NewTrackHandlers(tr, false, logger),
		Contact: ts.contacts,
		Catalog: NewCatalogHandlers(s, logger),
		Stats:   NewStatsHandlers(s, nil, logger),
		Auth:    NewAuthHandlers(s, s, ts.tokens, false, logger),
	}
	for _, o := range opts {
		o(ts, &h)
	}

	gate := middleware.NewAdminGate(s, ts.tokens, "", logger)
	ts.router = gin.New()
	RegisterRoutes(ts.router, h, gate)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = tr.Shutdown(ctx)
		ts.contacts.Wait()
	})
	return ts
}

// settle waits for background tracking writes and ends open page views.
func (ts *testServer) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ts.tracker.Shutdown(ctx))
	ts.contacts.Wait()
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) adminToken(t *testing.T, role models.AdminRole) string {
	t.Helper()
	userID := "admin-" + string(role)
	ts.store.AddAdmin(models.AdminUser{UserID: userID, Email: userID + "@novytek.fr", Role: role, IsActive: true})
	token, err := ts.tokens.GenerateJWT(&models.AdminUser{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
