package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novytek/api/models"
	"novytek/api/utils"
)

func TestStatsRequireAdmin(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/stats/summary", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "not_signed_in")

	token, err := ts.tokens.GenerateJWT(&models.AdminUser{UserID: "visitor"})
	require.NoError(t, err)
	w = ts.do(t, http.MethodGet, "/api/stats/summary", nil, bearer(token))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "access_denied")
}

func TestStatsSummary(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t, models.RoleAdmin)

	w := ts.do(t, http.MethodGet, "/api/stats/summary", nil, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Summary{}, decode[models.Summary](t, w), "empty dashboard has a zero rate")

	first := decode[pageViewResponse](t, ts.do(t, http.MethodPost, "/api/track/pageview",
		gin.H{"url": "https://novytek.fr/", "width": 1280, "height": 800}, nil))
	ts.do(t, http.MethodPost, "/api/track/pageview", gin.H{"url": "https://novytek.fr/services", "width": 1280, "height": 800},
		map[string]string{utils.SessionHeader: first.SessionID})
	ts.do(t, http.MethodPost, "/api/track/pageview", gin.H{"url": "https://novytek.fr/", "width": 1280, "height": 800}, nil)
	ts.do(t, http.MethodPost, "/api/track/conversion", gin.H{"type": "phone"}, map[string]string{utils.SessionHeader: first.SessionID})
	ts.settle(t)

	w = ts.do(t, http.MethodGet, "/api/stats/summary", nil, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Summary{
		TotalVisits:      3,
		UniqueVisitors:   1,
		UniqueSessions:   2,
		TotalConversions: 1,
		ConversionRate:   33.33,
	}, decode[models.Summary](t, w))
}

func TestStatsViews(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t, models.RoleAdmin)

	ts.do(t, http.MethodPost, "/api/track/pageview", gin.H{"url": "https://novytek.fr/?utm_source=facebook", "width": 1280, "height": 800}, nil)
	ts.settle(t)

	bySource := decode[[]models.SourceStats](t, ts.do(t, http.MethodGet, "/api/stats/visits-by-source", nil, bearer(token)))
	require.Len(t, bySource, 1)
	assert.Equal(t, "facebook", bySource[0].Source)

	byDay := decode[[]models.DayStats](t, ts.do(t, http.MethodGet, "/api/stats/visits-by-day", nil, bearer(token)))
	require.Len(t, byDay, 1)
	assert.Equal(t, 1, byDay[0].TotalVisits)

	rates := decode[[]models.ConversionRateStats](t, ts.do(t, http.MethodGet, "/api/stats/conversion-rate-by-source", nil, bearer(token)))
	require.Len(t, rates, 1)

	pages := decode[[]models.PageStats](t, ts.do(t, http.MethodGet, "/api/stats/top-pages?limit=5", nil, bearer(token)))
	require.Len(t, pages, 1)

	w := ts.do(t, http.MethodGet, "/api/stats/top-pages?limit=0", nil, bearer(token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventStatsUnavailable(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t, models.RoleAdmin)

	for _, path := range []string{"/api/stats/event-counts", "/api/stats/unique-sessions", "/api/stats/top-paths", "/api/stats/average-time-on-page"} {
		w := ts.do(t, http.MethodGet, path, nil, bearer(token))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestEventStats(t *testing.T) {
	eventType := models.EventPageView
	events := &fakeEventStats{
		counts: []models.EventCountByTime{{Time: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), EventType: &eventType, Count: 12}},
		paths:  []models.PathViews{{PagePath: "/services", Count: 7}},
	}
	ts := newTestServer(t, withEventStats(events))
	token := ts.adminToken(t, models.RoleAdmin)

	w := ts.do(t, http.MethodGet, "/api/stats/event-counts?eventType=page_view", nil, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	counts := decode[[]models.EventCountByTime](t, w)
	require.Len(t, counts, 1)
	assert.Equal(t, uint64(12), counts[0].Count)
	assert.Equal(t, "Day", events.lastInterval)

	w = ts.do(t, http.MethodGet, "/api/stats/unique-sessions?interval=Hour", nil, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hour", events.lastInterval)

	w = ts.do(t, http.MethodGet, "/api/stats/top-paths?limit=3", nil, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(3), events.lastLimit)
	assert.Equal(t, []models.PathViews{{PagePath: "/services", Count: 7}}, decode[[]models.PathViews](t, w))

	w = ts.do(t, http.MethodGet, "/api/stats/average-time-on-page", nil, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12500.0, decode[map[string]any](t, w)["averageDurationMs"])

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/stats/event-counts?interval=fortnight", nil, bearer(token)).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/stats/top-paths?start=yesterday", nil, bearer(token)).Code)
}

func TestEventStatsReadFailureIsRetryable(t *testing.T) {
	ts := newTestServer(t, withEventStats(&fakeEventStats{err: assert.AnError}))
	token := ts.adminToken(t, models.RoleAdmin)

	w := ts.do(t, http.MethodGet, "/api/stats/event-counts", nil, bearer(token))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["retryable"])
}
