package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"novytek/api/models"
	"novytek/api/store"
	"novytek/api/utils"
)

const (
	daysShown       = 7
	defaultTopLimit = 10
	maxTopLimit     = 100
)

// StatsHandlers serve the admin dashboard. Events is nil when the
// ClickHouse mirror is not configured; the time-series endpoints then answer 503.
type StatsHandlers struct {
	Dashboard store.DashboardStore
	Events    store.EventStats
	logger    *zap.Logger
	now       func() time.Time
}

func NewStatsHandlers(dashboard store.DashboardStore, events store.EventStats, logger *zap.Logger) *StatsHandlers {
	return &StatsHandlers{
		Dashboard: dashboard,
		Events:    events,
		logger:    logger.Named("stats"),
		now:       time.Now,
	}
}

// readFailed answers a failed dashboard read; the dashboard offers a retry.
func (h *StatsHandlers) readFailed(c *gin.Context, what string, err error) {
	h.logger.Error("dashboard read failed", zap.String("view", what), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load " + what, "retryable": true})
}

func (h *StatsHandlers) Summary(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	visits, err := h.Dashboard.ListVisitIdentities(ctx)
	if err != nil {
		h.readFailed(c, "visits", err)
		return
	}
	conversions, err := h.Dashboard.CountConversions(ctx)
	if err != nil {
		h.readFailed(c, "conversions", err)
		return
	}
	c.JSON(http.StatusOK, models.Summarize(visits, conversions))
}

func (h *StatsHandlers) VisitsBySource(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	rows, err := h.Dashboard.VisitsBySource(ctx)
	if err != nil {
		h.readFailed(c, "visits by source", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(rows))
}

func (h *StatsHandlers) VisitsByDay(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	rows, err := h.Dashboard.VisitsByDay(ctx, daysShown)
	if err != nil {
		h.readFailed(c, "visits by day", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(rows))
}

func (h *StatsHandlers) ConversionRateBySource(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	rows, err := h.Dashboard.ConversionRateBySource(ctx)
	if err != nil {
		h.readFailed(c, "conversion rates", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(rows))
}

func (h *StatsHandlers) TopPages(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	rows, err := h.Dashboard.TopPages(ctx, int(limit))
	if err != nil {
		h.readFailed(c, "top pages", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(rows))
}

// eventStats returns the ClickHouse stats backend, answering 503 when absent.
func (h *StatsHandlers) eventStats(c *gin.Context) (store.EventStats, bool) {
	if h.Events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event statistics are not configured"})
		return nil, false
	}
	return h.Events, true
}

func (h *StatsHandlers) timeRange(c *gin.Context) (time.Time, time.Time, bool) {
	start, end, err := utils.ParseTimeRange(c.Query("start"), c.Query("end"), h.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return start, end, false
	}
	return start, end, true
}

func parseInterval(c *gin.Context) (string, bool) {
	interval := c.DefaultQuery("interval", "Day")
	if !utils.IsValidInterval(interval) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'interval', use one of Minute, Hour, Day, Week, Month, Quarter, Year"})
		return "", false
	}
	return interval, true
}

func parseLimit(c *gin.Context) (uint64, bool) {
	limitParam := c.Query("limit")
	if limitParam == "" {
		return defaultTopLimit, true
	}
	limit, err := strconv.ParseUint(limitParam, 10, 64)
	if err != nil || limit == 0 || limit > maxTopLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter, must be between 1 and 100"})
		return 0, false
	}
	return limit, true
}

func (h *StatsHandlers) EventCounts(c *gin.Context) {
	events, ok := h.eventStats(c)
	if !ok {
		return
	}
	interval, ok := parseInterval(c)
	if !ok {
		return
	}
	start, end, ok := h.timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := events.GetEventCountsOverTime(ctx, interval, start, end, c.Query("eventType"))
	if err != nil {
		h.readFailed(c, "event counts", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(results))
}

func (h *StatsHandlers) UniqueSessions(c *gin.Context) {
	events, ok := h.eventStats(c)
	if !ok {
		return
	}
	interval, ok := parseInterval(c)
	if !ok {
		return
	}
	start, end, ok := h.timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := events.GetUniqueSessionsOverTime(ctx, interval, start, end)
	if err != nil {
		h.readFailed(c, "unique sessions", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(results))
}

func (h *StatsHandlers) TopPaths(c *gin.Context) {
	events, ok := h.eventStats(c)
	if !ok {
		return
	}
	start, end, ok := h.timeRange(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := events.GetTopNPagePaths(ctx, start, end, limit)
	if err != nil {
		h.readFailed(c, "top paths", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(results))
}

func (h *StatsHandlers) AverageTimeOnPage(c *gin.Context) {
	events, ok := h.eventStats(c)
	if !ok {
		return
	}
	start, end, ok := h.timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	avg, err := events.GetAverageTimeOnPage(ctx, start, end)
	if err != nil {
		h.readFailed(c, "average time on page", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"startDate":         start.Format(time.RFC3339),
		"endDate":           end.Format(time.RFC3339),
		"averageDurationMs": avg,
	})
}

// nonNil keeps empty results serialized as [] rather than null.
func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
