package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"novytek/api/database"
	"novytek/api/models"
	"novytek/api/utils"
)

// EventStats serves the time-series dashboard from the tracking_events mirror.
type EventStats interface {
	GetEventCountsOverTime(ctx context.Context, interval string, start, end time.Time, eventTypeFilter string) ([]models.EventCountByTime, error)
	GetUniqueSessionsOverTime(ctx context.Context, interval string, start, end time.Time) ([]models.EventCountByTime, error)
	GetTopNPagePaths(ctx context.Context, start, end time.Time, limit uint64) ([]models.PathViews, error)
	GetAverageTimeOnPage(ctx context.Context, start, end time.Time) (float64, error)
}

// AnalyticsStore mirrors tracking events into ClickHouse and aggregates them.
type AnalyticsStore struct {
	DB     *database.ClickHouseClient
	logger *zap.Logger
}

func NewAnalyticsStore(chClient *database.ClickHouseClient, logger *zap.Logger) *AnalyticsStore {
	return &AnalyticsStore{
		DB:     chClient,
		logger: logger.Named("analytics"),
	}
}

// Emit batch-inserts events into tracking_events.
func (s *AnalyticsStore) Emit(ctx context.Context, events ...models.TrackingEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO tracking_events (
			event_id, event_type, session_id, visit_id, timestamp, page_path, referrer,
			user_agent, ip_address, source, device_type, duration_ms, event_data
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare tracking_events batch: %w", err)
	}

	for _, e := range events {
		if err := batch.Append(
			e.EventID, e.EventType, e.SessionID, e.VisitID, e.Timestamp,
			e.PagePath, e.Referrer, e.UserAgent, e.IPAddress,
			e.Source, e.DeviceType, e.DurationMs, string(e.EventData),
		); err != nil {
			s.logger.Warn("skipping tracking event", zap.String("event_id", e.EventID), zap.Error(err))
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send tracking_events batch: %w", err)
	}
	s.logger.Debug("mirrored tracking events", zap.Int("count", len(events)))
	return nil
}

// GetEventCountsOverTime counts events per bucket. A non-empty eventType
// restricts the count to that type and labels every bucket with it.
func (s *AnalyticsStore) GetEventCountsOverTime(ctx context.Context, interval string, start, end time.Time, eventType string) ([]models.EventCountByTime, error) {
	series, err := s.bucketed(ctx, interval, "count()", eventType, start, end)
	if err != nil {
		return nil, fmt.Errorf("event counts over time: %w", err)
	}
	if eventType != "" {
		for i := range series {
			series[i].EventType = &eventType
		}
	}
	return series, nil
}

// GetUniqueSessionsOverTime counts distinct sessions with a page view per bucket.
func (s *AnalyticsStore) GetUniqueSessionsOverTime(ctx context.Context, interval string, start, end time.Time) ([]models.EventCountByTime, error) {
	series, err := s.bucketed(ctx, interval, "uniq(session_id)", models.EventPageView, start, end)
	if err != nil {
		return nil, fmt.Errorf("unique sessions over time: %w", err)
	}
	return series, nil
}

// bucketed evaluates aggregate over tracking_events grouped by
// toStartOf<interval>(timestamp), oldest bucket first.
func (s *AnalyticsStore) bucketed(ctx context.Context, interval, aggregate, eventType string, start, end time.Time) ([]models.EventCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	filter := "timestamp >= ? AND timestamp <= ?"
	args := []any{start, end}
	if eventType != "" {
		filter += " AND event_type = ?"
		args = append(args, eventType)
	}
	query := fmt.Sprintf(`
		SELECT toStartOf%s(timestamp) AS bucket, %s AS value
		FROM tracking_events
		WHERE %s
		GROUP BY bucket
		ORDER BY bucket
	`, interval, aggregate, filter)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	series := make([]models.EventCountByTime, 0)
	for rows.Next() {
		var point models.EventCountByTime
		if err := rows.Scan(&point.Time, &point.Count); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		series = append(series, point)
	}
	return series, rows.Err()
}

func (s *AnalyticsStore) GetTopNPagePaths(ctx context.Context, start, end time.Time, limit uint64) ([]models.PathViews, error) {
	if limit == 0 {
		limit = 10
	}

	rows, err := s.DB.Conn.Query(ctx, `
		SELECT page_path, count() AS views
		FROM tracking_events
		WHERE event_type = ? AND timestamp >= ? AND timestamp <= ?
		GROUP BY page_path
		ORDER BY views DESC, page_path
		LIMIT ?
	`, models.EventPageView, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("top page paths: %w", err)
	}
	defer rows.Close()

	paths := make([]models.PathViews, 0, limit)
	for rows.Next() {
		var p models.PathViews
		if err := rows.Scan(&p.PagePath, &p.Count); err != nil {
			return nil, fmt.Errorf("scan top page path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// GetAverageTimeOnPage averages the page_leave durations, in milliseconds.
func (s *AnalyticsStore) GetAverageTimeOnPage(ctx context.Context, start, end time.Time) (float64, error) {
	var avg float64
	row := s.DB.Conn.QueryRow(ctx, `
		SELECT avg(duration_ms)
		FROM tracking_events
		WHERE event_type = ? AND timestamp >= ? AND timestamp <= ?
	`, models.EventPageLeave, start, end)
	if err := row.Scan(&avg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query average time on page: %w", err)
	}
	// avg() over no rows is NaN, which JSON cannot carry.
	if math.IsNaN(avg) {
		return 0, nil
	}
	return avg, nil
}
