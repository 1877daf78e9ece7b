package models

import (
	"encoding/json"
	"time"
)

const (
	EventPageView   = "page_view"
	EventPageLeave  = "page_leave"
	EventConversion = "conversion"
)

// TrackingEvent is the row mirrored into the ClickHouse tracking_events table.
type TrackingEvent struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	SessionID  string          `json:"sessionId"`
	VisitID    string          `json:"visitId"`
	Timestamp  time.Time       `json:"timestamp"`
	PagePath   string          `json:"pagePath"`
	Referrer   string          `json:"referrer"`
	UserAgent  string          `json:"userAgent"`
	IPAddress  string          `json:"ipAddress"`
	Source     string          `json:"source"`
	DeviceType string          `json:"deviceType"`
	DurationMs int64           `json:"durationMs"`
	EventData  json.RawMessage `json:"eventData,omitempty"`
}

// PathViews is the page_view count of one path.
type PathViews struct {
	PagePath string `json:"pagePath"`
	Count    uint64 `json:"count"`
}

// EventCountByTime is one bucket of a time series.
type EventCountByTime struct {
	Time      time.Time `json:"time"`
	EventType *string   `json:"eventType,omitempty"`
	Count     uint64    `json:"count"`
}
