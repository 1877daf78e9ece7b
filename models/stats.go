package models

import "math"

// VisitIdentity is the projection of a visit used for the summary counters.
type VisitIdentity struct {
	IPAddress *string `json:"ip_address"`
	SessionID string  `json:"session_id"`
}

type Summary struct {
	TotalVisits      int     `json:"totalVisits"`
	UniqueVisitors   int     `json:"uniqueVisitors"`
	UniqueSessions   int     `json:"uniqueSessions"`
	TotalConversions int     `json:"totalConversions"`
	ConversionRate   float64 `json:"conversionRate"`
}

// Summarize computes the dashboard headline numbers. Visits without an IP
// address count as one anonymous visitor.
func Summarize(visits []VisitIdentity, conversions int) Summary {
	ips := make(map[string]struct{})
	sessions := make(map[string]struct{})
	for _, v := range visits {
		ip := ""
		if v.IPAddress != nil {
			ip = *v.IPAddress
		}
		ips[ip] = struct{}{}
		sessions[v.SessionID] = struct{}{}
	}

	s := Summary{
		TotalVisits:      len(visits),
		UniqueVisitors:   len(ips),
		UniqueSessions:   len(sessions),
		TotalConversions: conversions,
	}
	if len(visits) > 0 {
		rate := float64(conversions) / float64(len(visits)) * 100
		s.ConversionRate = math.Round(rate*100) / 100
	}
	return s
}

// Rows of the read-only aggregation views.

type SourceStats struct {
	Source         string  `json:"source"`
	TotalVisits    int     `json:"total_visits"`
	UniqueSessions int     `json:"unique_sessions"`
	AvgTimeOnPage  float64 `json:"avg_time_on_page"`
	AvgScrollDepth float64 `json:"avg_scroll_depth"`
}

type DayStats struct {
	VisitDate      string `json:"visit_date"`
	TotalVisits    int    `json:"total_visits"`
	UniqueSessions int    `json:"unique_sessions"`
}

type ConversionRateStats struct {
	Source         string  `json:"source"`
	TotalVisits    int     `json:"total_visits"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
}

type PageStats struct {
	PageURL   string  `json:"page_url"`
	PageTitle *string `json:"page_title"`
	Visits    int     `json:"visits"`
	AvgTime   float64 `json:"avg_time"`
}
