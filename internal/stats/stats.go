// Package stats reduces a record collection to the dashboard counters. The
// reduction is pure: same records and same instant always give the same
// Stats, whether computed fresh or repeatedly.
package stats

import (
	"math"
	"time"

	"github.com/keurgui/access-gateway-go/internal/lifecycle"
	"github.com/keurgui/access-gateway-go/internal/model"
	"github.com/keurgui/access-gateway-go/internal/query"
)

// Stats holds the summary counters shown on the dashboard.
type Stats struct {
	Total            int `json:"total"`
	Active           int `json:"active"`
	CreatedToday     int `json:"createdToday"`
	ExpiredToday     int `json:"expiredToday"`
	ExpiringWithin24 int `json:"expiringWithin24h"`
	UniqueGuests     int `json:"uniqueGuests"`
	CreatedThisWeek  int `json:"createdThisWeek"`
	SuccessRate      int `json:"successRate"`
}

// Summarize computes the counters for records at instant now. Weeks start
// on Sunday, consistent with the query engine's local day boundaries.
// SuccessRate is 0 for an empty collection.
func Summarize(records []model.AccessRecord, now time.Time) Stats {
	s := Stats{Total: len(records)}

	weekStart := startOfWeek(now)
	weekEnd := weekStart.AddDate(0, 0, 7)
	horizon24 := now.Add(24 * time.Hour)

	guests := make(map[string]struct{}, len(records))
	for _, rec := range records {
		expired := lifecycle.Classify(rec, now) == model.StateExpired

		if !expired {
			s.Active++
		}
		if query.SameDay(rec.CreatedAt, now) {
			s.CreatedToday++
		}
		if expired && query.SameDay(rec.ExpiresAt, now) {
			s.ExpiredToday++
		}
		if !expired && !rec.ExpiresAt.After(horizon24) {
			s.ExpiringWithin24++
		}
		if !rec.CreatedAt.Before(weekStart) && rec.CreatedAt.Before(weekEnd) {
			s.CreatedThisWeek++
		}
		guests[rec.GuestPhone] = struct{}{}
	}
	s.UniqueGuests = len(guests)

	if s.Total > 0 {
		s.SuccessRate = int(math.Round(100 * float64(s.Active) / float64(s.Total)))
	}
	return s
}

// startOfWeek returns midnight of the Sunday of now's week, in now's
// location.
func startOfWeek(now time.Time) time.Time {
	day := query.StartOfDay(now)
	return day.AddDate(0, 0, -int(day.Weekday()))
}
