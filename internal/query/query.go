// Package query filters, searches and orders record collections. The list,
// search and calendar views all call the same functions here so their
// boundary handling cannot drift apart.
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/keurgui/access-gateway-go/internal/model"
)

// Filter is the composed filter applied by Apply. All parts are optional
// and combine by logical AND. Zero-value fields match everything.
type Filter struct {
	Text   string
	Status model.StatusFilter
	Window model.DateWindow
}

// Apply returns the records matching f, sorted by creation time descending.
// The sort is stable with respect to equal creation times, the input slice
// is never mutated, and applying the same filter twice yields the same
// result. The caller samples now once and reuses it for classification.
func Apply(records []model.AccessRecord, f Filter, now time.Time) []model.AccessRecord {
	text := strings.ToLower(strings.TrimSpace(f.Text))

	out := make([]model.AccessRecord, 0, len(records))
	for _, rec := range records {
		if text != "" && !matchesText(rec, text) {
			continue
		}
		if !matchesStatus(rec, f.Status, now) {
			continue
		}
		if !matchesWindow(rec, f.Window, now) {
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Recent returns the n most recently created records.
func Recent(records []model.AccessRecord, n int) []model.AccessRecord {
	sorted := Apply(records, Filter{}, time.Time{})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func matchesText(rec model.AccessRecord, text string) bool {
	return strings.Contains(strings.ToLower(rec.GuestName), text) ||
		strings.Contains(strings.ToLower(rec.GuestPhone), text) ||
		strings.Contains(strings.ToLower(rec.ID), text)
}

func matchesStatus(rec model.AccessRecord, status model.StatusFilter, now time.Time) bool {
	switch status {
	case "", model.StatusAll:
		return true
	case model.StatusActive:
		return rec.ExpiresAt.After(now)
	case model.StatusExpired:
		return !rec.ExpiresAt.After(now)
	case model.StatusToday:
		return SameDay(rec.ExpiresAt, now)
	default:
		return true
	}
}

func matchesWindow(rec model.AccessRecord, window model.DateWindow, now time.Time) bool {
	switch window {
	case "", model.WindowAll:
		return true
	case model.WindowToday:
		return SameDay(rec.CreatedAt, now)
	case model.Window7Days:
		return !rec.CreatedAt.Before(StartOfDay(now).AddDate(0, 0, -7))
	case model.Window30Days:
		return !rec.CreatedAt.Before(StartOfDay(now).AddDate(0, 0, -30))
	default:
		return true
	}
}

// StartOfDay truncates t to midnight in t's location. All day-boundary
// logic in the gateway goes through here.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same local calendar date,
// compared in b's location.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a.In(b.Location())).Equal(StartOfDay(b))
}

// DayEntry is a record's appearance on a calendar day. A record created and
// expiring on the same day appears once with both flags set.
type DayEntry struct {
	Record   model.AccessRecord
	Created  bool
	Expiring bool
}

// OnDay returns every record whose creation or expiry falls on the local
// calendar date of day, annotated with which boundary (or both) hit that
// day. Order follows the fixed creation-time-descending sort.
func OnDay(records []model.AccessRecord, day time.Time) []DayEntry {
	sorted := Apply(records, Filter{}, day)

	var out []DayEntry
	for _, rec := range sorted {
		created := SameDay(rec.CreatedAt, day)
		expiring := SameDay(rec.ExpiresAt, day)
		if !created && !expiring {
			continue
		}
		out = append(out, DayEntry{Record: rec, Created: created, Expiring: expiring})
	}
	return out
}
