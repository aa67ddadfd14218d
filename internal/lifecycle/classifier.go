// Package lifecycle derives the display state of an access record from its
// expiry and a caller-supplied instant. Every view goes through these
// functions; there is no other expiry arithmetic in the gateway. Callers
// sample the clock once per request and pass the same instant to every call
// so a record cannot change state mid-computation.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/keurgui/access-gateway-go/internal/model"
)

// ExpiringSoonWindow is how close to expiry a record is flagged as
// expiring-soon. The flag is display-only: an expiring-soon code is still
// usable.
const ExpiringSoonWindow = 2 * time.Hour

// ExpiredMarker is the time-remaining string for a record at or past expiry.
const ExpiredMarker = "expired"

// Classify returns the lifecycle state of rec at instant now. The expiry
// boundary is closed on the expired side: a record whose ExpiresAt equals
// now is already expired.
func Classify(rec model.AccessRecord, now time.Time) model.AccessState {
	remaining := rec.ExpiresAt.Sub(now)
	switch {
	case remaining <= 0:
		return model.StateExpired
	case remaining <= ExpiringSoonWindow:
		return model.StateExpiringSoon
	default:
		return model.StateActive
	}
}

// Usable reports whether the record still grants entry at instant now.
// Expiring-soon does not gate usability.
func Usable(rec model.AccessRecord, now time.Time) bool {
	return Classify(rec, now) != model.StateExpired
}

// TimeRemaining formats the validity left on rec at instant now into the
// coarsest two non-zero units, working in whole minutes: "Nm" under an
// hour, "Xh Ym" under a day, "Dd Hh" beyond. Zero lower units are omitted.
// A non-positive difference yields ExpiredMarker.
func TimeRemaining(rec model.AccessRecord, now time.Time) string {
	minutes := int(rec.ExpiresAt.Sub(now) / time.Minute)
	if minutes <= 0 {
		return ExpiredMarker
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	minutes = minutes % 60
	if hours < 24 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	hours = hours % 24
	if hours > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// TimeSince formats how long ago t was relative to now, for the
// recent-activity feed. Ages of a week or more fall back to the local date.
func TimeSince(t, now time.Time) string {
	minutes := int(now.Sub(t) / time.Minute)
	if minutes < 1 {
		return "just now"
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd ago", days)
	}
	return t.Format("2006-01-02")
}
