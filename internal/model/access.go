package model

import (
	"time"
)

// Owner identifies the resident who created an access record. It is carried
// for display only and never participates in lifecycle decisions.
type Owner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone_number"`
}

// AccessRecord is one guest access grant as held in a view's working set.
// ID and CreatedAt are assigned by the upstream store and immutable;
// ExpiresAt and QRPayload change only when the store returns a renewed
// record. QRPayload is opaque base64 text and is never inspected here.
type AccessRecord struct {
	ID         string    `json:"id"`
	GuestName  string    `json:"name"`
	GuestPhone string    `json:"phone"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	QRPayload  string    `json:"qr_code_data,omitempty"`
	Owner      Owner     `json:"user"`
}

// CreateAccessParams contains the caller-supplied fields for a new grant.
type CreateAccessParams struct {
	GuestName       string `json:"name"`
	GuestPhone      string `json:"phone"`
	DurationMinutes int    `json:"duration_minutes"`
}

// UpdateAccessParams carries the optional fields of an update; nil fields
// are left unchanged by the store.
type UpdateAccessParams struct {
	GuestName       *string `json:"name,omitempty"`
	GuestPhone      *string `json:"phone,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
}

// RecordSummary is what the upstream validation path recovers from a QR
// payload.
type RecordSummary struct {
	GuestName  string    `json:"name"`
	GuestPhone string    `json:"phone"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Owner      Owner     `json:"user"`
}

// ValidationResult is the outcome of validating a scanned QR payload.
type ValidationResult struct {
	Valid   bool           `json:"valid"`
	Message string         `json:"message"`
	Data    *RecordSummary `json:"data,omitempty"`
}
