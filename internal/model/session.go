package model

import (
	"time"
)

// Session is a gateway login session. The upstream access token is held
// verbatim so the gateway can call the record store on the resident's
// behalf; the gateway token itself is stored only as a SHA-256 hash.
type Session struct {
	ID            string    `db:"id" json:"id"`
	TokenHash     string    `db:"token_hash" json:"-"`
	Username      string    `db:"username" json:"username"`
	UpstreamToken string    `db:"upstream_token" json:"-"`
	ExpiresAt     time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// CreateSessionParams contains the fields for persisting a new session.
type CreateSessionParams struct {
	TokenHash     string
	Username      string
	UpstreamToken string
	ExpiresAt     time.Time
}

// UserSummary is the upstream registration response.
type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone_number"`
}
