package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Upstream call timeout
const UpstreamTimeout = 10 * time.Second

// Background job intervals
const (
	CleanupJobInterval   = 5 * time.Minute
	StatsRefreshInterval = 5 * time.Minute
)

// Renewal duration applied when the caller does not specify one
const DefaultRenewMinutes = 60

// Maximum grant duration a resident may request at creation
const MaxGrantMinutes = 30 * 24 * 60

// Default rate limiting
const (
	DefaultRateLimitPerMin  = 60
	LoginRateLimitPerMin    = 5
	ValidateRateLimitPerMin = 30
)
