package model

// AccessState is the lifecycle state of a record, derived from its expiry
// and the current instant. It is recomputed on every read, never stored.
type AccessState string

const (
	StateActive       AccessState = "active"
	StateExpiringSoon AccessState = "expiring_soon"
	StateExpired      AccessState = "expired"
)

// StatusFilter selects records by lifecycle status.
type StatusFilter string

const (
	StatusAll     StatusFilter = "all"
	StatusActive  StatusFilter = "active"
	StatusExpired StatusFilter = "expired"
	StatusToday   StatusFilter = "today"
)

// DateWindow selects records by creation date relative to the current day.
type DateWindow string

const (
	WindowAll    DateWindow = "all"
	WindowToday  DateWindow = "today"
	Window7Days  DateWindow = "week"
	Window30Days DateWindow = "month"
)

// OperationKind distinguishes the two mutating operations the coordinator
// tracks in-flight markers for.
type OperationKind string

const (
	OpRenew  OperationKind = "renew"
	OpRevoke OperationKind = "revoke"
)
