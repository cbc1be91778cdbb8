package db

import "context"

// Ledger defines the full set of ledger operations used by the matching
// pipeline and its supporting commands. postgres.DB implements this
// interface; services declare narrower per-service subsets of it.
type Ledger interface {
	GetBooking(ctx context.Context, bookingID string) (*Booking, error)
	InsertBookings(ctx context.Context, bookings []Booking) (int, error)

	FetchMedics(ctx context.Context, orgID string) ([]Medic, error)
	FetchOverlappingBookings(ctx context.Context, orgID, shiftDate string, medicIDs []string, statuses []string) ([]BookedWindow, error)
	FetchUnavailable(ctx context.Context, orgID, shiftDate string) ([]string, error)

	CommitAssignment(ctx context.Context, booking *Booking, medicID string, score float64, breakdown AuditCandidate) error
	FlagManualReview(ctx context.Context, bookingID string, score float64, breakdown *AuditCandidate, reason string) error
	RecordNoMatch(ctx context.Context, bookingID, reason string) error

	AppendAuditLog(ctx context.Context, entry *AuditLogEntry) error
	AppendConflict(ctx context.Context, conflict *BookingConflict) error
	ListAuditLog(ctx context.Context, orgID string, limit int) ([]AuditLogEntry, error)

	IncrementFairnessCounters(ctx context.Context, orgID, medicID, month string) error
}
