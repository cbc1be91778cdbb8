package matcher

import (
	"context"

	"github.com/sitemedic/sitemedic/pkg/db"
)

// ScoreBreakdown holds the weighted factor scores returned by the score
// engine for one booking/medic pair. A Total of 0 is the engine's
// disqualification sentinel; disqualified candidates never reach ranking.
type ScoreBreakdown struct {
	Total         float64
	Distance      float64
	Qualification float64
	Availability  float64
	Utilization   float64
	Rating        float64
	Performance   float64
	Fairness      float64
}

// Disqualified reports whether the engine rejected this pair outright
func (s ScoreBreakdown) Disqualified() bool {
	return s.Total == 0
}

// Candidate pairs a medic with its score for a single pipeline run.
// Candidates are ephemeral: they live only in the run result and the
// audit entry.
type Candidate struct {
	Medic db.Medic
	Score ScoreBreakdown
}

// Conflict records one medic excluded by a regulatory compliance violation,
// collected during filtering for the audit recorder to persist
type Conflict struct {
	MedicID       string
	ViolationType string
	Description   string
}

// CandidateLedger is the read side of the ledger consumed by the filter
// pipeline. All three queries are org-scoped; implementations must never
// return rows for another organisation.
type CandidateLedger interface {
	// FetchMedics returns every medic belonging to the organisation
	FetchMedics(ctx context.Context, orgID string) ([]db.Medic, error)

	// FetchOverlappingBookings returns the committed shift windows on the
	// given date for the given medics, in one batched query
	FetchOverlappingBookings(ctx context.Context, orgID, shiftDate string, medicIDs []string, statuses []string) ([]db.BookedWindow, error)

	// FetchUnavailable returns the IDs of medics with approved time off
	// covering the given date
	FetchUnavailable(ctx context.Context, orgID, shiftDate string) ([]string, error)
}

// ComplianceChecker verifies a proposed shift window against rest-period
// and weekly-hours rules. A returned error means the check could not be
// performed; callers treat that as a failing verdict (fail-closed).
type ComplianceChecker interface {
	Check(ctx context.Context, medicID, shiftDate, startTime, endTime string) (db.ComplianceVerdict, error)
}

// ScoreEngine computes the multi-factor score for one booking/medic pair.
// The scoring formula itself lives behind this interface (the production
// implementation calls a database-side function); the pipeline only relies
// on the Total==0 disqualification sentinel.
type ScoreEngine interface {
	Score(ctx context.Context, bookingID, medicID string) (ScoreBreakdown, error)
}
