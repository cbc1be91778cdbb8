package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitemedic/sitemedic/pkg/core/matcher"
	"github.com/sitemedic/sitemedic/pkg/db"
)

// ErrInvalidBookingID marks client input rejected before any ledger access
var ErrInvalidBookingID = errors.New("invalid booking id")

// reasonAssignmentRace is the manual-review reason used when the commit
// loses a double-booking race against a concurrent run
const reasonAssignmentRace = "Selected medic was booked by a concurrent assignment; needs manual reconciliation"

// resultCandidateLimit caps how many ranked candidates the run result
// carries back to the caller. The audit entry always keeps the full list.
const resultCandidateLimit = 5

// MatchBookingStore defines the ledger operations needed to match a booking
type MatchBookingStore interface {
	matcher.CandidateLedger

	GetBooking(ctx context.Context, bookingID string) (*db.Booking, error)

	CommitAssignment(ctx context.Context, booking *db.Booking, medicID string, score float64, breakdown db.AuditCandidate) error
	FlagManualReview(ctx context.Context, bookingID string, score float64, breakdown *db.AuditCandidate, reason string) error
	RecordNoMatch(ctx context.Context, bookingID, reason string) error

	AppendAuditLog(ctx context.Context, entry *db.AuditLogEntry) error
	AppendConflict(ctx context.Context, conflict *db.BookingConflict) error
	IncrementFairnessCounters(ctx context.Context, orgID, medicID, month string) error
}

// MatchBookingResult is the structured outcome of one pipeline run
type MatchBookingResult struct {
	BookingID string
	Outcome   matcher.Outcome

	// AssignedMedicID is empty unless the run auto-confirmed an assignment
	AssignedMedicID string
	ConfidenceScore float64

	// ScoreBreakdown is the winner's (or would-be winner's) breakdown,
	// nil when no candidates survived filtering
	ScoreBreakdown *matcher.ScoreBreakdown

	// Candidates holds the top-ranked candidates, capped at five
	Candidates []matcher.Candidate

	RequiresManualApproval bool
	Reason                 string
}

// MatchBooking runs the full assignment pipeline for one booking: filter
// the medic pool, rank survivors, apply the confidence threshold, commit or
// escalate, then record audit and fairness bookkeeping.
//
// skipCompliance disables the regulatory compliance filter stage and exists
// for test harnesses only.
func MatchBooking(
	ctx context.Context,
	store MatchBookingStore,
	compliance matcher.ComplianceChecker,
	engine matcher.ScoreEngine,
	logger *zap.Logger,
	bookingID string,
	skipCompliance bool,
) (*MatchBookingResult, error) {
	if err := uuid.Validate(bookingID); err != nil {
		return nil, fmt.Errorf("%w: %q is not a valid UUID", ErrInvalidBookingID, bookingID)
	}

	logger.Debug("Starting matchBooking",
		zap.String("booking_id", bookingID),
		zap.Bool("skip_compliance", skipCompliance))

	booking, err := store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking %s: %w", bookingID, err)
	}

	// Filter the pool down to eligible candidates
	pipeline := matcher.NewFilterPipeline(store, compliance, logger)
	pipeline.SkipCompliance = skipCompliance
	pool, conflicts, err := pipeline.Filter(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("candidate filtering failed: %w", err)
	}
	logger.Debug("Filtering complete",
		zap.Int("eligible", len(pool)),
		zap.Int("compliance_conflicts", len(conflicts)))

	// Score and rank survivors
	ranker := matcher.NewRanker(engine, logger)
	ranked := ranker.Rank(ctx, booking, pool)
	logger.Debug("Ranking complete", zap.Int("candidates", len(ranked)))

	decision := matcher.Decide(ranked)
	logger.Info("Decision made",
		zap.String("booking_id", booking.ID),
		zap.String("outcome", string(decision.Outcome)))

	result, err := commitDecision(ctx, store, logger, booking, decision)
	if err != nil {
		return nil, err
	}
	result.Candidates = topCandidates(ranked)

	// Audit and fairness are best-effort: failures here are logged but
	// never undo the committed outcome
	recordAudit(ctx, store, logger, booking, ranked, conflicts, result)
	if result.Outcome == matcher.OutcomeAssigned {
		trackFairness(ctx, store, logger, booking, result.AssignedMedicID)
	}

	return result, nil
}

// commitDecision moves the booking into its terminal state for this run.
// Persistence failures on this path are fatal: the booking must end up in a
// well-defined state.
func commitDecision(
	ctx context.Context,
	store MatchBookingStore,
	logger *zap.Logger,
	booking *db.Booking,
	decision matcher.Decision,
) (*MatchBookingResult, error) {
	result := &MatchBookingResult{
		BookingID:              booking.ID,
		Outcome:                decision.Outcome,
		RequiresManualApproval: decision.RequiresManualApproval,
		Reason:                 decision.Reason,
	}
	if decision.Winner != nil {
		result.ConfidenceScore = decision.Winner.Score.Total
		breakdown := decision.Winner.Score
		result.ScoreBreakdown = &breakdown
	}

	switch decision.Outcome {
	case matcher.OutcomeNoCandidates:
		if err := store.RecordNoMatch(ctx, booking.ID, decision.Reason); err != nil {
			return nil, fmt.Errorf("failed to record no-match outcome: %w", err)
		}

	case matcher.OutcomeLowConfidence:
		breakdown := candidateToAudit(*decision.Winner)
		if err := store.FlagManualReview(ctx, booking.ID, decision.Winner.Score.Total, &breakdown, decision.Reason); err != nil {
			return nil, fmt.Errorf("failed to flag booking for manual review: %w", err)
		}

	case matcher.OutcomeAssigned:
		winner := *decision.Winner
		breakdown := candidateToAudit(winner)
		err := store.CommitAssignment(ctx, booking, winner.Medic.ID, winner.Score.Total, breakdown)
		if errors.Is(err, db.ErrAssignmentConflict) {
			// Lost the double-booking race to a concurrent run. Expected,
			// recoverable: escalate instead of retrying.
			logger.Warn("Assignment lost double-booking race",
				zap.String("booking_id", booking.ID),
				zap.String("medic_id", winner.Medic.ID))
			result.Outcome = matcher.OutcomeLowConfidence
			result.RequiresManualApproval = true
			result.Reason = reasonAssignmentRace
			if err := store.FlagManualReview(ctx, booking.ID, winner.Score.Total, &breakdown, reasonAssignmentRace); err != nil {
				return nil, fmt.Errorf("failed to flag booking after losing assignment race: %w", err)
			}
			return result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to commit assignment: %w", err)
		}
		result.AssignedMedicID = winner.Medic.ID
		logger.Info("Assignment committed",
			zap.String("booking_id", booking.ID),
			zap.String("medic_id", winner.Medic.ID),
			zap.Float64("score", winner.Score.Total))
	}

	return result, nil
}

// recordAudit writes the run's audit entry and any compliance conflict rows.
// Exactly one audit entry is attempted per run regardless of outcome.
func recordAudit(
	ctx context.Context,
	store MatchBookingStore,
	logger *zap.Logger,
	booking *db.Booking,
	ranked []matcher.Candidate,
	conflicts []matcher.Conflict,
	result *MatchBookingResult,
) {
	entry := &db.AuditLogEntry{
		ID:              uuid.NewString(),
		OrgID:           booking.OrgID,
		BookingID:       booking.ID,
		AssignedMedicID: result.AssignedMedicID,
		ConfidenceScore: result.ConfidenceScore,
		Success:         result.Outcome == matcher.OutcomeAssigned && result.AssignedMedicID != "",
		FailureReason:   result.Reason,
	}
	entry.Candidates = make([]db.AuditCandidate, len(ranked))
	for i, c := range ranked {
		entry.Candidates[i] = candidateToAudit(c)
	}

	if err := store.AppendAuditLog(ctx, entry); err != nil {
		logger.Error("Failed to write audit log entry",
			zap.String("booking_id", booking.ID),
			zap.Error(err))
	}

	for _, c := range conflicts {
		conflict := &db.BookingConflict{
			ID:           uuid.NewString(),
			BookingID:    booking.ID,
			MedicID:      c.MedicID,
			ConflictType: c.ViolationType,
			Severity:     "critical",
			Description:  c.Description,
		}
		if err := store.AppendConflict(ctx, conflict); err != nil {
			logger.Error("Failed to write booking conflict",
				zap.String("booking_id", booking.ID),
				zap.String("medic_id", c.MedicID),
				zap.Error(err))
		}
	}
}

// trackFairness bumps the winner's monthly counters. Only auto-confirmed
// assignments count; escalated runs leave the counters untouched.
func trackFairness(ctx context.Context, store MatchBookingStore, logger *zap.Logger, booking *db.Booking, medicID string) {
	month := shiftMonth(booking.ShiftDate)
	if err := store.IncrementFairnessCounters(ctx, booking.OrgID, medicID, month); err != nil {
		logger.Error("Failed to update fairness counters",
			zap.String("medic_id", medicID),
			zap.Error(err))
	}
}

// shiftMonth extracts the 2006-01 month key from a shift date
func shiftMonth(shiftDate string) string {
	if len(shiftDate) >= 7 {
		return shiftDate[:7]
	}
	return shiftDate
}

func topCandidates(ranked []matcher.Candidate) []matcher.Candidate {
	if len(ranked) > resultCandidateLimit {
		ranked = ranked[:resultCandidateLimit]
	}
	return ranked
}

func candidateToAudit(c matcher.Candidate) db.AuditCandidate {
	return db.AuditCandidate{
		MedicID:            c.Medic.ID,
		Name:               c.Medic.Name,
		TotalScore:         c.Score.Total,
		DistanceScore:      c.Score.Distance,
		QualificationScore: c.Score.Qualification,
		AvailabilityScore:  c.Score.Availability,
		UtilizationScore:   c.Score.Utilization,
		RatingScore:        c.Score.Rating,
		PerformanceScore:   c.Score.Performance,
		FairnessScore:      c.Score.Fairness,
	}
}
