package matcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitemedic/sitemedic/pkg/db"
)

// conflictingStatuses are the booking states that block a medic's calendar
var conflictingStatuses = []string{db.BookingStatusConfirmed, db.BookingStatusInProgress}

// FilterPipeline narrows the medic pool for a booking through a fixed,
// ordered sequence of eligibility stages. Each stage only removes medics,
// never reorders them, and an empty pool short-circuits the remaining
// stages so no further queries or compliance calls are made.
type FilterPipeline struct {
	ledger     CandidateLedger
	compliance ComplianceChecker
	logger     *zap.Logger

	// SkipCompliance disables the regulatory compliance stage. Test
	// harnesses only; production callers must leave it false.
	SkipCompliance bool

	// CheckTimeout bounds each individual compliance call
	CheckTimeout time.Duration
}

// NewFilterPipeline creates a filter pipeline over the given collaborators
func NewFilterPipeline(ledger CandidateLedger, compliance ComplianceChecker, logger *zap.Logger) *FilterPipeline {
	return &FilterPipeline{
		ledger:       ledger,
		compliance:   compliance,
		logger:       logger,
		CheckTimeout: 5 * time.Second,
	}
}

// Filter runs all stages for the booking and returns the surviving medics
// plus one Conflict per medic excluded by a compliance violation. A query
// failure in any stage aborts the run with that error: a failed filter must
// never silently pass candidates through.
func (p *FilterPipeline) Filter(ctx context.Context, booking *db.Booking) ([]db.Medic, []Conflict, error) {
	// Stage 1: organisation scope
	pool, err := p.ledger.FetchMedics(ctx, booking.OrgID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch medic pool: %w", err)
	}
	pool = filterSameOrg(pool, booking.OrgID)
	p.logger.Debug("Filter stage: organisation scope", zap.Int("remaining", len(pool)))
	if len(pool) == 0 {
		return nil, nil, nil
	}

	// Stage 2: availability flag
	pool = filterAvailable(pool, booking.ShiftDate)
	p.logger.Debug("Filter stage: availability flag", zap.Int("remaining", len(pool)))
	if len(pool) == 0 {
		return nil, nil, nil
	}

	// Stage 3: certification possession and expiry
	pool = filterCertified(pool, booking)
	p.logger.Debug("Filter stage: certifications", zap.Int("remaining", len(pool)))
	if len(pool) == 0 {
		return nil, nil, nil
	}

	// Stage 4: calendar conflicts on the shift date
	pool, err = p.filterCalendarConflicts(ctx, booking, pool)
	if err != nil {
		return nil, nil, err
	}
	p.logger.Debug("Filter stage: calendar conflicts", zap.Int("remaining", len(pool)))
	if len(pool) == 0 {
		return nil, nil, nil
	}

	// Stage 5: approved time off
	pool, err = p.filterTimeOff(ctx, booking, pool)
	if err != nil {
		return nil, nil, err
	}
	p.logger.Debug("Filter stage: approved time off", zap.Int("remaining", len(pool)))
	if len(pool) == 0 {
		return nil, nil, nil
	}

	// Stage 6: regulatory compliance
	if p.SkipCompliance {
		p.logger.Warn("Compliance stage skipped by override", zap.String("booking_id", booking.ID))
		return pool, nil, nil
	}
	pool, conflicts := p.filterCompliance(ctx, booking, pool)
	p.logger.Debug("Filter stage: regulatory compliance",
		zap.Int("remaining", len(pool)),
		zap.Int("violations", len(conflicts)))

	return pool, conflicts, nil
}

// filterSameOrg re-asserts organisation scope on the fetched pool. The
// query is already org-scoped; this guards the tenant boundary even if a
// ledger implementation misbehaves.
func filterSameOrg(pool []db.Medic, orgID string) []db.Medic {
	kept := make([]db.Medic, 0, len(pool))
	for _, m := range pool {
		if m.OrgID == orgID {
			kept = append(kept, m)
		}
	}
	return kept
}

// filterAvailable keeps medics flagged available for work whose
// unavailable-until date, if any, ends before the shift date
func filterAvailable(pool []db.Medic, shiftDate string) []db.Medic {
	kept := make([]db.Medic, 0, len(pool))
	for _, m := range pool {
		if !m.AvailableForWork {
			continue
		}
		if m.UnavailableUntil != "" && m.UnavailableUntil >= shiftDate {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// filterCertified keeps medics holding every certification the booking
// requires with an unexpired certificate. A certificate expiring exactly on
// the shift date still covers the shift.
func filterCertified(pool []db.Medic, booking *db.Booking) []db.Medic {
	kept := make([]db.Medic, 0, len(pool))
	for _, m := range pool {
		if booking.RequiresConfinedSpace && !certValid(m.ConfinedSpaceCert, m.ConfinedSpaceExpiry, booking.ShiftDate) {
			continue
		}
		if booking.RequiresTrauma && !certValid(m.TraumaCert, m.TraumaExpiry, booking.ShiftDate) {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// certValid checks possession and expiry independently: the flag alone is
// not enough if the expiry date has passed
func certValid(held bool, expiry, shiftDate string) bool {
	if !held {
		return false
	}
	if expiry != "" && expiry < shiftDate {
		return false
	}
	return true
}

// filterCalendarConflicts excludes medics whose committed bookings on the
// same date overlap the requested window. One batched query covers the
// whole remaining pool.
func (p *FilterPipeline) filterCalendarConflicts(ctx context.Context, booking *db.Booking, pool []db.Medic) ([]db.Medic, error) {
	ids := medicIDs(pool)
	windows, err := p.ledger.FetchOverlappingBookings(ctx, booking.OrgID, booking.ShiftDate, ids, conflictingStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing bookings: %w", err)
	}

	blocked := make(map[string]bool)
	for _, w := range windows {
		if WindowsOverlap(booking.StartTime, booking.EndTime, w.StartTime, w.EndTime) {
			blocked[w.MedicID] = true
		}
	}

	kept := make([]db.Medic, 0, len(pool))
	for _, m := range pool {
		if !blocked[m.ID] {
			kept = append(kept, m)
		}
	}
	return kept, nil
}

// filterTimeOff excludes medics with approved unavailability covering the
// shift date
func (p *FilterPipeline) filterTimeOff(ctx context.Context, booking *db.Booking, pool []db.Medic) ([]db.Medic, error) {
	ids, err := p.ledger.FetchUnavailable(ctx, booking.OrgID, booking.ShiftDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch approved time off: %w", err)
	}

	off := make(map[string]bool, len(ids))
	for _, id := range ids {
		off[id] = true
	}

	kept := make([]db.Medic, 0, len(pool))
	for _, m := range pool {
		if !off[m.ID] {
			kept = append(kept, m)
		}
	}
	return kept, nil
}

// filterCompliance checks each remaining medic against the working-time
// rules. A failing verdict excludes the medic and records a conflict; a
// checker error excludes the medic without one (fail-closed: an unverified
// medic is never offered the shift).
func (p *FilterPipeline) filterCompliance(ctx context.Context, booking *db.Booking, pool []db.Medic) ([]db.Medic, []Conflict) {
	kept := make([]db.Medic, 0, len(pool))
	var conflicts []Conflict

	for _, m := range pool {
		checkCtx, cancel := context.WithTimeout(ctx, p.CheckTimeout)
		verdict, err := p.compliance.Check(checkCtx, m.ID, booking.ShiftDate, booking.StartTime, booking.EndTime)
		cancel()

		if err != nil {
			p.logger.Warn("Compliance check failed, excluding medic",
				zap.String("medic_id", m.ID),
				zap.Error(err))
			continue
		}

		if !verdict.Compliant {
			p.logger.Debug("Medic excluded by compliance violation",
				zap.String("medic_id", m.ID),
				zap.String("violation", verdict.ViolationType))
			conflicts = append(conflicts, Conflict{
				MedicID:       m.ID,
				ViolationType: verdict.ViolationType,
				Description:   verdict.ViolationDetails,
			})
			continue
		}

		kept = append(kept, m)
	}

	return kept, conflicts
}

// WindowsOverlap reports whether two half-open wall-clock intervals
// [start1,end1) and [start2,end2) overlap. Adjacent windows (end1 == start2)
// do not overlap. Times are zero-padded 15:04 strings, so lexicographic
// comparison matches chronological order.
func WindowsOverlap(start1, end1, start2, end2 string) bool {
	return start1 < end2 && end1 > start2
}

func medicIDs(pool []db.Medic) []string {
	ids := make([]string, len(pool))
	for i, m := range pool {
		ids[i] = m.ID
	}
	return ids
}
