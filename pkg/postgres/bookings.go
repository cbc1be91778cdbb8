package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sitemedic/sitemedic/pkg/db"
)

// GetBooking retrieves one booking by ID
func (d *DB) GetBooking(ctx context.Context, bookingID string) (*db.Booking, error) {
	var b db.Booking
	var medicID, coverRef *string
	err := d.pool.QueryRow(ctx, `
		SELECT id, org_id, client_id, site_postcode,
		       to_char(shift_date, 'YYYY-MM-DD'),
		       to_char(start_time, 'HH24:MI'),
		       to_char(end_time, 'HH24:MI'),
		       required_hours, requires_confined_space, requires_trauma,
		       status, medic_id, auto_matched, requires_manual_approval, cover_ref
		FROM booking
		WHERE id = $1
	`, bookingID).Scan(
		&b.ID, &b.OrgID, &b.ClientID, &b.SitePostcode,
		&b.ShiftDate, &b.StartTime, &b.EndTime,
		&b.RequiredHours, &b.RequiresConfinedSpace, &b.RequiresTrauma,
		&b.Status, &medicID, &b.AutoMatched, &b.RequiresManualApproval, &coverRef,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query booking: %w", err)
	}
	if medicID != nil {
		b.MedicID = *medicID
	}
	if coverRef != nil {
		b.CoverRef = *coverRef
	}
	return &b, nil
}

// InsertBookings inserts booking records, skipping rows whose cover
// reference already exists, and returns the number actually inserted
func (d *DB) InsertBookings(ctx context.Context, bookings []db.Booking) (int, error) {
	if len(bookings) == 0 {
		return 0, nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, b := range bookings {
		var coverRef *string
		if b.CoverRef != "" {
			coverRef = &b.CoverRef
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO booking (id, org_id, client_id, site_postcode, shift_date,
			                     start_time, end_time, required_hours,
			                     requires_confined_space, requires_trauma, status, cover_ref)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (cover_ref) DO NOTHING
		`, b.ID, b.OrgID, b.ClientID, b.SitePostcode, b.ShiftDate,
			b.StartTime, b.EndTime, b.RequiredHours,
			b.RequiresConfinedSpace, b.RequiresTrauma, b.Status, coverRef)
		if err != nil {
			return 0, fmt.Errorf("failed to insert booking: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// CommitAssignment attaches the winning medic to the booking and claims the
// shift window under the exclusion constraint. Losing the race against a
// concurrent run surfaces as db.ErrAssignmentConflict.
func (d *DB) CommitAssignment(ctx context.Context, booking *db.Booking, medicID string, score float64, breakdown db.AuditCandidate) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO medic_shift (booking_id, medic_id, shift_date, shift_window)
		VALUES ($1, $2, $3, tsrange($3::date + $4::time, $3::date + $5::time, '[)'))
	`, booking.ID, medicID, booking.ShiftDate, booking.StartTime, booking.EndTime)
	if isExclusionViolation(err) {
		return db.ErrAssignmentConflict
	}
	if err != nil {
		return fmt.Errorf("failed to claim shift window: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE booking
		SET medic_id = $2,
		    status = $3,
		    auto_matched = TRUE,
		    requires_manual_approval = FALSE,
		    manual_review_reason = NULL,
		    match_score = $4,
		    match_criteria = $5
		WHERE id = $1 AND org_id = $6
	`, booking.ID, medicID, db.BookingStatusConfirmed, score, breakdown, booking.OrgID)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return db.ErrAssignmentConflict
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FlagManualReview marks the booking for operator review without assigning
// a medic, keeping the would-be winner's score for context
func (d *DB) FlagManualReview(ctx context.Context, bookingID string, score float64, breakdown *db.AuditCandidate, reason string) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE booking
		SET auto_matched = TRUE,
		    requires_manual_approval = TRUE,
		    manual_review_reason = $2,
		    match_score = $3,
		    match_criteria = $4
		WHERE id = $1
	`, bookingID, reason, score, breakdown)
	if err != nil {
		return fmt.Errorf("failed to flag booking for manual review: %w", err)
	}
	return nil
}

// RecordNoMatch marks the booking as needing manual attention because no
// eligible medic was found
func (d *DB) RecordNoMatch(ctx context.Context, bookingID, reason string) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE booking
		SET auto_matched = TRUE,
		    requires_manual_approval = TRUE,
		    manual_review_reason = $2,
		    match_score = NULL,
		    match_criteria = NULL
		WHERE id = $1
	`, bookingID, reason)
	if err != nil {
		return fmt.Errorf("failed to record no-match outcome: %w", err)
	}
	return nil
}

// isExclusionViolation reports whether the error is the double-booking
// guard firing (exclusion or unique constraint)
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23P01" || pgErr.Code == "23505"
}
