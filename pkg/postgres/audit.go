package postgres

import (
	"context"
	"fmt"

	"github.com/sitemedic/sitemedic/pkg/db"
)

// AppendAuditLog writes one audit entry for a pipeline run
func (d *DB) AppendAuditLog(ctx context.Context, entry *db.AuditLogEntry) error {
	var assignedMedicID *string
	if entry.AssignedMedicID != "" {
		assignedMedicID = &entry.AssignedMedicID
	}
	var failureReason *string
	if entry.FailureReason != "" {
		failureReason = &entry.FailureReason
	}

	candidates := entry.Candidates
	if candidates == nil {
		candidates = []db.AuditCandidate{}
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO match_audit_log (id, org_id, booking_id, assigned_medic_id,
		                             confidence_score, candidates, success, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.OrgID, entry.BookingID, assignedMedicID,
		entry.ConfidenceScore, candidates, entry.Success, failureReason)
	if err != nil {
		return fmt.Errorf("failed to insert audit log entry: %w", err)
	}
	return nil
}

// AppendConflict writes one booking conflict row for operator review
func (d *DB) AppendConflict(ctx context.Context, conflict *db.BookingConflict) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO booking_conflict (id, booking_id, medic_id, conflict_type,
		                              severity, description, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, conflict.ID, conflict.BookingID, conflict.MedicID, conflict.ConflictType,
		conflict.Severity, conflict.Description, conflict.Resolved)
	if err != nil {
		return fmt.Errorf("failed to insert booking conflict: %w", err)
	}
	return nil
}

// ListAuditLog returns the most recent audit entries for an organisation,
// newest first
func (d *DB) ListAuditLog(ctx context.Context, orgID string, limit int) ([]db.AuditLogEntry, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, org_id, booking_id, assigned_medic_id,
		       confidence_score, candidates, success, failure_reason
		FROM match_audit_log
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []db.AuditLogEntry
	for rows.Next() {
		var e db.AuditLogEntry
		var assignedMedicID, failureReason *string
		if err := rows.Scan(
			&e.ID, &e.OrgID, &e.BookingID, &assignedMedicID,
			&e.ConfidenceScore, &e.Candidates, &e.Success, &failureReason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
		}
		if assignedMedicID != nil {
			e.AssignedMedicID = *assignedMedicID
		}
		if failureReason != nil {
			e.FailureReason = *failureReason
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	return entries, nil
}
