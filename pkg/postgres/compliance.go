package postgres

import (
	"context"
	"fmt"

	"github.com/sitemedic/sitemedic/pkg/db"
)

// Check calls the database-side working-time compliance function for a
// proposed shift window. The regulatory arithmetic lives in SQL behind the
// ComplianceChecker port.
func (d *DB) Check(ctx context.Context, medicID, shiftDate, startTime, endTime string) (db.ComplianceVerdict, error) {
	var v db.ComplianceVerdict
	var violationType, violationDetails *string
	err := d.pool.QueryRow(ctx, `
		SELECT compliant, violation_type, violation_details
		FROM check_working_time_compliance($1, $2, $3, $4)
	`, medicID, shiftDate, startTime, endTime).Scan(&v.Compliant, &violationType, &violationDetails)
	if err != nil {
		return db.ComplianceVerdict{}, fmt.Errorf("failed to check compliance for medic %s: %w", medicID, err)
	}
	if violationType != nil {
		v.ViolationType = *violationType
	}
	if violationDetails != nil {
		v.ViolationDetails = *violationDetails
	}
	return v, nil
}
