package postgres

import (
	"context"
	"fmt"
)

// IncrementFairnessCounters bumps the medic's monthly tallies after an
// auto-confirmed assignment. The first assignment in a month creates the
// row as offered=1, worked=0; later assignments increment both counters.
func (d *DB) IncrementFairnessCounters(ctx context.Context, orgID, medicID, month string) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO fairness_counter (org_id, medic_id, month, shifts_offered, shifts_worked)
		VALUES ($1, $2, $3, 1, 0)
		ON CONFLICT (org_id, medic_id, month) DO UPDATE
		SET shifts_offered = fairness_counter.shifts_offered + 1,
		    shifts_worked = fairness_counter.shifts_worked + 1
	`, orgID, medicID, month)
	if err != nil {
		return fmt.Errorf("failed to update fairness counters: %w", err)
	}
	return nil
}
