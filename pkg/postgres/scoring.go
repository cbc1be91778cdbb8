package postgres

import (
	"context"
	"fmt"

	"github.com/sitemedic/sitemedic/pkg/core/matcher"
)

// Score calls the database-side scoring function for one booking/medic
// pair. The formula lives entirely in SQL; this adapter only carries the
// breakdown back, including the total==0 disqualification sentinel.
func (d *DB) Score(ctx context.Context, bookingID, medicID string) (matcher.ScoreBreakdown, error) {
	var s matcher.ScoreBreakdown
	err := d.pool.QueryRow(ctx, `
		SELECT total_score, distance_score, qualification_score, availability_score,
		       utilization_score, rating_score, performance_score, fairness_score
		FROM calculate_match_score($1, $2)
	`, bookingID, medicID).Scan(
		&s.Total, &s.Distance, &s.Qualification, &s.Availability,
		&s.Utilization, &s.Rating, &s.Performance, &s.Fairness,
	)
	if err != nil {
		return matcher.ScoreBreakdown{}, fmt.Errorf("failed to score medic %s: %w", medicID, err)
	}
	return s, nil
}
