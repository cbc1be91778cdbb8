package postgres

import (
	"context"
	"fmt"

	"github.com/sitemedic/sitemedic/pkg/db"
)

// FetchMedics returns every medic belonging to the organisation
func (d *DB) FetchMedics(ctx context.Context, orgID string) ([]db.Medic, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, org_id, name, postcode,
		       confined_space_cert, to_char(confined_space_expiry, 'YYYY-MM-DD'),
		       trauma_cert, to_char(trauma_expiry, 'YYYY-MM-DD'),
		       rating, incident_reporting_rate,
		       available_for_work, to_char(unavailable_until, 'YYYY-MM-DD')
		FROM medic
		WHERE org_id = $1
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query medics: %w", err)
	}
	defer rows.Close()

	var medics []db.Medic
	for rows.Next() {
		var m db.Medic
		var confinedExpiry, traumaExpiry, unavailableUntil *string
		if err := rows.Scan(
			&m.ID, &m.OrgID, &m.Name, &m.Postcode,
			&m.ConfinedSpaceCert, &confinedExpiry,
			&m.TraumaCert, &traumaExpiry,
			&m.Rating, &m.IncidentReportingRate,
			&m.AvailableForWork, &unavailableUntil,
		); err != nil {
			return nil, fmt.Errorf("failed to scan medic: %w", err)
		}
		if confinedExpiry != nil {
			m.ConfinedSpaceExpiry = *confinedExpiry
		}
		if traumaExpiry != nil {
			m.TraumaExpiry = *traumaExpiry
		}
		if unavailableUntil != nil {
			m.UnavailableUntil = *unavailableUntil
		}
		medics = append(medics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating medics: %w", err)
	}

	return medics, nil
}

// FetchOverlappingBookings returns the committed shift windows on the given
// date for the given medics. One query covers the whole candidate set.
func (d *DB) FetchOverlappingBookings(ctx context.Context, orgID, shiftDate string, medicIDs []string, statuses []string) ([]db.BookedWindow, error) {
	if len(medicIDs) == 0 {
		return nil, nil
	}

	rows, err := d.pool.Query(ctx, `
		SELECT medic_id, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI')
		FROM booking
		WHERE org_id = $1
		  AND shift_date = $2
		  AND medic_id = ANY($3)
		  AND status = ANY($4)
	`, orgID, shiftDate, medicIDs, statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing bookings: %w", err)
	}
	defer rows.Close()

	var windows []db.BookedWindow
	for rows.Next() {
		var w db.BookedWindow
		if err := rows.Scan(&w.MedicID, &w.StartTime, &w.EndTime); err != nil {
			return nil, fmt.Errorf("failed to scan booked window: %w", err)
		}
		windows = append(windows, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating booked windows: %w", err)
	}

	return windows, nil
}

// FetchUnavailable returns the IDs of medics with approved time off
// covering the given date
func (d *DB) FetchUnavailable(ctx context.Context, orgID, shiftDate string) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT medic_id
		FROM medic_time_off
		WHERE org_id = $1
		  AND status = 'approved'
		  AND $2::date BETWEEN start_date AND end_date
	`, orgID, shiftDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved time off: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan time-off row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating time-off rows: %w", err)
	}

	return ids, nil
}
