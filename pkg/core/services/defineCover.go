package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/sitemedic/sitemedic/internal/config"
	"github.com/sitemedic/sitemedic/pkg/db"
)

// DefineCoverStore defines the database operations needed to materialise
// standing cover rules
type DefineCoverStore interface {
	InsertBookings(ctx context.Context, bookings []db.Booking) (int, error)
}

// DefineCoverResult summarises one expansion run
type DefineCoverResult struct {
	// Generated is the number of occurrence dates expanded across all rules
	Generated int

	// Inserted is the number of new bookings created; re-runs skip dates
	// that already have a booking for the same rule
	Inserted int
}

// DefineCover expands the configured standing cover rules into pending
// bookings over the given horizon. Each occurrence date gets a booking
// keyed by rule and date, so running the command twice never duplicates
// coverage.
func DefineCover(
	ctx context.Context,
	store DefineCoverStore,
	cfg *config.Config,
	logger *zap.Logger,
	horizonDays int,
) (*DefineCoverResult, error) {
	if horizonDays <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d days", horizonDays)
	}
	if len(cfg.StandingCover) == 0 {
		return nil, fmt.Errorf("no standing cover rules configured")
	}

	now := time.Now()
	until := now.AddDate(0, 0, horizonDays)
	logger.Info("Expanding standing cover rules",
		zap.Int("rules", len(cfg.StandingCover)),
		zap.String("until", until.Format("2006-01-02")))

	var bookings []db.Booking
	for _, cover := range cfg.StandingCover {
		rule, err := rrule.StrToRRule(cover.RRule)
		if err != nil {
			// Config validation checks rrule syntax, so this only fires when
			// the service is driven with an unvalidated config
			return nil, fmt.Errorf("invalid rrule for cover %q: %w", cover.Key, err)
		}

		occurrences := rule.Between(now, until, true)
		logger.Debug("Expanded cover rule",
			zap.String("key", cover.Key),
			zap.Int("occurrences", len(occurrences)))

		for _, occ := range occurrences {
			date := occ.Format("2006-01-02")
			bookings = append(bookings, db.Booking{
				ID:                    uuid.NewString(),
				OrgID:                 cover.OrgID,
				ClientID:              cover.ClientID,
				SitePostcode:          cover.SitePostcode,
				ShiftDate:             date,
				StartTime:             cover.StartTime,
				EndTime:               cover.EndTime,
				RequiredHours:         cover.RequiredHours,
				RequiresConfinedSpace: cover.RequiresConfinedSpace,
				RequiresTrauma:        cover.RequiresTrauma,
				Status:                db.BookingStatusPending,
				CoverRef:              fmt.Sprintf("%s:%s", cover.Key, date),
			})
		}
	}

	inserted, err := store.InsertBookings(ctx, bookings)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cover bookings: %w", err)
	}

	logger.Info("Standing cover expanded",
		zap.Int("generated", len(bookings)),
		zap.Int("inserted", inserted))

	return &DefineCoverResult{
		Generated: len(bookings),
		Inserted:  inserted,
	}, nil
}
