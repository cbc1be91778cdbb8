package matcher

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sitemedic/sitemedic/pkg/db"
)

// maxConcurrentScores bounds parallel score engine calls per run. Scoring
// is read-only per medic, so concurrent calls cannot interfere.
const maxConcurrentScores = 8

// Ranker scores the filtered pool and orders it best-first
type Ranker struct {
	engine ScoreEngine
	logger *zap.Logger

	// ScoreTimeout bounds each individual score engine call
	ScoreTimeout time.Duration
}

// NewRanker creates a Ranker over the given score engine
func NewRanker(engine ScoreEngine, logger *zap.Logger) *Ranker {
	return &Ranker{
		engine:       engine,
		logger:       logger,
		ScoreTimeout: 5 * time.Second,
	}
}

// Rank calls the score engine once per medic and returns the surviving
// candidates sorted by total score descending, ties broken by medic ID
// ascending so equal scores always rank the same way. A scoring error for
// one medic drops that medic only; disqualified candidates (Total == 0)
// are dropped before ranking.
func (r *Ranker) Rank(ctx context.Context, booking *db.Booking, pool []db.Medic) []Candidate {
	scored := make([]*Candidate, len(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentScores)

	for i, m := range pool {
		g.Go(func() error {
			scoreCtx, cancel := context.WithTimeout(gctx, r.ScoreTimeout)
			defer cancel()

			breakdown, err := r.engine.Score(scoreCtx, booking.ID, m.ID)
			if err != nil {
				// Non-fatal: one scorer failure must not abort the run
				r.logger.Warn("Scoring failed, dropping medic",
					zap.String("medic_id", m.ID),
					zap.Error(err))
				return nil
			}

			if breakdown.Disqualified() {
				r.logger.Debug("Medic disqualified by score engine", zap.String("medic_id", m.ID))
				return nil
			}

			scored[i] = &Candidate{Medic: m, Score: breakdown}
			return nil
		})
	}
	g.Wait()

	candidates := make([]Candidate, 0, len(pool))
	for _, c := range scored {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score.Total != candidates[j].Score.Total {
			return candidates[i].Score.Total > candidates[j].Score.Total
		}
		return candidates[i].Medic.ID < candidates[j].Medic.ID
	})

	return candidates
}
