package matcher

import "fmt"

// ConfidenceThreshold is the minimum top-candidate score required to
// auto-confirm an assignment. Scoring exactly at the threshold confirms;
// anything below escalates to manual review.
const ConfidenceThreshold = 50.0

// ReasonNoCandidates is the manual-review reason when filtering leaves an
// empty pool
const ReasonNoCandidates = "No available medics found"

// Outcome is the terminal state of a single pipeline run
type Outcome string

const (
	OutcomeAssigned      Outcome = "assigned"
	OutcomeLowConfidence Outcome = "low_confidence"
	OutcomeNoCandidates  Outcome = "no_candidates"
)

// Decision is the result of applying the confidence threshold to the
// ranked candidate list
type Decision struct {
	Outcome Outcome

	// Winner is the top-ranked candidate, nil when the list was empty
	Winner *Candidate

	RequiresManualApproval bool

	// Reason is the human-readable escalation reason, empty on auto-confirm
	Reason string
}

// Decide applies the confidence threshold to the top-ranked candidate.
// The ranked slice must already be sorted best-first.
func Decide(ranked []Candidate) Decision {
	if len(ranked) == 0 {
		return Decision{
			Outcome:                OutcomeNoCandidates,
			RequiresManualApproval: true,
			Reason:                 ReasonNoCandidates,
		}
	}

	top := ranked[0]
	if top.Score.Total >= ConfidenceThreshold {
		return Decision{
			Outcome: OutcomeAssigned,
			Winner:  &top,
		}
	}

	return Decision{
		Outcome:                OutcomeLowConfidence,
		Winner:                 &top,
		RequiresManualApproval: true,
		Reason: fmt.Sprintf("Top candidate scored %.2f, below the auto-confirm threshold of %.0f",
			top.Score.Total, ConfidenceThreshold),
	}
}
