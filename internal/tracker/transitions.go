package tracker

import "application-tracker/internal/models"

// TransitionPolicy decides whether a status change is allowed.
type TransitionPolicy interface {
	Allow(from, to models.Status) bool
}

// AnyTransition allows every change, including moving out of rejected or
// withdrawn. It is the default.
type AnyTransition struct{}

func (AnyTransition) Allow(_, _ models.Status) bool { return true }

// TransitionTable allows only the listed moves. Staying in the same status is
// always allowed so notes can still be edited.
type TransitionTable map[models.Status][]models.Status

func (t TransitionTable) Allow(from, to models.Status) bool {
	if from == to {
		return true
	}
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StrictTransitions is the forward-only pipeline. Rejected and withdrawn are
// terminal; an offer can still be withdrawn or turned into a rejection.
func StrictTransitions() TransitionTable {
	return TransitionTable{
		models.StatusApplied: {
			models.StatusReviewing, models.StatusInterview, models.StatusOffer,
			models.StatusRejected, models.StatusWithdrawn,
		},
		models.StatusReviewing: {
			models.StatusInterview, models.StatusOffer, models.StatusRejected, models.StatusWithdrawn,
		},
		models.StatusInterview: {
			models.StatusOffer, models.StatusRejected, models.StatusWithdrawn,
		},
		models.StatusOffer: {
			models.StatusRejected, models.StatusWithdrawn,
		},
		models.StatusRejected:  nil,
		models.StatusWithdrawn: nil,
	}
}
