package mastery

import (
	"time"

	"github.com/conorfennell/notedeck/internal/domain"
)

// Default ladder thresholds.
const (
	LearnAt  = 1  // unfamiliar -> learned
	MasterAt = 3  // learned -> mastered
	DemoteAt = -2 // one tier down, streak reset
)

// Ladder holds the streak thresholds of the promotion ladder.
type Ladder struct {
	LearnAt  int
	MasterAt int
	DemoteAt int
}

// DefaultLadder returns the standard thresholds.
func DefaultLadder() *Ladder {
	return &Ladder{
		LearnAt:  LearnAt,
		MasterAt: MasterAt,
		DemoteAt: DemoteAt,
	}
}

// Grade applies one graded answer to a card's state using the default ladder.
func Grade(state domain.CardState, correct bool, now time.Time) domain.CardState {
	return DefaultLadder().Grade(state, correct, now)
}

// Grade returns the state that follows answering a card correctly or not.
// A single answer moves the card at most one tier.
func (l *Ladder) Grade(state domain.CardState, correct bool, now time.Time) domain.CardState {
	next := domain.CardState{
		Streak: state.Streak,
		Status: state.Status,
	}
	if !next.Status.Valid() {
		next.Status = domain.Unfamiliar
	}
	answered := now
	next.LastAnswered = &answered

	if correct {
		next.Streak++
	} else {
		next.Streak--
	}

	switch {
	case correct && next.Status == domain.Unfamiliar && next.Streak >= l.LearnAt:
		next.Status = domain.Learned
	case correct && next.Status == domain.Learned && next.Streak >= l.MasterAt:
		next.Status = domain.Mastered
	case !correct && next.Streak <= l.DemoteAt:
		next.Status = demote(next.Status)
		// Unfamiliar has nowhere to fall; the reset still keeps the streak near zero.
		next.Streak = 0
	}
	return next
}

func demote(s domain.Status) domain.Status {
	switch s {
	case domain.Mastered:
		return domain.Learned
	default:
		return domain.Unfamiliar
	}
}
