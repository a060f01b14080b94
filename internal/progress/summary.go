package progress

import "github.com/conorfennell/notedeck/internal/domain"

// Counts are the sizes of the three status partitions.
type Counts struct {
	Unfamiliar int `json:"unfamiliar"`
	Learned    int `json:"learned"`
	Mastered   int `json:"mastered"`
}

// Summary is the aggregate shown on progress bars.
type Summary struct {
	Total         int     `json:"total"`
	Counts        Counts  `json:"counts"`
	UnfamiliarPct float64 `json:"unfamiliarPct"`
	LearnedPct    float64 `json:"learnedPct"`
	MasteredPct   float64 `json:"masteredPct"`
}

// ComputeSummary partitions the deck's cards by status. Cards without a state
// count as unfamiliar, so the counts always add up to the deck size.
func ComputeSummary(deck *domain.Deck, states domain.StateMap) Summary {
	var sum Summary
	if deck == nil {
		return sum
	}
	p := BuildPartition(deck, states)
	sum.Total = len(deck.Cards)
	sum.Counts = Counts{
		Unfamiliar: len(p.Unfamiliar),
		Learned:    len(p.Learned),
		Mastered:   len(p.Mastered),
	}
	if sum.Total == 0 {
		return sum
	}
	total := float64(sum.Total)
	sum.UnfamiliarPct = float64(sum.Counts.Unfamiliar) / total * 100
	sum.LearnedPct = float64(sum.Counts.Learned) / total * 100
	sum.MasteredPct = float64(sum.Counts.Mastered) / total * 100
	return sum
}

// BuildPartition lists card indices by status.
func BuildPartition(deck *domain.Deck, states domain.StateMap) domain.Partition {
	p := domain.Partition{
		Learned:    []int{},
		Mastered:   []int{},
		Unfamiliar: []int{},
	}
	for i, card := range deck.Cards {
		switch states.Get(card.ID).Status {
		case domain.Learned:
			p.Learned = append(p.Learned, i)
		case domain.Mastered:
			p.Mastered = append(p.Mastered, i)
		default:
			p.Unfamiliar = append(p.Unfamiliar, i)
		}
	}
	return p
}

// Snapshot builds the full persisted payload: partition plus a copy of every
// card's raw state. Cards without a state are written with the default state.
func Snapshot(deck *domain.Deck, states domain.StateMap) domain.Progress {
	raw := make(domain.StateMap, len(deck.Cards))
	for _, card := range deck.Cards {
		raw[card.ID] = states.Get(card.ID)
	}
	return domain.Progress{
		Partition: BuildPartition(deck, states),
		States:    raw.Clone(),
	}
}

// Fresh returns the all-unfamiliar baseline for a deck.
func Fresh(deck *domain.Deck) domain.StateMap {
	states := make(domain.StateMap, len(deck.Cards))
	for _, card := range deck.Cards {
		states[card.ID] = domain.NewCardState()
	}
	return states
}

// Restore rebuilds working card states from saved progress. Raw card states
// win over the partition; states of cards no longer in the deck are dropped
// and cards without either start fresh.
func Restore(deck *domain.Deck, saved *domain.Progress) domain.StateMap {
	states := Fresh(deck)
	if saved == nil {
		return states
	}

	if len(saved.States) > 0 {
		for id, st := range saved.States {
			if _, ok := states[id]; !ok {
				continue // card no longer in the deck
			}
			if !st.Status.Valid() {
				st = domain.NewCardState()
			}
			states[id] = st
		}
		return states
	}

	assign := func(indices []int, status domain.Status) {
		for _, i := range indices {
			if i >= 0 && i < len(deck.Cards) {
				states[deck.Cards[i].ID] = domain.CardState{Status: status}
			}
		}
	}
	assign(saved.Learned, domain.Learned)
	assign(saved.Mastered, domain.Mastered)
	return states
}
