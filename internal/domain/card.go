package domain

import "time"

// Card is one term/definition pair within a deck.
type Card struct {
	ID         string `json:"id" yaml:"id" validate:"required"`
	Term       string `json:"term" yaml:"term" validate:"required"`
	Definition string `json:"definition" yaml:"definition" validate:"required"`
	Image      string `json:"image,omitempty" yaml:"image,omitempty"` // display only
}

// Deck is a named collection of cards. Card order carries no meaning for review.
type Deck struct {
	ID             string `json:"id" validate:"required"`
	Title          string `json:"title" validate:"required"`
	Description    string `json:"description,omitempty"`
	UnderglowColor string `json:"underglowColor,omitempty" validate:"omitempty,hexcolor"`
	Cards          []Card `json:"cards" validate:"unique=ID,dive"`
}

// CardIndex returns the position of the card with the given ID, or -1.
func (d *Deck) CardIndex(id string) int {
	for i, c := range d.Cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Status is a card's mastery tier.
type Status string

const (
	Unfamiliar Status = "unfamiliar"
	Learned    Status = "learned"
	Mastered   Status = "mastered"
)

// Valid reports whether s is one of the three tiers.
func (s Status) Valid() bool {
	switch s {
	case Unfamiliar, Learned, Mastered:
		return true
	}
	return false
}

// Rank orders the tiers on the promotion ladder. Unknown values rank as unfamiliar.
func (s Status) Rank() int {
	switch s {
	case Learned:
		return 1
	case Mastered:
		return 2
	default:
		return 0
	}
}

// CardState is the engine-managed review state of a single card.
type CardState struct {
	Streak       int        `json:"streak"`
	Status       Status     `json:"status"`
	LastAnswered *time.Time `json:"lastAnswered"`
}

// NewCardState returns the state of a card that has never been answered.
func NewCardState() CardState {
	return CardState{Status: Unfamiliar}
}

// StateMap holds the working state of every card in a deck, keyed by card ID.
type StateMap map[string]CardState

// Clone returns a deep copy safe to hand to another goroutine.
func (m StateMap) Clone() StateMap {
	out := make(StateMap, len(m))
	for id, s := range m {
		if s.LastAnswered != nil {
			t := *s.LastAnswered
			s.LastAnswered = &t
		}
		out[id] = s
	}
	return out
}

// Get returns the state for a card, defaulting to a fresh state.
func (m StateMap) Get(id string) CardState {
	if s, ok := m[id]; ok {
		return s
	}
	return NewCardState()
}

// Partition lists card indices (positions in Deck.Cards) by status.
type Partition struct {
	Learned    []int `json:"learned"`
	Mastered   []int `json:"mastered"`
	Unfamiliar []int `json:"unfamiliar"`
}

// Progress is the persisted form of a deck's review progress.
type Progress struct {
	Partition
	States StateMap `json:"cardStates,omitempty"`
}
