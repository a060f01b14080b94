package quiz

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/conorfennell/notedeck/internal/domain"
)

// ErrNoCards is returned when a deck has nothing to review.
var ErrNoCards = errors.New("no cards available")

// maxDistractors is the number of wrong options in a multiple-choice question.
const maxDistractors = 3

// Rand is the source of every random draw the selector makes.
// *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// Weights are the percentage chances of each question type. They must sum to 100.
type Weights struct {
	MultipleChoice int `koanf:"multiple-choice" json:"multipleChoice" validate:"gte=0,lte=100"`
	TrueFalse      int `koanf:"true-false" json:"trueFalse" validate:"gte=0,lte=100"`
	Written        int `koanf:"written" json:"written" validate:"gte=0,lte=100"`
}

// DefaultWeights returns the 45/35/20 split.
func DefaultWeights() Weights {
	return Weights{MultipleChoice: 45, TrueFalse: 35, Written: 20}
}

// Validate checks that the weights form a percentage split.
func (w Weights) Validate() error {
	if w.MultipleChoice < 0 || w.TrueFalse < 0 || w.Written < 0 {
		return fmt.Errorf("question weights must not be negative: %+v", w)
	}
	if sum := w.MultipleChoice + w.TrueFalse + w.Written; sum != 100 {
		return fmt.Errorf("question weights must sum to 100, got %d", sum)
	}
	return nil
}

// Selector picks the next card and how to ask about it.
type Selector struct {
	rng     Rand
	weights Weights
}

// NewSelector creates a selector. A nil rng is replaced with a time-seeded source.
func NewSelector(rng Rand, weights Weights) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{rng: rng, weights: weights}
}

// NextCard returns the index of the next card to show. Cards are drawn from the
// lowest tier that has any members; the previous card is skipped when the pool
// has an alternative.
func (s *Selector) NextCard(deck *domain.Deck, states domain.StateMap, previousID string) (int, error) {
	if deck == nil || len(deck.Cards) == 0 {
		return 0, ErrNoCards
	}

	pool := candidatePool(deck, states)
	if len(pool) > 1 && previousID != "" {
		filtered := pool[:0:0]
		for _, idx := range pool {
			if deck.Cards[idx].ID != previousID {
				filtered = append(filtered, idx)
			}
		}
		if len(filtered) > 0 {
			pool = filtered
		}
	}
	return pool[s.rng.Intn(len(pool))], nil
}

func candidatePool(deck *domain.Deck, states domain.StateMap) []int {
	tiers := make(map[domain.Status][]int, 3)
	for i, card := range deck.Cards {
		status := states.Get(card.ID).Status
		if !status.Valid() {
			status = domain.Unfamiliar
		}
		tiers[status] = append(tiers[status], i)
	}
	for _, tier := range []domain.Status{domain.Unfamiliar, domain.Learned, domain.Mastered} {
		if len(tiers[tier]) > 0 {
			return tiers[tier]
		}
	}
	return nil
}

// DrawType draws a question type from a uniform value in [0, 100).
func (s *Selector) DrawType() QuestionType {
	r := s.rng.Float64() * 100
	switch {
	case r < float64(s.weights.MultipleChoice):
		return MultipleChoice
	case r < float64(s.weights.MultipleChoice+s.weights.TrueFalse):
		return TrueFalse
	default:
		return Written
	}
}

// Next builds the next question: card, type, shown side and answer material.
func (s *Selector) Next(deck *domain.Deck, states domain.StateMap, previousID string) (*Question, error) {
	idx, err := s.NextCard(deck, states, previousID)
	if err != nil {
		return nil, err
	}
	qType := s.DrawType()
	isTerm := s.rng.Float64() >= 0.5

	card := deck.Cards[idx]
	q := &Question{
		CardID:         card.ID,
		CardIndex:      idx,
		Type:           qType,
		IsTermQuestion: isTerm,
		Prompt:         promptSide(card, isTerm),
		Answer:         answerSide(card, isTerm),
	}

	switch qType {
	case MultipleChoice:
		q.Options = s.options(deck, idx, isTerm)
	case TrueFalse:
		q.Proposed, q.IsCorrectPair = s.pairing(deck, idx, isTerm)
	}
	return q, nil
}

// options returns the answer plus up to three distractors, shuffled.
func (s *Selector) options(deck *domain.Deck, idx int, isTerm bool) []string {
	others := otherIndices(deck, idx)
	n := min(maxDistractors, len(others))

	// Partial Fisher-Yates: the first n entries become a uniform sample.
	for i := 0; i < n; i++ {
		j := i + s.rng.Intn(len(others)-i)
		others[i], others[j] = others[j], others[i]
	}

	opts := make([]string, 0, n+1)
	opts = append(opts, answerSide(deck.Cards[idx], isTerm))
	for _, o := range others[:n] {
		opts = append(opts, answerSide(deck.Cards[o], isTerm))
	}
	for i := len(opts) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		opts[i], opts[j] = opts[j], opts[i]
	}
	return opts
}

// pairing proposes either the genuine answer or one borrowed from another card.
func (s *Selector) pairing(deck *domain.Deck, idx int, isTerm bool) (string, bool) {
	genuine := answerSide(deck.Cards[idx], isTerm)
	useGenuine := s.rng.Float64() < 0.5

	others := otherIndices(deck, idx)
	if useGenuine || len(others) == 0 {
		return genuine, true
	}
	borrowed := answerSide(deck.Cards[others[s.rng.Intn(len(others))]], isTerm)
	return borrowed, Normalize(borrowed) == Normalize(genuine)
}

func otherIndices(deck *domain.Deck, idx int) []int {
	out := make([]int, 0, len(deck.Cards)-1)
	for i := range deck.Cards {
		if i != idx {
			out = append(out, i)
		}
	}
	return out
}

func promptSide(c domain.Card, isTerm bool) string {
	if isTerm {
		return c.Term
	}
	return c.Definition
}

func answerSide(c domain.Card, isTerm bool) string {
	if isTerm {
		return c.Definition
	}
	return c.Term
}
