package quiz

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/notedeck/internal/domain"
)

// fixedRand replays canned draws.
type fixedRand struct {
	floats []float64
	ints   []int
}

func (r *fixedRand) Float64() float64 {
	f := r.floats[0]
	r.floats = r.floats[1:]
	return f
}

func (r *fixedRand) Intn(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	i := r.ints[0] % n
	r.ints = r.ints[1:]
	return i
}

func makeDeck(n int) *domain.Deck {
	d := &domain.Deck{ID: "deck", Title: "Deck"}
	for i := 0; i < n; i++ {
		d.Cards = append(d.Cards, domain.Card{
			ID:         fmt.Sprintf("c%d", i),
			Term:       fmt.Sprintf("term %d", i),
			Definition: fmt.Sprintf("definition %d", i),
		})
	}
	return d
}

func seeded() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestNextCardPriorityPool(t *testing.T) {
	deck := makeDeck(4)

	t.Run("unfamiliar cards first", func(t *testing.T) {
		states := domain.StateMap{
			"c0": {Status: domain.Mastered},
			"c1": {Status: domain.Learned},
			"c2": {Status: domain.Unfamiliar},
			"c3": {Status: domain.Mastered},
		}
		s := NewSelector(seeded(), DefaultWeights())
		for i := 0; i < 100; i++ {
			idx, err := s.NextCard(deck, states, "")
			require.NoError(t, err)
			assert.Equal(t, 2, idx)
		}
	})

	t.Run("learned cards when nothing is unfamiliar", func(t *testing.T) {
		states := domain.StateMap{
			"c0": {Status: domain.Mastered},
			"c1": {Status: domain.Learned},
			"c2": {Status: domain.Learned},
			"c3": {Status: domain.Mastered},
		}
		s := NewSelector(seeded(), DefaultWeights())
		for i := 0; i < 100; i++ {
			idx, err := s.NextCard(deck, states, "")
			require.NoError(t, err)
			assert.Contains(t, []int{1, 2}, idx)
		}
	})

	t.Run("mastered cards when everything is mastered", func(t *testing.T) {
		states := domain.StateMap{}
		for _, c := range deck.Cards {
			states[c.ID] = domain.CardState{Status: domain.Mastered, Streak: 3}
		}
		s := NewSelector(seeded(), DefaultWeights())
		seen := map[int]bool{}
		for i := 0; i < 200; i++ {
			idx, err := s.NextCard(deck, states, "")
			require.NoError(t, err)
			seen[idx] = true
		}
		assert.Len(t, seen, 4)
	})

	t.Run("missing states count as unfamiliar", func(t *testing.T) {
		states := domain.StateMap{
			"c0": {Status: domain.Learned},
			"c1": {Status: domain.Learned},
			"c2": {Status: domain.Learned},
		}
		s := NewSelector(seeded(), DefaultWeights())
		idx, err := s.NextCard(deck, states, "")
		require.NoError(t, err)
		assert.Equal(t, 3, idx)
	})
}

func TestNextCardAvoidsRepeat(t *testing.T) {
	deck := makeDeck(2)
	s := NewSelector(seeded(), DefaultWeights())
	for i := 0; i < 200; i++ {
		idx, err := s.NextCard(deck, domain.StateMap{}, "c0")
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
	}

	t.Run("chained selection never repeats", func(t *testing.T) {
		deck := makeDeck(5)
		prev := ""
		for i := 0; i < 500; i++ {
			idx, err := s.NextCard(deck, domain.StateMap{}, prev)
			require.NoError(t, err)
			require.NotEqual(t, prev, deck.Cards[idx].ID)
			prev = deck.Cards[idx].ID
		}
	})
}

func TestNextCardSingleCard(t *testing.T) {
	deck := makeDeck(1)
	s := NewSelector(seeded(), DefaultWeights())
	for i := 0; i < 10; i++ {
		idx, err := s.NextCard(deck, domain.StateMap{}, "c0")
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	}
}

func TestNextCardEmptyDeck(t *testing.T) {
	s := NewSelector(seeded(), DefaultWeights())

	_, err := s.NextCard(makeDeck(0), domain.StateMap{}, "")
	assert.ErrorIs(t, err, ErrNoCards)

	_, err = s.Next(nil, nil, "")
	assert.ErrorIs(t, err, ErrNoCards)
}

func TestDrawTypeThresholds(t *testing.T) {
	tests := []struct {
		draw float64
		want QuestionType
	}{
		{0, MultipleChoice},
		{0.449, MultipleChoice},
		{0.45, TrueFalse},
		{0.7999, TrueFalse},
		{0.80, Written},
		{0.9999, Written},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.4f", tt.draw), func(t *testing.T) {
			s := NewSelector(&fixedRand{floats: []float64{tt.draw}}, DefaultWeights())
			assert.Equal(t, tt.want, s.DrawType())
		})
	}
}

func TestDrawTypeDistribution(t *testing.T) {
	const runs = 10000
	s := NewSelector(seeded(), DefaultWeights())
	counts := map[QuestionType]int{}
	for i := 0; i < runs; i++ {
		counts[s.DrawType()]++
	}

	assert.InDelta(t, 0.45, float64(counts[MultipleChoice])/runs, 0.02)
	assert.InDelta(t, 0.35, float64(counts[TrueFalse])/runs, 0.02)
	assert.InDelta(t, 0.20, float64(counts[Written])/runs, 0.02)
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{MultipleChoice: 50, TrueFalse: 50, Written: 10}.Validate())
	assert.Error(t, Weights{MultipleChoice: 110, TrueFalse: -10}.Validate())
}

func TestNextQuestionSides(t *testing.T) {
	deck := makeDeck(3)
	// card draw, type draw (written), side draw (term)
	s := NewSelector(&fixedRand{ints: []int{1}, floats: []float64{0.9, 0.7}}, DefaultWeights())

	q, err := s.Next(deck, domain.StateMap{}, "")
	require.NoError(t, err)
	assert.Equal(t, "c1", q.CardID)
	assert.Equal(t, Written, q.Type)
	assert.True(t, q.IsTermQuestion)
	assert.Equal(t, "term 1", q.Prompt)
	assert.Equal(t, "definition 1", q.Answer)

	s = NewSelector(&fixedRand{ints: []int{1}, floats: []float64{0.9, 0.2}}, DefaultWeights())
	q, err = s.Next(deck, domain.StateMap{}, "")
	require.NoError(t, err)
	assert.False(t, q.IsTermQuestion)
	assert.Equal(t, "definition 1", q.Prompt)
	assert.Equal(t, "term 1", q.Answer)
}

func TestMultipleChoiceOptions(t *testing.T) {
	onlyMC := Weights{MultipleChoice: 100}

	t.Run("four distinct options including the answer", func(t *testing.T) {
		deck := makeDeck(8)
		s := NewSelector(seeded(), onlyMC)
		answerPositions := map[int]bool{}
		for i := 0; i < 200; i++ {
			q, err := s.Next(deck, domain.StateMap{}, "")
			require.NoError(t, err)
			require.Equal(t, MultipleChoice, q.Type)
			require.Len(t, q.Options, 4)
			assert.Contains(t, q.Options, q.Answer)

			unique := map[string]bool{}
			for j, opt := range q.Options {
				unique[opt] = true
				if opt == q.Answer {
					answerPositions[j] = true
					assert.True(t, q.CheckChoice(j))
				} else {
					assert.False(t, q.CheckChoice(j))
				}
			}
			assert.Len(t, unique, 4)
		}
		assert.Len(t, answerPositions, 4, "answer position should be shuffled")
	})

	t.Run("small decks degrade to available distractors", func(t *testing.T) {
		for n := 1; n <= 3; n++ {
			deck := makeDeck(n)
			s := NewSelector(seeded(), onlyMC)
			q, err := s.Next(deck, domain.StateMap{}, "")
			require.NoError(t, err)
			assert.Len(t, q.Options, n)
			assert.Contains(t, q.Options, q.Answer)
		}
	})
}

func TestTrueFalsePairing(t *testing.T) {
	onlyTF := Weights{TrueFalse: 100}

	t.Run("genuine and borrowed pairs both occur", func(t *testing.T) {
		deck := makeDeck(5)
		s := NewSelector(seeded(), onlyTF)
		var genuine, borrowed int
		for i := 0; i < 500; i++ {
			q, err := s.Next(deck, domain.StateMap{}, "")
			require.NoError(t, err)
			if q.IsCorrectPair {
				genuine++
				assert.Equal(t, q.Answer, q.Proposed)
				assert.True(t, q.CheckClaim(true))
			} else {
				borrowed++
				assert.NotEqual(t, q.Answer, q.Proposed)
				assert.True(t, q.CheckClaim(false))
			}
		}
		assert.InDelta(t, 0.5, float64(genuine)/500, 0.1)
		assert.Positive(t, borrowed)
	})

	t.Run("single card is always a genuine pair", func(t *testing.T) {
		s := NewSelector(seeded(), onlyTF)
		for i := 0; i < 20; i++ {
			q, err := s.Next(makeDeck(1), domain.StateMap{}, "")
			require.NoError(t, err)
			assert.True(t, q.IsCorrectPair)
		}
	})

	t.Run("borrowed duplicate text counts as true", func(t *testing.T) {
		deck := makeDeck(2)
		deck.Cards[1].Definition = "DEFINITION 0 "
		// card 0, TF, term side, borrow
		s := NewSelector(&fixedRand{ints: []int{0, 0}, floats: []float64{0.5, 0.9, 0.9}}, onlyTF)
		q, err := s.Next(deck, domain.StateMap{}, "")
		require.NoError(t, err)
		assert.Equal(t, "DEFINITION 0 ", q.Proposed)
		assert.True(t, q.IsCorrectPair)
	})
}
