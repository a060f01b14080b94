package progress

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conorfennell/notedeck/internal/domain"
)

func deckOf(n int) *domain.Deck {
	d := &domain.Deck{ID: "deck-1", Title: "Deck"}
	for i := 0; i < n; i++ {
		d.Cards = append(d.Cards, domain.Card{
			ID:         fmt.Sprintf("c%d", i),
			Term:       fmt.Sprintf("t%d", i),
			Definition: fmt.Sprintf("d%d", i),
		})
	}
	return d
}

func TestComputeSummary(t *testing.T) {
	t.Run("ten card deck", func(t *testing.T) {
		deck := deckOf(10)
		states := domain.StateMap{}
		for i, card := range deck.Cards {
			switch {
			case i < 3:
				states[card.ID] = domain.CardState{Status: domain.Mastered, Streak: 3}
			case i < 7:
				states[card.ID] = domain.CardState{Status: domain.Learned, Streak: 1}
			default:
				states[card.ID] = domain.NewCardState()
			}
		}

		sum := ComputeSummary(deck, states)
		assert.Equal(t, Counts{Unfamiliar: 3, Learned: 4, Mastered: 3}, sum.Counts)
		assert.InDelta(t, 30, sum.MasteredPct, 1e-9)
		assert.InDelta(t, 40, sum.LearnedPct, 1e-9)
		assert.InDelta(t, 30, sum.UnfamiliarPct, 1e-9)
	})

	t.Run("empty deck has zero percentages", func(t *testing.T) {
		sum := ComputeSummary(deckOf(0), domain.StateMap{})
		assert.Equal(t, Summary{}, sum)
		assert.Equal(t, Summary{}, ComputeSummary(nil, nil))
	})

	t.Run("cards without state are unfamiliar", func(t *testing.T) {
		sum := ComputeSummary(deckOf(4), domain.StateMap{"c0": {Status: domain.Learned}})
		assert.Equal(t, Counts{Unfamiliar: 3, Learned: 1}, sum.Counts)
	})
}

func TestPartitionAlwaysCoversDeck(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	statuses := []domain.Status{domain.Unfamiliar, domain.Learned, domain.Mastered, ""}

	for trial := 0; trial < 200; trial++ {
		deck := deckOf(rng.Intn(30))
		states := domain.StateMap{}
		for _, card := range deck.Cards {
			if rng.Intn(5) == 0 {
				continue
			}
			states[card.ID] = domain.CardState{Status: statuses[rng.Intn(len(statuses))]}
		}
		// states for cards that are no longer in the deck must not count
		states["stale"] = domain.CardState{Status: domain.Mastered}

		sum := ComputeSummary(deck, states)
		assert.Equal(t, len(deck.Cards), sum.Counts.Unfamiliar+sum.Counts.Learned+sum.Counts.Mastered)

		p := BuildPartition(deck, states)
		seen := map[int]bool{}
		for _, idx := range append(append(append([]int{}, p.Unfamiliar...), p.Learned...), p.Mastered...) {
			assert.False(t, seen[idx], "index %d in two partitions", idx)
			seen[idx] = true
		}
		assert.Len(t, seen, len(deck.Cards))
	}
}

func TestSnapshot(t *testing.T) {
	deck := deckOf(3)
	states := domain.StateMap{"c1": {Status: domain.Learned, Streak: 2}}

	snap := Snapshot(deck, states)
	assert.Equal(t, []int{1}, snap.Learned)
	assert.Equal(t, []int{0, 2}, snap.Unfamiliar)
	assert.Len(t, snap.States, 3)
	assert.Equal(t, domain.NewCardState(), snap.States["c0"])

	states["c1"] = domain.CardState{Status: domain.Mastered}
	assert.Equal(t, domain.Learned, snap.States["c1"].Status, "snapshot must not alias the live map")
}

func TestRestore(t *testing.T) {
	deck := deckOf(3)

	t.Run("nothing saved", func(t *testing.T) {
		assert.Equal(t, Fresh(deck), Restore(deck, nil))
	})

	t.Run("raw states win over the partition", func(t *testing.T) {
		saved := &domain.Progress{
			Partition: domain.Partition{Mastered: []int{0, 1, 2}},
			States: domain.StateMap{
				"c0":      {Streak: 2, Status: domain.Learned},
				"c1":      {Streak: 5, Status: "bogus"},
				"removed": {Streak: 9, Status: domain.Mastered},
			},
		}
		states := Restore(deck, saved)
		assert.Len(t, states, 3)
		assert.Equal(t, domain.CardState{Streak: 2, Status: domain.Learned}, states["c0"])
		assert.Equal(t, domain.NewCardState(), states["c1"])
		assert.Equal(t, domain.NewCardState(), states["c2"])
	})

	t.Run("partition only", func(t *testing.T) {
		saved := &domain.Progress{
			Partition: domain.Partition{Learned: []int{0}, Mastered: []int{2, 5, -1}},
		}
		states := Restore(deck, saved)
		assert.Equal(t, domain.Learned, states["c0"].Status)
		assert.Equal(t, domain.Unfamiliar, states["c1"].Status)
		assert.Equal(t, domain.Mastered, states["c2"].Status)
		assert.Equal(t, 0, states["c2"].Streak)
	})
}
