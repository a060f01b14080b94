package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDeck() *Deck {
	return &Deck{
		ID:             "deck-1",
		Title:          "Data structures",
		UnderglowColor: "#7c3aed",
		Cards: []Card{
			{ID: "c1", Term: "Stack", Definition: "LIFO collection"},
			{ID: "c2", Term: "Queue", Definition: "FIFO collection"},
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid deck", func(t *testing.T) {
		assert.NoError(t, Validate(validDeck()))
	})

	t.Run("empty deck is not malformed", func(t *testing.T) {
		d := validDeck()
		d.Cards = nil
		assert.NoError(t, Validate(d))
	})

	tests := []struct {
		name   string
		mutate func(d *Deck)
	}{
		{"missing term", func(d *Deck) { d.Cards[0].Term = "" }},
		{"missing definition", func(d *Deck) { d.Cards[1].Definition = "" }},
		{"missing card id", func(d *Deck) { d.Cards[1].ID = "" }},
		{"duplicate card id", func(d *Deck) { d.Cards[1].ID = "c1" }},
		{"missing title", func(d *Deck) { d.Title = "" }},
		{"bad underglow color", func(d *Deck) { d.UnderglowColor = "purple" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDeck()
			tt.mutate(d)
			err := Validate(d)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedDeck)
		})
	}

	t.Run("nil deck", func(t *testing.T) {
		assert.ErrorIs(t, Validate(nil), ErrMalformedDeck)
	})
}

func TestStateMapClone(t *testing.T) {
	now := time.Now()
	m := StateMap{"c1": {Streak: 2, Status: Learned, LastAnswered: &now}}

	clone := m.Clone()
	later := now.Add(time.Hour)
	*clone["c1"].LastAnswered = later

	assert.Equal(t, now, *m["c1"].LastAnswered)
	assert.Equal(t, NewCardState(), m.Get("missing"))
}

func TestStatusRank(t *testing.T) {
	assert.Less(t, Unfamiliar.Rank(), Learned.Rank())
	assert.Less(t, Learned.Rank(), Mastered.Rank())
	assert.False(t, Status("archived").Valid())
	assert.Equal(t, 0, Status("").Rank())
}
