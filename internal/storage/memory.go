package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/conorfennell/notedeck/internal/domain"
)

// Memory is an in-memory deck store. Values are copied on the way in and out.
type Memory struct {
	mu       sync.Mutex
	decks    map[string]domain.Deck
	progress map[string]domain.Progress
}

// NewMemory creates a store holding the given decks.
func NewMemory(decks ...*domain.Deck) *Memory {
	m := &Memory{
		decks:    make(map[string]domain.Deck),
		progress: make(map[string]domain.Progress),
	}
	for _, d := range decks {
		m.PutDeck(d)
	}
	return m
}

// PutDeck stores or replaces a deck.
func (m *Memory) PutDeck(d *domain.Deck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decks[d.ID] = copyDeck(*d)
}

// FetchDeck returns a copy of the deck and its progress, if any was saved.
func (m *Memory) FetchDeck(_ context.Context, deckID string) (*domain.Deck, *domain.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[deckID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
	}
	deck := copyDeck(d)
	p, ok := m.progress[deckID]
	if !ok {
		return &deck, nil, nil
	}
	p = copyProgress(p)
	return &deck, &p, nil
}

// SaveProgress replaces the stored progress of a deck.
func (m *Memory) SaveProgress(_ context.Context, deckID string, p domain.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.decks[deckID]; !ok {
		return fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
	}
	m.progress[deckID] = copyProgress(p)
	return nil
}

func copyDeck(d domain.Deck) domain.Deck {
	d.Cards = append([]domain.Card(nil), d.Cards...)
	return d
}

func copyProgress(p domain.Progress) domain.Progress {
	p.Learned = append([]int{}, p.Learned...)
	p.Mastered = append([]int{}, p.Mastered...)
	p.Unfamiliar = append([]int{}, p.Unfamiliar...)
	p.States = p.States.Clone()
	return p
}
