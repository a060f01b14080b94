package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/notedeck/internal/domain"
	"github.com/conorfennell/notedeck/internal/mastery"
	"github.com/conorfennell/notedeck/internal/progress"
	"github.com/conorfennell/notedeck/internal/quiz"
)

// ErrNoQuestion is returned by Answer when no question is waiting for a response.
var ErrNoQuestion = errors.New("no question pending")

// Store is the external deck store a session reads from and writes to.
type Store interface {
	FetchDeck(ctx context.Context, deckID string) (*domain.Deck, *domain.Progress, error)
	progress.Saver
}

// Outcome is the result of grading one answer.
type Outcome struct {
	Correct  bool
	Expected string
	Before   domain.CardState
	After    domain.CardState
	Summary  progress.Summary
}

// Promoted reports whether the answer moved the card up a tier.
func (o Outcome) Promoted() bool {
	return o.After.Status.Rank() > o.Before.Status.Rank()
}

// Demoted reports whether the answer moved the card down a tier.
func (o Outcome) Demoted() bool {
	return o.After.Status.Rank() < o.Before.Status.Rank()
}

// Session is one review run over a deck. It owns the deck's working card
// states; its methods must be called from a single goroutine.
type Session struct {
	ID string

	deck     *domain.Deck
	states   domain.StateMap
	selector *quiz.Selector
	ladder   *mastery.Ladder
	sync     *progress.Synchronizer

	current    *quiz.Question
	previousID string

	rng            quiz.Rand
	weights        quiz.Weights
	clock          func() time.Time
	persistTimeout time.Duration
	log            *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithRand sets the random source used for every draw.
func WithRand(r quiz.Rand) Option {
	return func(s *Session) { s.rng = r }
}

// WithWeights sets the question type weights.
func WithWeights(w quiz.Weights) Option {
	return func(s *Session) { s.weights = w }
}

// WithClock sets the time source used to stamp answers.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// WithLadder sets the promotion thresholds.
func WithLadder(l *mastery.Ladder) Option {
	return func(s *Session) { s.ladder = l }
}

// WithPersistTimeout bounds each background progress save.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Session) { s.persistTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Start loads a deck from the store and restores its saved progress.
// Malformed decks are rejected here rather than mid-session.
func Start(ctx context.Context, store Store, deckID string, opts ...Option) (*Session, error) {
	s := &Session{
		ID:             uuid.NewString(),
		weights:        quiz.DefaultWeights(),
		ladder:         mastery.DefaultLadder(),
		clock:          time.Now,
		persistTimeout: progress.DefaultTimeout,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.weights.Validate(); err != nil {
		return nil, err
	}

	deck, saved, err := store.FetchDeck(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deck %s: %w", deckID, err)
	}
	if err := domain.Validate(deck); err != nil {
		return nil, err
	}

	s.log = s.log.With("session_id", s.ID, "deck_id", deck.ID)
	s.deck = deck
	s.states = progress.Restore(deck, saved)
	s.selector = quiz.NewSelector(s.rng, s.weights)
	s.sync = progress.NewSynchronizer(store, deck.ID,
		progress.WithTimeout(s.persistTimeout),
		progress.WithLogger(s.log),
	)

	s.log.Info("Review session started", "cards", len(deck.Cards), "restored", saved != nil)
	return s, nil
}

// Deck returns the deck under review.
func (s *Session) Deck() *domain.Deck {
	return s.deck
}

// State returns the working state of a card.
func (s *Session) State(cardID string) domain.CardState {
	return s.states.Get(cardID)
}

// Current returns the question awaiting an answer, if any.
func (s *Session) Current() *quiz.Question {
	return s.current
}

// Next selects the next question. quiz.ErrNoCards ends the session.
func (s *Session) Next() (*quiz.Question, error) {
	q, err := s.selector.Next(s.deck, s.states, s.previousID)
	if err != nil {
		return nil, err
	}
	s.current = q
	return q, nil
}

// Answer grades a raw response to the current question, updates the card and
// queues a background save. A response that cannot be read leaves the
// question pending and returns quiz.ErrInvalidResponse.
func (s *Session) Answer(response string) (Outcome, error) {
	if s.current == nil {
		return Outcome{}, ErrNoQuestion
	}
	correct, err := s.current.Check(response)
	if err != nil {
		return Outcome{}, err
	}
	return s.Record(correct)
}

// Record applies an already graded answer to the current question's card.
func (s *Session) Record(correct bool) (Outcome, error) {
	q := s.current
	if q == nil {
		return Outcome{}, ErrNoQuestion
	}

	before := s.states.Get(q.CardID)
	after := s.ladder.Grade(before, correct, s.clock())
	s.states[q.CardID] = after
	s.previousID = q.CardID
	s.current = nil

	s.sync.Submit(progress.Snapshot(s.deck, s.states))

	out := Outcome{
		Correct:  correct,
		Expected: q.Answer,
		Before:   before,
		After:    after,
		Summary:  s.Summary(),
	}
	s.log.Debug("Answer graded",
		"card_id", q.CardID,
		"type", q.Type.String(),
		"correct", correct,
		"streak", after.Streak,
		"status", after.Status,
	)
	return out, nil
}

// Summary returns the current progress aggregate.
func (s *Session) Summary() progress.Summary {
	return progress.ComputeSummary(s.deck, s.states)
}

// SyncStatus reports the outcome of the latest progress save.
func (s *Session) SyncStatus() progress.Status {
	return s.sync.Status()
}

// Retry re-sends the latest progress synchronously.
func (s *Session) Retry(ctx context.Context) error {
	return s.sync.Flush(ctx)
}

// Reset returns every card to unfamiliar and saves that as the new baseline.
// The in-memory reset stands even if the save fails.
func (s *Session) Reset(ctx context.Context) error {
	states, err := s.sync.ResetAll(ctx, s.deck)
	s.states = states
	s.current = nil
	s.previousID = ""
	if err != nil {
		s.log.Warn("Progress reset not saved", "error", err)
	} else {
		s.log.Info("Progress reset")
	}
	return err
}

// Close makes a final best-effort save and releases the session.
func (s *Session) Close(ctx context.Context) error {
	err := s.sync.Close(ctx)
	if err != nil {
		s.log.Warn("Final progress save failed", "error", err)
	} else {
		s.log.Info("Review session closed")
	}
	return err
}
