package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/conorfennell/notedeck/internal/domain"
)

// ErrPersist wraps every failure to write progress to the deck store.
var ErrPersist = errors.New("failed to persist progress")

// DefaultTimeout bounds a single background save.
const DefaultTimeout = 10 * time.Second

// Saver is the write side of the deck store.
type Saver interface {
	SaveProgress(ctx context.Context, deckID string, p domain.Progress) error
}

// SyncState is the outcome of the most recent save.
type SyncState int

const (
	Idle SyncState = iota
	Pending
	Saved
	Failed
)

func (s SyncState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Saved:
		return "saved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("SyncState(%d)", int(s))
	}
}

// Status reports where persistence stands. Err is set only when State is Failed.
type Status struct {
	State SyncState
	Err   error
	At    time.Time
}

// Synchronizer pushes progress snapshots to the deck store in the background.
// Saves are serialized and always send the newest submitted snapshot, so the
// store converges on the latest in-memory state even after failures.
type Synchronizer struct {
	store   Saver
	deckID  string
	timeout time.Duration
	log     *slog.Logger

	saveMu sync.Mutex // serializes store writes

	mu       sync.Mutex
	latest   *domain.Progress
	seq      uint64
	savedSeq uint64
	status   Status

	kick      chan struct{}
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithTimeout sets the per-save timeout for background saves.
func WithTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSynchronizer starts a synchronizer for one deck. Call Close to stop it.
func NewSynchronizer(store Saver, deckID string, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:   store,
		deckID:  deckID,
		timeout: DefaultTimeout,
		log:     slog.Default(),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Submit queues a snapshot for a background save and returns immediately.
// A newer submission replaces one that has not been written yet.
func (s *Synchronizer) Submit(p domain.Progress) {
	s.mu.Lock()
	p.States = p.States.Clone()
	s.latest = &p
	s.seq++
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Flush synchronously saves the newest snapshot unless it is already stored.
func (s *Synchronizer) Flush(ctx context.Context) error {
	return s.save(ctx)
}

// Status returns the result of the most recent save attempt.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ResetAll discards all history for the deck and persists the fresh baseline.
// The fresh state is returned even when the save fails.
func (s *Synchronizer) ResetAll(ctx context.Context, deck *domain.Deck) (domain.StateMap, error) {
	states := Fresh(deck)
	s.Submit(Snapshot(deck, states))
	return states, s.Flush(ctx)
}

// Close stops the background worker and makes a final best-effort save.
func (s *Synchronizer) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.exited
	return s.save(ctx)
}

func (s *Synchronizer) run() {
	defer close(s.exited)
	for {
		select {
		case <-s.done:
			return
		case <-s.kick:
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			if err := s.save(ctx); err != nil {
				s.log.Warn("Background progress save failed", "deck_id", s.deckID, "error", err)
			}
			cancel()
		}
	}
}

func (s *Synchronizer) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.latest == nil || s.seq == s.savedSeq {
		s.mu.Unlock()
		return nil
	}
	snapshot, seq := *s.latest, s.seq
	s.status = Status{State: Pending, At: time.Now()}
	s.mu.Unlock()

	err := s.store.SaveProgress(ctx, s.deckID, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		err = fmt.Errorf("%w for deck %s: %w", ErrPersist, s.deckID, err)
		s.status = Status{State: Failed, Err: err, At: time.Now()}
		return err
	}
	s.savedSeq = seq
	s.status = Status{State: Saved, At: time.Now()}
	s.log.Debug("Progress saved", "deck_id", s.deckID, "seq", seq)
	return nil
}
