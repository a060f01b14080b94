package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/notedeck/internal/domain"
	"github.com/conorfennell/notedeck/internal/quiz"
	"github.com/conorfennell/notedeck/internal/review"
	"github.com/conorfennell/notedeck/internal/storage"
)

type offlineStore struct {
	*storage.Memory
}

func (offlineStore) SaveProgress(context.Context, string, domain.Progress) error {
	return errors.New("connection refused")
}

func capitals() *domain.Deck {
	return &domain.Deck{
		ID:    "capitals",
		Title: "Capitals",
		Cards: []domain.Card{
			{ID: "fr", Term: "France", Definition: "Paris"},
			{ID: "jp", Term: "Japan", Definition: "Tokyo"},
		},
	}
}

func startReview(t *testing.T, store review.Store, w quiz.Weights) *review.Session {
	t.Helper()
	s, err := review.Start(context.Background(), store, "capitals",
		review.WithRand(rand.New(rand.NewSource(11))),
		review.WithWeights(w),
	)
	require.NoError(t, err)
	return s
}

func TestRunReviewCommands(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(capitals())
	s := startReview(t, store, quiz.Weights{Written: 100})

	var out bytes.Buffer
	in := strings.NewReader(":stats\nzzzz\n:q\n")
	require.NoError(t, runReview(ctx, s, in, &out))
	require.NoError(t, s.Close(ctx))

	text := out.String()
	assert.Contains(t, text, `Reviewing "Capitals" (2 cards)`)
	assert.Contains(t, text, "[written]")
	assert.Contains(t, text, "Total        2")
	assert.Contains(t, text, "Not quite. The answer was:")
	assert.Contains(t, text, "Unfamiliar 2 | Learned 0 | Mastered 0")

	_, saved, err := store.FetchDeck(ctx, "capitals")
	require.NoError(t, err)
	require.NotNil(t, saved)
	streaks := saved.States["fr"].Streak + saved.States["jp"].Streak
	assert.Equal(t, -1, streaks)
}

func TestRunReviewCorrectAnswerPromotes(t *testing.T) {
	ctx := context.Background()
	s := startReview(t, storage.NewMemory(capitals()), quiz.Weights{Written: 100})
	defer s.Close(ctx)

	q, err := s.Next()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runReview(ctx, s, strings.NewReader(strings.ToUpper(q.Answer)+"\n"), &out))
	assert.Contains(t, out.String(), "Correct!")
	assert.Contains(t, out.String(), "Card promoted to learned.")
}

func TestRunReviewRejectsUnreadableChoice(t *testing.T) {
	ctx := context.Background()
	s := startReview(t, storage.NewMemory(capitals()), quiz.Weights{MultipleChoice: 100})
	defer s.Close(ctx)

	var out bytes.Buffer
	require.NoError(t, runReview(ctx, s, strings.NewReader("7\n:q\n"), &out))
	assert.Contains(t, out.String(), "Could not read that answer")
	assert.Equal(t, domain.NewCardState(), s.State("fr"))
	assert.Equal(t, domain.NewCardState(), s.State("jp"))
}

func TestRunReviewWhileOffline(t *testing.T) {
	ctx := context.Background()
	s := startReview(t, offlineStore{storage.NewMemory(capitals())}, quiz.Weights{Written: 100})

	var out bytes.Buffer
	require.NoError(t, runReview(ctx, s, strings.NewReader("zzzz\n:retry\n:reset\n:q\n"), &out))

	text := out.String()
	assert.Contains(t, text, "Still unable to save progress")
	assert.Contains(t, text, "connection refused")
	assert.Contains(t, text, "Progress reset locally but not saved")
	assert.Equal(t, 2, s.Summary().Counts.Unfamiliar)
	assert.Error(t, s.Close(ctx))
}

func TestRunReviewEmptyDeck(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(&domain.Deck{ID: "capitals", Title: "Capitals"})
	s := startReview(t, store, quiz.DefaultWeights())
	defer s.Close(ctx)

	var out bytes.Buffer
	require.NoError(t, runReview(ctx, s, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "no cards to review")
}

func TestRunReviewStopsWhenCancelled(t *testing.T) {
	store := storage.NewMemory(capitals())
	s := startReview(t, store, quiz.Weights{Written: 100})
	q, err := s.Next()
	require.NoError(t, err)

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	result := make(chan error, 1)
	go func() { result <- runReview(ctx, s, pr, &out) }()

	// Let the loop block waiting for an answer, then interrupt it.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("review still waiting for input after cancel")
	}

	// Input arriving after the interrupt is never graded.
	go pw.Write([]byte(q.Answer + "\n"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, s.Summary().Counts.Unfamiliar)
	assert.Equal(t, domain.NewCardState(), s.State(q.CardID))

	require.NoError(t, s.Close(context.Background()))
}

func TestRunReviewShowsCardImage(t *testing.T) {
	ctx := context.Background()
	deck := capitals()
	deck.Cards = deck.Cards[:1]
	deck.Cards[0].Image = "flags/fr.png"
	s := startReview(t, storage.NewMemory(deck), quiz.DefaultWeights())
	defer s.Close(ctx)

	var out bytes.Buffer
	require.NoError(t, runReview(ctx, s, strings.NewReader(":q\n"), &out))
	assert.Contains(t, out.String(), "(image: flags/fr.png)")
}
