package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/conorfennell/notedeck/internal/progress"
	"github.com/conorfennell/notedeck/internal/quiz"
	"github.com/conorfennell/notedeck/internal/review"
)

// readLines feeds input lines to a channel until the input ends or done is
// closed. The error channel receives the scanner error after lines is closed.
func readLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

// runReview reads answers line by line until the input ends, the context is
// cancelled or the user types :q.
func runReview(ctx context.Context, s *review.Session, in io.Reader, out io.Writer) error {
	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(in, done)

	deck := s.Deck()
	fmt.Fprintf(out, "Reviewing %q (%d cards). Type :q to quit, :stats for progress, :retry to re-save, :reset to start over.\n",
		deck.Title, len(deck.Cards))

	lastFailure := ""
	for ctx.Err() == nil {
		q := s.Current()
		if q == nil {
			var err error
			if q, err = s.Next(); err != nil {
				if errors.Is(err, quiz.ErrNoCards) {
					fmt.Fprintln(out, "This deck has no cards to review.")
					return nil
				}
				return err
			}
		}

		printQuestion(out, q, deck.Cards[q.CardIndex].Image)
		fmt.Fprint(out, "> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-readErr
			}
			line = strings.TrimSpace(l)
		}
		if ctx.Err() != nil {
			fmt.Fprintln(out)
			return nil
		}

		switch line {
		case ":q", ":quit":
			return nil
		case ":stats":
			printSummary(out, s.Summary())
			continue
		case ":retry":
			if err := s.Retry(ctx); err != nil {
				fmt.Fprintf(out, "Still unable to save progress: %v\n", err)
			} else {
				fmt.Fprintln(out, "Progress saved.")
				lastFailure = ""
			}
			continue
		case ":reset":
			if err := s.Reset(ctx); err != nil {
				fmt.Fprintf(out, "Progress reset locally but not saved: %v\n", err)
			} else {
				fmt.Fprintln(out, "Progress reset. Every card is unfamiliar again.")
			}
			continue
		}

		outcome, err := s.Answer(line)
		if errors.Is(err, quiz.ErrInvalidResponse) {
			fmt.Fprintf(out, "Could not read that answer: %v\n", err)
			continue
		}
		if err != nil {
			return err
		}
		printOutcome(out, outcome)

		// Background saves finish later; report each failure once.
		if st := s.SyncStatus(); st.State == progress.Failed && st.Err.Error() != lastFailure {
			lastFailure = st.Err.Error()
			fmt.Fprintf(out, "Warning: progress not saved (%v). Type :retry to try again.\n", st.Err)
		}
	}
	return nil
}

func printQuestion(out io.Writer, q *quiz.Question, image string) {
	side, other := "term", "definition"
	if !q.IsTermQuestion {
		side, other = other, side
	}
	fmt.Fprintln(out)
	switch q.Type {
	case quiz.MultipleChoice:
		fmt.Fprintf(out, "[multiple choice] Pick the %s for this %s:\n  %s\n", other, side, q.Prompt)
		for i, opt := range q.Options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, opt)
		}
	case quiz.TrueFalse:
		fmt.Fprintf(out, "[true/false] Do these belong together?\n  %s\n  %s\n", q.Prompt, q.Proposed)
	case quiz.Written:
		fmt.Fprintf(out, "[written] Type the %s for this %s:\n  %s\n", other, side, q.Prompt)
	}
	if image != "" {
		fmt.Fprintf(out, "  (image: %s)\n", image)
	}
}

func printOutcome(out io.Writer, o review.Outcome) {
	if o.Correct {
		fmt.Fprintln(out, "Correct!")
	} else {
		fmt.Fprintf(out, "Not quite. The answer was: %s\n", o.Expected)
	}
	switch {
	case o.Promoted():
		fmt.Fprintf(out, "Card promoted to %s.\n", o.After.Status)
	case o.Demoted():
		fmt.Fprintf(out, "Card moved back to %s.\n", o.After.Status)
	}
	c := o.Summary.Counts
	fmt.Fprintf(out, "Unfamiliar %d | Learned %d | Mastered %d\n", c.Unfamiliar, c.Learned, c.Mastered)
}

func printSummary(out io.Writer, sum progress.Summary) {
	fmt.Fprintf(out, "  Unfamiliar %3d  %5.1f%%\n", sum.Counts.Unfamiliar, sum.UnfamiliarPct)
	fmt.Fprintf(out, "  Learned    %3d  %5.1f%%\n", sum.Counts.Learned, sum.LearnedPct)
	fmt.Fprintf(out, "  Mastered   %3d  %5.1f%%\n", sum.Counts.Mastered, sum.MasteredPct)
	fmt.Fprintf(out, "  Total      %3d\n", sum.Total)
}
