package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"

	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/notedeck/internal/domain"
	"github.com/conorfennell/notedeck/internal/gitsource"
	"github.com/conorfennell/notedeck/internal/knol"
	"github.com/conorfennell/notedeck/internal/parser"
	"github.com/conorfennell/notedeck/internal/storage"
)

// maxConcurrentPulls limits how many git sources are fetched at once.
const maxConcurrentPulls = 3

// Report summarizes one sync run.
type Report struct {
	Sources      int
	Decks        int
	CardsAdded   int
	CardsRemoved int
	DecksRemoved int
	Errors       []error
}

func (r *Report) addError(err error) {
	r.Errors = append(r.Errors, err)
}

// RunSync iterates over all sources and reconciles their decks with the
// database. Git sources are cloned or pulled into reposDir first. Problems
// with individual files or sources are collected in the report; only a
// failure to read the source list is returned as an error.
func RunSync(ctx context.Context, db *storage.DB, reposDir string) (*Report, error) {
	slog.Info("Starting sync process for all sources...")
	sources, err := db.GetAllSources()
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}

	report := &Report{}
	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with: notedeck add-source <path/or/url.git>")
		return report, nil
	}

	roots, gitErrs := checkoutGitSources(ctx, sources, reposDir)
	report.Errors = append(report.Errors, gitErrs...)

	for _, source := range sources {
		root, ok := roots[source.ID]
		if !ok {
			continue
		}
		slog.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)
		reconcileSource(ctx, db, source, root, report)
		report.Sources++
	}

	slog.Info("Sync process complete.",
		"sources", report.Sources,
		"decks", report.Decks,
		"errors", len(report.Errors),
	)
	return report, nil
}

// checkoutGitSources brings every git source up to date and returns the local
// directory to scan for each usable source.
func checkoutGitSources(ctx context.Context, sources []storage.Source, reposDir string) (map[int64]string, []error) {
	var (
		mu    gosync.Mutex
		roots = make(map[int64]string, len(sources))
		errs  []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPulls)
	for _, source := range sources {
		if source.Type != "git" {
			mu.Lock()
			roots[source.ID] = source.Path
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			localPath, err := gitsource.LocalPath(reposDir, source.Path)
			if err != nil {
				fail(err)
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(localPath), os.ModePerm); err != nil {
				fail(fmt.Errorf("failed to create repos directory: %w", err))
				return nil
			}
			if err := gitsource.Sync(gctx, source.Path, localPath, nil); err != nil {
				slog.Error("Error syncing git repo", "url", source.Path, "error", err)
				fail(err)
				return nil
			}
			mu.Lock()
			roots[source.ID] = localPath
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers record failures instead of returning them
	return roots, errs
}

func reconcileSource(ctx context.Context, db *storage.DB, source storage.Source, root string, report *Report) {
	foundDecks := make(map[string]bool)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		deckID := knol.DeckID(source.Path, rel)
		deck, err := loadDeck(path, deckID, rel)
		if err != nil {
			// Keep the stored deck and its progress until the file is fixed.
			foundDecks[deckID] = true
			report.addError(err)
			return nil
		}
		if len(deck.Cards) == 0 {
			return nil
		}
		foundDecks[deck.ID] = true

		added, removed, err := db.UpsertDeck(ctx, deck, source.ID, rel)
		if err != nil {
			report.addError(fmt.Errorf("db upsert for %s: %w", rel, err))
			return nil
		}
		report.Decks++
		report.CardsAdded += added
		report.CardsRemoved += removed
		if added > 0 || removed > 0 {
			slog.Info("Deck updated", "deck_id", deck.ID, "file", rel, "added", added, "removed", removed)
		}
		return nil
	})
	if walkErr != nil {
		slog.Error("Error walking directory", "path", root, "error", walkErr)
		report.addError(walkErr)
		return
	}

	dbDecks, err := db.GetDeckIDsBySourceID(source.ID)
	if err != nil {
		slog.Error("Error getting decks for source", "source_id", source.ID, "error", err)
		report.addError(err)
		return
	}
	for _, id := range dbDecks {
		if foundDecks[id] {
			continue
		}
		slog.Info("Orphaned deck, deleting", "deck_id", id)
		if err := db.DeleteDeck(id); err != nil {
			slog.Warn("Failed to delete orphaned deck", "deck_id", id, "error", err)
			continue
		}
		report.DecksRemoved++
	}

	if err := db.UpdateSourceLastScanned(source.ID); err != nil {
		slog.Warn("Failed to update last scanned for source", "source_id", source.ID, "error", err)
	}
}

// loadDeck parses a deck file and rejects it if any card is malformed.
func loadDeck(path, deckID, rel string) (*domain.Deck, error) {
	deck, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rel, err)
	}
	deck.ID = deckID
	knol.AssignIDs(deck)
	if err := domain.Validate(deck); err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	return deck, nil
}
