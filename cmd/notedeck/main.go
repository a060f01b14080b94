package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/notedeck/internal/config"
	"github.com/conorfennell/notedeck/internal/progress"
	"github.com/conorfennell/notedeck/internal/review"
	"github.com/conorfennell/notedeck/internal/storage"
	"github.com/conorfennell/notedeck/internal/sync"
	"github.com/conorfennell/notedeck/internal/web"
)

const usage = `Usage: notedeck [flags] <command> [args]

Commands:
  add-source <path|url>   Register a local directory or git repository of deck files
  sync                    Sync decks from every source
  decks                   List decks
  review <deckID>         Review a deck in the terminal
  progress <deckID>       Show a deck's progress summary
  reset <deckID>          Reset a deck's progress to unfamiliar
  serve                   Serve the deck store API

Flags:
`

// deckStore is implemented by both the local database and the API client.
type deckStore interface {
	review.Store
	ListDecks(ctx context.Context) ([]storage.DeckInfo, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	flags := pflag.NewFlagSet("notedeck", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.NewLogger(os.Stderr))

	cmdArgs := flags.Args()
	if len(cmdArgs) == 0 {
		flags.Usage()
		return errors.New("no command given")
	}
	cmd, rest := cmdArgs[0], cmdArgs[1:]

	switch cmd {
	case "add-source":
		if len(rest) != 1 {
			return errors.New("usage: notedeck add-source <path|url>")
		}
		return addSource(cfg, rest[0], out)
	case "sync":
		return runSync(ctx, cfg, out)
	case "decks":
		return listDecks(ctx, cfg, out)
	case "review":
		if len(rest) != 1 {
			return errors.New("usage: notedeck review <deckID>")
		}
		return reviewDeck(ctx, cfg, rest[0], in, out)
	case "progress":
		if len(rest) != 1 {
			return errors.New("usage: notedeck progress <deckID>")
		}
		return showProgress(ctx, cfg, rest[0], out)
	case "reset":
		if len(rest) != 1 {
			return errors.New("usage: notedeck reset <deckID>")
		}
		return resetProgress(ctx, cfg, rest[0], out)
	case "serve":
		return serve(ctx, cfg)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// openStore returns the remote API client when --remote is set and the local
// database otherwise.
func openStore(cfg *config.Config) (deckStore, func(), error) {
	if cfg.Remote != "" {
		slog.Debug("Using remote deck store", "url", cfg.Remote)
		return web.NewClient(cfg.Remote, nil), func() {}, nil
	}
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

func addSource(cfg *config.Config, path string, out io.Writer) error {
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	sourceType := storage.SourceType(path)
	if sourceType == "local" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("failed to read source directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", abs)
		}
		path = abs
	}

	existing, err := db.FindSourceByPath(path)
	if err != nil {
		return err
	}
	if existing != nil {
		fmt.Fprintf(out, "Source already exists with ID %d: %s\n", existing.ID, path)
		return nil
	}
	id, err := db.InsertSource(path, sourceType)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Added %s source %d: %s\n", sourceType, id, path)
	return nil
}

func runSync(ctx context.Context, cfg *config.Config, out io.Writer) error {
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := sync.RunSync(ctx, db, cfg.ReposDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Synced %d sources: %d decks, %d cards added, %d cards removed, %d decks removed.\n",
		report.Sources, report.Decks, report.CardsAdded, report.CardsRemoved, report.DecksRemoved)
	if len(report.Errors) > 0 {
		fmt.Fprintf(out, "\n%d errors:\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Fprintf(out, "- %s\n", e)
		}
	}
	return nil
}

func listDecks(ctx context.Context, cfg *config.Config, out io.Writer) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	decks, err := store.ListDecks(ctx)
	if err != nil {
		return err
	}
	if len(decks) == 0 {
		fmt.Fprintln(out, "No decks yet. Add a source and run: notedeck sync")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCARDS\tCOLOR")
	for _, d := range decks {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.ID, d.Title, d.CardCount, d.UnderglowColor)
	}
	return tw.Flush()
}

func reviewDeck(ctx context.Context, cfg *config.Config, deckID string, in io.Reader, out io.Writer) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s, err := review.Start(ctx, store, deckID,
		review.WithRand(rand.New(rand.NewSource(seed))),
		review.WithWeights(cfg.Weights),
		review.WithPersistTimeout(cfg.PersistTimeout),
		review.WithLogger(slog.Default()),
	)
	if err != nil {
		return err
	}

	loopErr := runReview(ctx, s, in, out)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.PersistTimeout)
	defer cancel()
	if err := s.Close(closeCtx); err != nil {
		fmt.Fprintf(out, "Warning: your latest progress could not be saved: %v\n", err)
	}
	return loopErr
}

func showProgress(ctx context.Context, cfg *config.Config, deckID string, out io.Writer) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	deck, saved, err := store.FetchDeck(ctx, deckID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", deck.Title)
	printSummary(out, progress.ComputeSummary(deck, progress.Restore(deck, saved)))
	return nil
}

func resetProgress(ctx context.Context, cfg *config.Config, deckID string, out io.Writer) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	deck, _, err := store.FetchDeck(ctx, deckID)
	if err != nil {
		return err
	}
	if err := store.SaveProgress(ctx, deckID, progress.Snapshot(deck, progress.Fresh(deck))); err != nil {
		return err
	}
	fmt.Fprintf(out, "Progress for %q reset: %d cards are unfamiliar.\n", deck.Title, len(deck.Cards))
	return nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.NewServer(db, cfg.ReposDir, slog.Default()).Handler(cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", cfg.Addr, "db", cfg.DB)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
