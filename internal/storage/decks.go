package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/conorfennell/notedeck/internal/domain"
	"github.com/conorfennell/notedeck/internal/knol"
	"github.com/conorfennell/notedeck/internal/progress"
)

// DeckInfo is a deck listing entry.
type DeckInfo struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	UnderglowColor string `json:"underglowColor,omitempty"`
	CardCount      int    `json:"cardCount"`
	SourceID       int64  `json:"sourceId,omitempty"`
}

// CreateDeck validates and stores a new deck that does not belong to a source.
// A public ID is generated when the deck has none and cards without an ID get
// their content hash.
func (db *DB) CreateDeck(ctx context.Context, deck *domain.Deck) error {
	if deck.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate deck ID: %w", err)
		}
		deck.ID = id
	}
	for i := range deck.Cards {
		if deck.Cards[i].ID == "" {
			deck.Cards[i].ID = knol.CardID(deck.Cards[i])
		}
	}
	if err := domain.Validate(deck); err != nil {
		return err
	}
	_, _, err := db.UpsertDeck(ctx, deck, 0, "")
	return err
}

// UpsertDeck inserts or updates a deck and its cards. Cards that are no longer
// part of the deck are deleted together with their progress. sourceID 0 means
// the deck has no source. It returns how many cards were added and removed.
func (db *DB) UpsertDeck(ctx context.Context, deck *domain.Deck, sourceID int64, sourceFile string) (added, removed int, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction for deck %s: %w", deck.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO decks (id, title, description, underglow_color, source_id, source_file)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			underglow_color = excluded.underglow_color,
			source_id = excluded.source_id,
			source_file = excluded.source_file
	`,
		deck.ID,
		deck.Title,
		deck.Description,
		deck.UnderglowColor,
		sql.NullInt64{Int64: sourceID, Valid: sourceID != 0},
		sql.NullString{String: sourceFile, Valid: sourceFile != ""},
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert deck %s: %w", deck.ID, err)
	}

	existing, err := cardIDs(ctx, tx, deck.ID)
	if err != nil {
		return 0, 0, err
	}

	keep := make(map[string]bool, len(deck.Cards))
	for i, card := range deck.Cards {
		keep[card.ID] = true
		if !existing[card.ID] {
			added++
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cards (deck_id, id, position, term, definition, image)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(deck_id, id) DO UPDATE SET
				position = excluded.position,
				term = excluded.term,
				definition = excluded.definition,
				image = excluded.image
		`, deck.ID, card.ID, i, card.Term, card.Definition, card.Image)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to upsert card %s in deck %s: %w", card.ID, deck.ID, err)
		}
	}

	for id := range existing {
		if keep[id] {
			continue
		}
		removed++
		if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE deck_id = ? AND id = ?`, deck.ID, id); err != nil {
			return 0, 0, fmt.Errorf("failed to delete card %s from deck %s: %w", id, deck.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM card_progress WHERE deck_id = ? AND card_id = ?`, deck.ID, id); err != nil {
			return 0, 0, fmt.Errorf("failed to delete progress of card %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit deck %s: %w", deck.ID, err)
	}
	return added, removed, nil
}

func cardIDs(ctx context.Context, tx *sql.Tx, deckID string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM cards WHERE deck_id = ?`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get card IDs for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan card ID for deck %s: %w", deckID, err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// ListDecks retrieves every deck with its card count.
func (db *DB) ListDecks(ctx context.Context) ([]DeckInfo, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT d.id, d.title, d.description, d.underglow_color, d.source_id,
		       (SELECT COUNT(*) FROM cards c WHERE c.deck_id = d.id)
		FROM decks d ORDER BY d.title, d.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var decks []DeckInfo
	for rows.Next() {
		var info DeckInfo
		var sourceID sql.NullInt64
		if err := rows.Scan(&info.ID, &info.Title, &info.Description, &info.UnderglowColor, &sourceID, &info.CardCount); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		info.SourceID = sourceID.Int64
		decks = append(decks, info)
	}
	return decks, rows.Err()
}

// GetDeckIDsBySourceID retrieves the IDs of every deck synced from a source.
func (db *DB) GetDeckIDsBySourceID(sourceID int64) ([]string, error) {
	rows, err := db.conn.Query(`SELECT id FROM decks WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get decks for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deck ID for source ID %d: %w", sourceID, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDeck removes a deck, its cards and its progress.
func (db *DB) DeleteDeck(deckID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for deck %s: %w", deckID, err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM card_progress WHERE deck_id = ?`,
		`DELETE FROM cards WHERE deck_id = ?`,
	} {
		if _, err := tx.Exec(stmt, deckID); err != nil {
			return fmt.Errorf("failed to delete deck %s: %w", deckID, err)
		}
	}
	res, err := tx.Exec(`DELETE FROM decks WHERE id = ?`, deckID)
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", deckID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
	}
	return tx.Commit()
}

// FetchDeck loads a deck with its cards and, when any has been saved, its
// progress. The partition is derived from the stored card states so it always
// matches the current card order.
func (db *DB) FetchDeck(ctx context.Context, deckID string) (*domain.Deck, *domain.Progress, error) {
	deck := &domain.Deck{ID: deckID}
	var progressAt sql.NullTime
	err := db.conn.QueryRowContext(ctx, `
		SELECT title, description, underglow_color, progress_updated_at
		FROM decks WHERE id = ?
	`, deckID).Scan(&deck.Title, &deck.Description, &deck.UnderglowColor, &progressAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
		}
		return nil, nil, fmt.Errorf("failed to fetch deck %s: %w", deckID, err)
	}

	if deck.Cards, err = db.deckCards(ctx, deckID); err != nil {
		return nil, nil, err
	}
	if !progressAt.Valid {
		return deck, nil, nil
	}

	states, err := db.cardStates(ctx, deckID)
	if err != nil {
		return nil, nil, err
	}
	p := &domain.Progress{
		Partition: progress.BuildPartition(deck, states),
		States:    states,
	}
	return deck, p, nil
}

func (db *DB) deckCards(ctx context.Context, deckID string) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, term, definition, image
		FROM cards WHERE deck_id = ? ORDER BY position
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.Term, &c.Definition, &c.Image); err != nil {
			return nil, fmt.Errorf("failed to scan card row for deck %s: %w", deckID, err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (db *DB) cardStates(ctx context.Context, deckID string) (domain.StateMap, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT card_id, streak, status, last_answered
		FROM card_progress WHERE deck_id = ?
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	states := make(domain.StateMap)
	for rows.Next() {
		var (
			id       string
			state    domain.CardState
			status   string
			answered sql.NullTime
		)
		if err := rows.Scan(&id, &state.Streak, &status, &answered); err != nil {
			return nil, fmt.Errorf("failed to scan progress row for deck %s: %w", deckID, err)
		}
		state.Status = domain.Status(status)
		if answered.Valid {
			t := answered.Time
			state.LastAnswered = &t
		}
		states[id] = state
	}
	return states, rows.Err()
}

// SaveProgress replaces the stored progress of a deck with p in one
// transaction. When p carries no raw card states they are derived from the
// partition with a zero streak. States of cards not in the deck are dropped.
func (db *DB) SaveProgress(ctx context.Context, deckID string, p domain.Progress) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for deck %s: %w", deckID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE decks SET progress_updated_at = ? WHERE id = ?`, time.Now(), deckID)
	if err != nil {
		return fmt.Errorf("failed to touch deck %s: %w", deckID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
	}

	// Only cards still in the deck get a row.
	deck, err := deckSkeleton(ctx, tx, deckID)
	if err != nil {
		return err
	}
	states := progress.Restore(deck, &p)

	if _, err := tx.ExecContext(ctx, `DELETE FROM card_progress WHERE deck_id = ?`, deckID); err != nil {
		return fmt.Errorf("failed to clear progress for deck %s: %w", deckID, err)
	}
	for id, s := range states {
		var answered sql.NullTime
		if s.LastAnswered != nil {
			answered = sql.NullTime{Time: *s.LastAnswered, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO card_progress (deck_id, card_id, streak, status, last_answered)
			VALUES (?, ?, ?, ?, ?)
		`, deckID, id, s.Streak, string(s.Status), answered)
		if err != nil {
			return fmt.Errorf("failed to save progress of card %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit progress for deck %s: %w", deckID, err)
	}
	return nil
}

// deckSkeleton loads a deck's card IDs in display order.
func deckSkeleton(ctx context.Context, tx *sql.Tx, deckID string) (*domain.Deck, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM cards WHERE deck_id = ? ORDER BY position`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	deck := &domain.Deck{ID: deckID}
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID); err != nil {
			return nil, fmt.Errorf("failed to scan card ID for deck %s: %w", deckID, err)
		}
		deck.Cards = append(deck.Cards, c)
	}
	return deck, rows.Err()
}
