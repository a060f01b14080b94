package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/notedeck/internal/domain"
	"github.com/conorfennell/notedeck/internal/knol"
	"github.com/conorfennell/notedeck/internal/storage"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRunSyncLocalSource(t *testing.T) {
	ctx := context.Background()
	notes := t.TempDir()
	db, err := storage.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	defer db.Close()

	writeFile(t, notes, "bio/cells.md", "---\ntitle: Cells\n---\nT: Cell\nD: Basic unit of life\n---\nT: Nucleus\nD: Holds DNA\n")
	writeFile(t, notes, "chem.md", "T: Atom\nD: Smallest unit of an element\n")
	writeFile(t, notes, "broken.md", "T: Missing definition\n")
	writeFile(t, notes, "readme.txt", "T: ignored\nD: not markdown\n")

	sourceID, err := db.InsertSource(notes, "local")
	require.NoError(t, err)

	report, err := RunSync(ctx, db, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sources)
	assert.Equal(t, 2, report.Decks)
	assert.Equal(t, 3, report.CardsAdded)
	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], domain.ErrMalformedDeck)

	cellsID := knol.DeckID(notes, "bio/cells.md")
	deck, _, err := db.FetchDeck(ctx, cellsID)
	require.NoError(t, err)
	assert.Equal(t, "Cells", deck.Title)
	require.Len(t, deck.Cards, 2)

	require.NoError(t, db.SaveProgress(ctx, cellsID, domain.Progress{
		States: domain.StateMap{deck.Cards[0].ID: {Status: domain.Learned, Streak: 1}},
	}))

	t.Run("resync keeps progress of unchanged cards", func(t *testing.T) {
		writeFile(t, notes, "bio/cells.md", "---\ntitle: Cells\n---\nT: Cell\nD: Basic unit of life\n---\nT: Ribosome\nD: Builds proteins\n")
		require.NoError(t, os.Remove(filepath.Join(notes, "chem.md")))

		report, err := RunSync(ctx, db, t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, 1, report.CardsAdded)
		assert.Equal(t, 1, report.CardsRemoved)
		assert.Equal(t, 1, report.DecksRemoved)

		deck, p, err := db.FetchDeck(ctx, cellsID)
		require.NoError(t, err)
		assert.Equal(t, "Ribosome", deck.Cards[1].Term)
		assert.Equal(t, domain.Learned, p.States[deck.Cards[0].ID].Status)

		ids, err := db.GetDeckIDsBySourceID(sourceID)
		require.NoError(t, err)
		assert.Equal(t, []string{cellsID}, ids)
	})
}

func TestRunSyncWithoutSources(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	report, err := RunSync(context.Background(), db, t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, report.Sources)
}
