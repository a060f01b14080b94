package knol

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conorfennell/notedeck/internal/domain"
)

// idLength is the number of hex characters kept for card and deck IDs.
const idLength = 16

// Normalize concatenates the card's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each field
// before joining them. The image is display-only and does not take part.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	t := normalizePart(card.Term)
	d := normalizePart(card.Definition)

	// We join with a newline to ensure separation between fields,
	// preventing "ab"+"c" and "a"+"bc" from colliding.
	return strings.Join([]string{t, d}, "\n")
}

// Hash takes a card, normalizes it, and returns its SHA-256 hash as a hex string.
func Hash(card domain.Card) string {
	normalized := Normalize(card)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}

// CardID is the stable identifier of a card within its deck. Editing the
// term or definition produces a new card with fresh progress.
func CardID(card domain.Card) string {
	return Hash(card)[:idLength]
}

// DeckID derives a stable deck ID from a source and the deck file's path
// relative to it.
func DeckID(sourcePath, relPath string) string {
	key := sourcePath + "\n" + filepath.ToSlash(relPath)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))[:idLength]
}

// AssignIDs sets the ID of every card in the deck. Cards whose content
// normalizes to the same text get a numeric suffix to keep IDs unique.
func AssignIDs(deck *domain.Deck) {
	seen := make(map[string]int, len(deck.Cards))
	for i := range deck.Cards {
		id := CardID(deck.Cards[i])
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id = fmt.Sprintf("%s-%d", id, n)
		} else {
			seen[id] = 1
		}
		deck.Cards[i].ID = id
	}
}
