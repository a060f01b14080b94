package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conorfennell/notedeck/internal/domain"
)

const (
	termPrefix       = "T:"
	definitionPrefix = "D:"
	imagePrefix      = "I:"
	separator        = "---"
)

type state int

const (
	seeking state = iota
	readingTerm
	readingDefinition
	readingImage
)

// FrontMatter is the optional YAML header of a deck file.
type FrontMatter struct {
	Title          string `yaml:"title"`
	Description    string `yaml:"description"`
	UnderglowColor string `yaml:"underglow_color"`
}

// ParseFile reads a deck file. The title defaults to the file name.
func ParseFile(path string) (*domain.Deck, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	deck, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if deck.Title == "" {
		deck.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return deck, nil
}

// Parse reads an optional front matter block followed by cards. Card IDs are
// left empty for the caller to assign.
func Parse(r io.Reader) (*domain.Deck, error) {
	scanner := bufio.NewScanner(r)
	deck := &domain.Deck{}
	var currentCard domain.Card
	var currentBlock []string
	currentState := seeking

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(currentBlock, "\n"))
		switch currentState {
		case readingTerm:
			currentCard.Term = content
		case readingDefinition:
			currentCard.Definition = content
		case readingImage:
			currentCard.Image = content
		}
		currentBlock = nil
	}

	finishCard := func() {
		flushBlock()
		if currentCard.Term != "" || currentCard.Definition != "" {
			deck.Cards = append(deck.Cards, currentCard)
		}
		currentCard = domain.Card{}
		currentState = seeking
	}

	first := true
	for scanner.Scan() {
		line := scanner.Text()

		if first {
			first = false
			if strings.TrimSpace(line) == separator {
				if err := readFrontMatter(scanner, deck); err != nil {
					return nil, err
				}
				continue
			}
		}

		if strings.TrimSpace(line) == separator {
			finishCard()
			continue
		}

		prefix, rest, ok := cutPrefix(line)
		if !ok {
			if currentState != seeking {
				currentBlock = append(currentBlock, line)
			}
			continue
		}

		flushBlock()
		switch prefix {
		case termPrefix:
			if currentState != seeking { // A new term always starts a new card
				finishCard()
			}
			currentState = readingTerm
		case definitionPrefix:
			currentState = readingDefinition
		case imagePrefix:
			currentState = readingImage
		}
		currentBlock = append(currentBlock, rest)
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return deck, nil
}

func cutPrefix(line string) (prefix, rest string, ok bool) {
	for _, p := range []string{termPrefix, definitionPrefix, imagePrefix} {
		if after, found := strings.CutPrefix(line, p); found {
			return p, strings.TrimPrefix(after, " "), true
		}
	}
	return "", "", false
}

func readFrontMatter(scanner *bufio.Scanner, deck *domain.Deck) error {
	var buf bytes.Buffer
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == separator {
			closed = true
			break
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if !closed {
		return fmt.Errorf("front matter is not closed with %q", separator)
	}

	var fm FrontMatter
	if err := yaml.Unmarshal(buf.Bytes(), &fm); err != nil {
		return fmt.Errorf("invalid front matter: %w", err)
	}
	deck.Title = fm.Title
	deck.Description = fm.Description
	deck.UnderglowColor = fm.UnderglowColor
	return nil
}
