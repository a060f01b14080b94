package quiz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidResponse is returned when a response cannot be read for the question type.
var ErrInvalidResponse = errors.New("invalid response")

// QuestionType is the presentation format of a question.
type QuestionType int

const (
	MultipleChoice QuestionType = iota
	TrueFalse
	Written
)

func (t QuestionType) String() string {
	switch t {
	case MultipleChoice:
		return "multiple-choice"
	case TrueFalse:
		return "true-false"
	case Written:
		return "written"
	default:
		return fmt.Sprintf("QuestionType(%d)", int(t))
	}
}

// MarshalText lets question types travel as their names in JSON.
func (t QuestionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Question is one prompt about one card.
type Question struct {
	CardID         string       `json:"cardId"`
	CardIndex      int          `json:"cardIndex"`
	Type           QuestionType `json:"type"`
	IsTermQuestion bool         `json:"isTermQuestion"`
	Prompt         string       `json:"prompt"`
	Answer         string       `json:"-"`

	// Multiple choice: the answer and its distractors, shuffled.
	Options []string `json:"options,omitempty"`

	// True/false: the side proposed as the match for Prompt.
	Proposed      string `json:"proposed,omitempty"`
	IsCorrectPair bool   `json:"-"`
}

// CheckChoice grades a multiple-choice pick by option index.
func (q *Question) CheckChoice(i int) bool {
	if i < 0 || i >= len(q.Options) {
		return false
	}
	return Normalize(q.Options[i]) == Normalize(q.Answer)
}

// CheckClaim grades a true/false claim about the proposed pairing.
func (q *Question) CheckClaim(isTrue bool) bool {
	return isTrue == q.IsCorrectPair
}

// CheckWritten grades free text against the expected answer.
func (q *Question) CheckWritten(text string) bool {
	return AcceptWritten(text, q.Answer)
}

// Check grades a raw response. Multiple choice accepts a 1-based option
// number or the option text; true/false accepts true/false, yes/no, t/f, y/n.
func (q *Question) Check(response string) (bool, error) {
	switch q.Type {
	case MultipleChoice:
		i, err := q.choiceIndex(response)
		if err != nil {
			return false, err
		}
		return q.CheckChoice(i), nil
	case TrueFalse:
		claim, err := ParseClaim(response)
		if err != nil {
			return false, err
		}
		return q.CheckClaim(claim), nil
	case Written:
		return q.CheckWritten(response), nil
	default:
		return false, fmt.Errorf("%w: unknown question type %d", ErrInvalidResponse, int(q.Type))
	}
}

func (q *Question) choiceIndex(response string) (int, error) {
	response = strings.TrimSpace(response)
	if n, err := strconv.Atoi(response); err == nil {
		if n < 1 || n > len(q.Options) {
			return 0, fmt.Errorf("%w: option %d out of range 1-%d", ErrInvalidResponse, n, len(q.Options))
		}
		return n - 1, nil
	}
	for i, opt := range q.Options {
		if Normalize(opt) == Normalize(response) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q is not one of the options", ErrInvalidResponse, response)
}

// ParseClaim reads a true/false answer.
func ParseClaim(response string) (bool, error) {
	switch Normalize(response) {
	case "true", "t", "yes", "y":
		return true, nil
	case "false", "f", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not true or false", ErrInvalidResponse, response)
}
