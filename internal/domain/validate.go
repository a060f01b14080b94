package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrMalformedDeck is returned when a deck fails validation at load time.
var ErrMalformedDeck = errors.New("malformed deck")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate rejects decks with missing card material or duplicate card IDs.
func Validate(d *Deck) error {
	if d == nil {
		return fmt.Errorf("%w: nil deck", ErrMalformedDeck)
	}
	err := Validator().Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrMalformedDeck, err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w %s: %s", ErrMalformedDeck, d.ID, strings.Join(problems, "; "))
}
