package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conorfennell/notedeck/internal/domain"
	"github.com/conorfennell/notedeck/internal/progress"
	"github.com/conorfennell/notedeck/internal/storage"
)

// Client talks to a notedeck server. It satisfies the store a review session
// reads decks from and writes progress to.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL. A nil httpClient
// gets a client with a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// FetchDeck loads a deck and its saved progress.
func (c *Client) FetchDeck(ctx context.Context, deckID string) (*domain.Deck, *domain.Progress, error) {
	var resp DeckResponse
	if err := c.do(ctx, http.MethodGet, "/api/decks/"+url.PathEscape(deckID), nil, &resp); err != nil {
		return nil, nil, err
	}
	if resp.Deck == nil {
		return nil, nil, fmt.Errorf("server returned no deck for %s", deckID)
	}
	return resp.Deck, resp.Progress, nil
}

// SaveProgress replaces the saved progress of a deck.
func (c *Client) SaveProgress(ctx context.Context, deckID string, p domain.Progress) error {
	return c.do(ctx, http.MethodPut, "/api/decks/"+url.PathEscape(deckID)+"/progress", p, nil)
}

// ListDecks returns every deck known to the server.
func (c *Client) ListDecks(ctx context.Context) ([]storage.DeckInfo, error) {
	var decks []storage.DeckInfo
	if err := c.do(ctx, http.MethodGet, "/api/decks", nil, &decks); err != nil {
		return nil, err
	}
	return decks, nil
}

// Summary returns the server-side progress summary of a deck.
func (c *Client) Summary(ctx context.Context, deckID string) (progress.Summary, error) {
	var sum progress.Summary
	err := c.do(ctx, http.MethodGet, "/api/decks/"+url.PathEscape(deckID)+"/summary", nil, &sum)
	return sum, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", storage.ErrDeckNotFound, e.Error)
		}
		if resp.StatusCode == http.StatusUnprocessableEntity {
			return fmt.Errorf("%w: %s", domain.ErrMalformedDeck, e.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, e.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
