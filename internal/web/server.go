package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/cors"

	"github.com/conorfennell/notedeck/internal/domain"
	"github.com/conorfennell/notedeck/internal/progress"
	"github.com/conorfennell/notedeck/internal/storage"
	"github.com/conorfennell/notedeck/internal/sync"
)

// Server exposes the deck store over a JSON API.
type Server struct {
	db       *storage.DB
	router   *http.ServeMux
	reposDir string
	log      *slog.Logger
}

// DeckResponse is the body of GET /api/decks/{deckID}.
type DeckResponse struct {
	Deck     *domain.Deck     `json:"deck"`
	Progress *domain.Progress `json:"progress,omitempty"`
}

// SyncResponse is the body of POST /api/sync.
type SyncResponse struct {
	Sources      int      `json:"sources"`
	Decks        int      `json:"decks"`
	CardsAdded   int      `json:"cardsAdded"`
	CardsRemoved int      `json:"cardsRemoved"`
	DecksRemoved int      `json:"decksRemoved"`
	Errors       []string `json:"errors"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates and configures a new server. reposDir is where git
// sources are cloned when a sync is requested.
func NewServer(db *storage.DB, reposDir string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		db:       db,
		router:   http.NewServeMux(),
		reposDir: reposDir,
		log:      log,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler wraps the server in a CORS policy for the given origins.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Accept", "Origin"},
		MaxAge:         86400,
	}).Handler(s)
}

func (s *Server) routes() {
	// Decks
	s.router.HandleFunc("GET /api/decks", s.handleListDecks)
	s.router.HandleFunc("POST /api/decks", s.handleCreateDeck)
	s.router.HandleFunc("GET /api/decks/{deckID}", s.handleGetDeck)
	s.router.HandleFunc("DELETE /api/decks/{deckID}", s.handleDeleteDeck)
	s.router.HandleFunc("PUT /api/decks/{deckID}/progress", s.handleSaveProgress)
	s.router.HandleFunc("GET /api/decks/{deckID}/summary", s.handleGetSummary)

	// Sources
	s.router.HandleFunc("GET /api/sources", s.handleListSources)
	s.router.HandleFunc("POST /api/sources", s.handleAddSource)
	s.router.HandleFunc("DELETE /api/sources/{sourceID}", s.handleDeleteSource)
	s.router.HandleFunc("POST /api/sync", s.handleSync)
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.db.ListDecks(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if decks == nil {
		decks = []storage.DeckInfo{}
	}
	writeJSON(w, http.StatusOK, decks)
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	var deck domain.Deck
	if err := json.NewDecoder(r.Body).Decode(&deck); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.db.CreateDeck(r.Context(), &deck); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("Deck created", "deck_id", deck.ID, "cards", len(deck.Cards))
	writeJSON(w, http.StatusCreated, deck)
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	deck, p, err := s.db.FetchDeck(r.Context(), r.PathValue("deckID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeckResponse{Deck: deck, Progress: p})
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteDeck(r.PathValue("deckID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	var p domain.Progress
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for id, st := range p.States {
		if !st.Status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status for card "+id)
			return
		}
	}
	if err := s.db.SaveProgress(r.Context(), r.PathValue("deckID"), p); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	deck, saved, err := s.db.FetchDeck(r.Context(), r.PathValue("deckID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress.ComputeSummary(deck, progress.Restore(deck, saved)))
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sources == nil {
		sources = []storage.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		writeError(w, http.StatusBadRequest, "path cannot be empty")
		return
	}

	existing, err := s.db.FindSourceByPath(path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "source already exists")
		return
	}

	src := storage.Source{Path: path, Type: storage.SourceType(path)}
	if src.ID, err = s.db.InsertSource(src.Path, src.Type); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("Source added", "id", src.ID, "type", src.Type, "path", src.Path)
	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("sourceID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source ID")
		return
	}
	if err := s.db.DeleteSource(id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSync runs a full sync in the foreground so the caller sees the result.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := sync.RunSync(r.Context(), s.db, s.reposDir)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := SyncResponse{
		Sources:      report.Sources,
		Decks:        report.Decks,
		CardsAdded:   report.CardsAdded,
		CardsRemoved: report.CardsRemoved,
		DecksRemoved: report.DecksRemoved,
		Errors:       []string{},
	}
	for _, e := range report.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// fail maps store errors onto status codes and logs unexpected ones.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrDeckNotFound), errors.Is(err, storage.ErrSourceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrMalformedDeck):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
