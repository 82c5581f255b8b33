package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"spectra/internal/chat"
	"spectra/internal/config"
	"spectra/internal/conversation"
	"spectra/internal/observability"
	"spectra/internal/persona"
)

// Orchestrator is the per-turn conversation engine the server drives.
type Orchestrator interface {
	RunTurn(ctx context.Context, sessionID, message string, images []string) (chat.TurnResult, error)
	CurrentPersona(ctx context.Context, sessionID string) (string, persona.Record, error)
	SwitchPersona(ctx context.Context, sessionID, name string) error
	ResetSession(ctx context.Context, sessionID string) error
	History(ctx context.Context, sessionID string) ([]conversation.Message, error)
}

const sessionCookieName = "spectra_session"

type Server struct {
	cfg          config.Config
	orchestrator Orchestrator
	personas     *persona.Store
	metrics      *observability.Metrics
	log          zerolog.Logger
	hub          *eventHub
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, orchestrator Orchestrator, personas *persona.Store, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		personas:     personas,
		metrics:      metrics,
		log:          log,
		hub:          newEventHub(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same origin.
				// Non-browser clients often omit Origin; allow them.
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/api/personas", s.handleListPersonas)
	r.Get("/api/current_persona", s.handleGetCurrentPersona)
	r.Post("/api/current_persona", s.handleSwitchPersona)
	r.Post("/api/persona_settings", s.handleUpdatePersonaSettings)

	r.Post("/api/chat", s.handleChat)
	r.Post("/api/reset", s.handleReset)
	r.Get("/api/history", s.handleHistory)
	r.Get("/api/events", s.handleEvents)

	r.Get("/static/audio/{file}", s.handleAudioAsset)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": s.cfg.AIProvider,
	})
}

// sessionID reads the session cookie, issuing a fresh one on first contact.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
