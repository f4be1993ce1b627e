// Package server implements the HTTP surface: chat turns over SSE, session
// history and team-roster introspection, health, and metrics, wired the way
// the teacher's HTTPServer builds a plain http.ServeMux rather than reaching
// for a router library.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/config"
	"github.com/medassist-ai/core/events"
	"github.com/medassist-ai/core/orchestrator"
	"github.com/medassist-ai/core/session"
	"github.com/medassist-ai/core/stream"
)

// Server is the HTTP surface over an Orchestrator and a Session Store.
type Server struct {
	orch     *orchestrator.Orchestrator
	sessions *session.Store
	agents   *agent.Registry
	traceDir string
}

// New builds a Server. traceDir is the directory the browser tool writes
// its .gif run traces into (tools/browser.go's BrowserOptions.TraceDir);
// GET /api/browser_history/{filename} serves files from it.
func New(orch *orchestrator.Orchestrator, sessions *session.Store, agents *agent.Registry, traceDir string) *Server {
	return &Server{orch: orch, sessions: sessions, agents: agents, traceDir: traceDir}
}

// Routes builds the ServeMux. Kept as a constructor method, not a package
// global, so tests can mount it against httptest without touching process
// state.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/schema", s.handleSchema)
	mux.HandleFunc("/api/team_members", s.handleTeamMembers)
	mux.HandleFunc("/api/session", s.handleCreateSession)
	mux.HandleFunc("/api/session/", s.handleSessionHistory)
	mux.HandleFunc("/api/chat/stream", s.handleChatStream)
	mux.HandleFunc("/api/browser_history/", s.handleBrowserHistory)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleSchema serves the config.JSONSchema() document so operators can
// validate a YAML config file against the same shape the server loads.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	schema, err := config.JSONSchema()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build config schema")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(schema)
}

func (s *Server) handleTeamMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.agents.List())
}

// handleCreateSession explicitly opens a new conversation, ahead of any
// chat turn, so a client can obtain a session id up front rather than
// relying on the first /api/chat/stream turn to create one implicitly.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserID string `json:"user_id,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	sess, err := s.sessions.CreateSession(r.Context(), "", req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sess)
}

// contentPart is one element of a multimodal messages[].content array, per
// SPEC_FULL.md §6: {type:"text", text} or {type:"image", image_url}.
type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// chatMessage is one element of the wire-level messages array. Content may
// arrive as either a plain string or an array of contentPart objects;
// UnmarshalJSON normalises both into Parts.
type chatMessage struct {
	Role  string
	Parts []contentPart
}

func (m *chatMessage) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role = wire.Role

	var asString string
	if err := json.Unmarshal(wire.Content, &asString); err == nil {
		m.Parts = []contentPart{{Type: "text", Text: asString}}
		return nil
	}

	var asParts []contentPart
	if err := json.Unmarshal(wire.Content, &asParts); err != nil {
		return err
	}
	m.Parts = asParts
	return nil
}

// flattenText joins this message's text parts into one string. Image parts
// have no text-model representation and are dropped here: the boundary
// case "image part when no vision-capable worker is in the roster" is
// satisfied by the image simply never reaching the prompt, not by any
// special-cased error.
func (m chatMessage) flattenText() string {
	var parts []string
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func lastUserText(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].flattenText()
		}
	}
	return ""
}

// chatRequest is the wire shape of a POST /api/chat/stream turn.
type chatRequest struct {
	SessionID            string        `json:"session_id,omitempty"`
	UserID               string        `json:"user_id,omitempty"`
	Messages             []chatMessage `json:"messages"`
	TeamMembers          []string      `json:"team_members"`
	DeepThinking         bool          `json:"deep_thinking_mode,omitempty"`
	SearchBeforePlanning bool          `json:"search_before_planning,omitempty"`
	Debug                bool          `json:"debug,omitempty"`
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	input := lastUserText(req.Messages)
	if input == "" {
		writeError(w, http.StatusBadRequest, "messages must contain a non-empty user turn")
		return
	}

	turn := orchestrator.TurnRequest{
		SessionID:            req.SessionID,
		UserID:               req.UserID,
		Input:                input,
		TeamRoster:           req.TeamMembers,
		DeepThinking:         req.DeepThinking,
		SearchBeforePlanning: req.SearchBeforePlanning,
		Debug:                req.Debug,
	}

	// Validate before committing to the stream: stream.New writes the 200
	// status header immediately, so any 4xx (bad roster, unknown session)
	// must be decided first or it can never be surfaced to the client (§7).
	if err := s.orch.ValidateTurn(r.Context(), turn); err != nil {
		if errors.Is(err, orchestrator.ErrUnknownSession) {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sw, err := stream.New(ctx, w, cancel)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming is not supported by this connection")
		return
	}

	ch := make(chan events.Envelope, 64)
	runErr := make(chan error, 1)
	go func() {
		defer close(ch)
		runErr <- s.orch.RunTurn(ctx, turn, func(e events.Envelope) {
			select {
			case ch <- e:
			case <-ctx.Done():
			}
		})
	}()

	sw.Run(ctx, ch)

	if err := <-runErr; err != nil {
		if errors.Is(err, orchestrator.ErrUnknownSession) {
			slog.Warn("chat turn named an unknown session", "session_id", req.SessionID)
			return
		}
		slog.Error("chat turn failed", "error", err)
	}
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/session/")
	sessionID, suffix, ok := strings.Cut(rest, "/")
	if !ok || suffix != "history" || sessionID == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	sess, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load session history")
		return
	}

	messages, err := s.sessions.ListMessages(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load session history")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id": sess.ID,
		"messages":   session.FormatForClient(messages),
		"state":      json.RawMessage(sess.State),
	})
}

// handleBrowserHistory serves the .gif run traces tools/browser.go's
// writeTrace writes into the browser tool's trace directory.
func (s *Server) handleBrowserHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename := strings.TrimPrefix(r.URL.Path, "/api/browser_history/")
	if filename == "" || strings.Contains(filename, "/") || filepath.Base(filename) != filename {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if filepath.Ext(filename) != ".gif" {
		writeError(w, http.StatusBadRequest, "only .gif traces are served")
		return
	}
	if s.traceDir == "" {
		writeError(w, http.StatusNotFound, "no trace directory configured")
		return
	}

	http.ServeFile(w, r, filepath.Join(s.traceDir, filename))
}

// writeError mirrors the teacher's sanitized error-response shape: a status
// code and a safe detail string, never the raw underlying error.
func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// Shutdown is a narrow alias kept for symmetry with net/http.Server's own
// method so cmd/medassistd can treat this type uniformly during graceful
// shutdown sequencing.
func Shutdown(ctx context.Context, httpServer *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
