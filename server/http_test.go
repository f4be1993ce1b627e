package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/llm"
	"github.com/medassist-ai/core/orchestrator"
	"github.com/medassist-ai/core/prompt"
	"github.com/medassist-ai/core/session"
	"github.com/medassist-ai/core/tools"
	"github.com/medassist-ai/core/workflow"
)

type fakeBackend struct{ response string }

func (b fakeBackend) Invoke(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage) (llm.Message, error) {
	return llm.Message{Content: b.response}, nil
}

func (b fakeBackend) Stream(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage, onDelta llm.DeltaFunc) error {
	return onDelta(llm.Delta{Content: b.response})
}

func newTestServer(t *testing.T) *Server {
	return newTestServerWithTraceDir(t, "")
}

func newTestServerWithTraceDir(t *testing.T, traceDir string) *Server {
	t.Helper()
	store, err := session.New(context.Background(), "sqlite://file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := agent.NewRegistry()
	binder := prompt.New(registry)
	backend := fakeBackend{response: "Ibuprofen is an NSAID used for pain relief."}
	adapter := llm.NewAdapter(map[agent.ModelClass]llm.Backend{
		agent.ModelClassBasic:     backend,
		agent.ModelClassReasoning: backend,
		agent.ModelClassVision:    backend,
	})
	engine := workflow.New(registry, binder, adapter, tools.NewRegistry())
	orch := orchestrator.New(store, engine, registry, time.Minute, nil)
	return New(orch, store, registry, traceDir)
}

func TestHandleHealthReportsOK(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestHandleSchemaServesConfigSchema(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/schema", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.NotEmpty(t, doc)
}

func TestHandleTeamMembersListsRegistry(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/team_members", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []agent.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.NotEmpty(t, entries)
}

func TestHandleCreateSessionReturnsNewSession(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"user_id": "user-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/session", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got["id"])
}

func TestHandleSessionHistoryUnknownSessionReturns404(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/session/ghost/history", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleChatStreamRejectsEmptyMessages(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"messages": []any{}})
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatStreamRejectsUnknownSessionBeforeCommittingStream(t *testing.T) {
	srv := newTestServer(t)
	payload := map[string]any{
		"session_id":   "ghost",
		"messages":     []map[string]any{{"role": "user", "content": "What is ibuprofen?"}},
		"team_members": []string{"coordinator", "planner", "supervisor", "reporter"},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleChatStreamRejectsInvalidRosterBeforeCommittingStream(t *testing.T) {
	srv := newTestServer(t)
	payload := map[string]any{
		"team_members": []string{"not_a_real_worker"},
		"messages":     []map[string]any{{"role": "user", "content": "What is ibuprofen?"}},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatStreamsSessionIDAndEndOfWorkflow(t *testing.T) {
	srv := newTestServer(t)
	payload := map[string]any{
		"messages":     []map[string]any{{"role": "user", "content": "What is ibuprofen?"}},
		"team_members": []string{"coordinator", "planner", "supervisor", "reporter"},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	out := rec.Body.String()
	assert.Contains(t, out, "event: session_id")
	assert.Contains(t, out, "event: end_of_workflow")
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestHandleChatStreamAcceptsMultimodalContentIgnoringImagePart(t *testing.T) {
	srv := newTestServer(t)
	payload := map[string]any{
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": "What is ibuprofen?"},
					{"type": "image", "image_url": "https://example.com/rash.png"},
				},
			},
		},
		"team_members": []string{"coordinator", "planner", "supervisor", "reporter"},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), "event: end_of_workflow")
}

func TestHandleBrowserHistoryServesTraceFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run-1.gif"), []byte("GIF89a"), 0o644))

	srv := newTestServerWithTraceDir(t, dir)
	req := httptest.NewRequest(http.MethodGet, "/api/browser_history/run-1.gif", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GIF89a", rec.Body.String())
}

func TestHandleBrowserHistoryRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServerWithTraceDir(t, dir)
	// Call the handler directly: http.ServeMux itself redirects (301) a
	// path containing "../" before this handler ever sees it, so going
	// through Routes() would only exercise the mux's own cleanup, not the
	// handler's own defense against a traversal payload reaching it.
	req := httptest.NewRequest(http.MethodGet, "/api/browser_history/../../etc/passwd", nil)
	rec := httptest.NewRecorder()
	srv.handleBrowserHistory(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBrowserHistoryRejectsNonGifExtension(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServerWithTraceDir(t, dir)
	req := httptest.NewRequest(http.MethodGet, "/api/browser_history/run-1.txt", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
