package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTavilyClient(t *testing.T, handler http.HandlerFunc) (*tavilyClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := newTavilyClient("test-key", 3)
	c.baseURL = srv.URL
	return c, srv
}

func TestWebSearchToolRejectsEmptyQuery(t *testing.T) {
	tool := NewWebSearchTool("test-key", 3)
	_, err := tool.Invoke(context.Background(), map[string]any{}, nil)
	require.Error(t, err)
}

func TestWebSearchToolReturnsTavilyResults(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "aspirin dosage", req.Query)
		assert.Equal(t, "basic", req.SearchDepth)

		resp := tavilyResponse{Results: []tavilyResult{{Title: "Aspirin", URL: "https://example.com", Content: "dosage info"}}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
	srv := httptest.NewServer(http.HandlerFunc(handler))
	defer srv.Close()

	tool := NewWebSearchTool("test-key", 3)
	tool.client.baseURL = srv.URL

	res, err := tool.Invoke(context.Background(), map[string]any{"query": "aspirin dosage"}, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "Aspirin")
}

func TestAbstractSearchToolUsesAdvancedDepth(t *testing.T) {
	var gotDepth string
	handler := func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotDepth = req.SearchDepth
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(tavilyResponse{}))
	}
	srv := httptest.NewServer(http.HandlerFunc(handler))
	defer srv.Close()

	tool := NewAbstractSearchTool("test-key", 3)
	tool.client.baseURL = srv.URL

	_, err := tool.Invoke(context.Background(), map[string]any{"query": "beta blockers"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "advanced", gotDepth)
}

func TestTavilyClientRetriesOnServerError(t *testing.T) {
	attempts := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(tavilyResponse{Results: []tavilyResult{{Title: "ok"}}}))
	}
	c, _ := newTestTavilyClient(t, handler)

	resp, err := c.search(context.Background(), "q", "general", "basic")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 2, attempts)
}

func TestTavilyClientDoesNotRetryOnValidationError(t *testing.T) {
	attempts := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}
	c, _ := newTestTavilyClient(t, handler)

	_, err := c.search(context.Background(), "q", "general", "basic")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrorKindValidation, toolErr.Kind)
}
