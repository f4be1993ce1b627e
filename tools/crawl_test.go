package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlToolRejectsEmptyURL(t *testing.T) {
	tool := NewCrawlTool()
	_, err := tool.Invoke(context.Background(), map[string]any{}, nil)
	require.Error(t, err)
}

func TestCrawlToolExtractsTextAndSkipsScripts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><style>.x{}</style></head><body><script>evil()</script><p>Ibuprofen dosage guidance</p></body></html>`))
	}))
	defer srv.Close()

	tool := NewCrawlTool()
	res, err := tool.Invoke(context.Background(), map[string]any{"url": srv.URL}, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "Ibuprofen dosage guidance")
	assert.NotContains(t, res.Content, "evil()")
}

func TestCrawlToolSurfacesHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tool := NewCrawlTool()
	_, err := tool.Invoke(context.Background(), map[string]any{"url": srv.URL}, nil)
	require.Error(t, err)

	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrorKindNetwork, toolErr.Kind)
}
