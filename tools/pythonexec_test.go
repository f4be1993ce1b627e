package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPythonExecToolRejectsEmptyCode(t *testing.T) {
	tool := NewPythonExecTool("python3", 5*time.Second)
	_, err := tool.Invoke(context.Background(), map[string]any{}, nil)
	require.Error(t, err)
}

func TestPythonExecToolRunsSnippetAndReturnsOutput(t *testing.T) {
	tool := NewPythonExecTool("python3", 5*time.Second)
	res, err := tool.Invoke(context.Background(), map[string]any{"code": "print('hello from python')"}, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "hello from python")
}

func TestPythonExecToolSurfacesNonZeroExit(t *testing.T) {
	tool := NewPythonExecTool("python3", 5*time.Second)
	_, err := tool.Invoke(context.Background(), map[string]any{"code": "raise SystemExit(1)"}, nil)
	require.Error(t, err)

	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrorKindPermanent, toolErr.Kind)
}
