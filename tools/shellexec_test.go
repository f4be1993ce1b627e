package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellExecToolRunsAllowedCommand(t *testing.T) {
	tool := NewShellExecTool([]string{"echo"}, "", 5*time.Second)
	res, err := tool.Invoke(context.Background(), map[string]any{"command": "echo hello"}, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "hello")
}

func TestShellExecToolRejectsDisallowedCommand(t *testing.T) {
	tool := NewShellExecTool([]string{"echo"}, "", 5*time.Second)
	_, err := tool.Invoke(context.Background(), map[string]any{"command": "rm -rf /"}, nil)
	require.Error(t, err)

	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrorKindValidation, toolErr.Kind)
}

func TestShellExecToolRejectsEmptyCommand(t *testing.T) {
	tool := NewShellExecTool(nil, "", 5*time.Second)
	_, err := tool.Invoke(context.Background(), map[string]any{}, nil)
	require.Error(t, err)
}

func TestShellExecToolTimesOutLongRunningCommand(t *testing.T) {
	tool := NewShellExecTool([]string{"sleep"}, "", 10*time.Millisecond)
	_, err := tool.Invoke(context.Background(), map[string]any{"command": "sleep 2"}, nil)
	require.Error(t, err)

	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrorKindTimeout, toolErr.Kind)
}
