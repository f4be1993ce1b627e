package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMCPSourceRequiresCommand(t *testing.T) {
	_, err := NewMCPSource(MCPSourceConfig{Name: "clinical-kb"})
	require.Error(t, err)
}

func TestNewMCPSourceBuildsFilterSet(t *testing.T) {
	src, err := NewMCPSource(MCPSourceConfig{
		Name:    "clinical-kb",
		Command: "clinical-kb-mcp",
		Filter:  []string{"lookup-drug-interaction"},
	})
	require.NoError(t, err)
	assert.True(t, src.filterSet["lookup-drug-interaction"])
	assert.False(t, src.filterSet["unrelated-tool"])
}

func TestEnvSliceConvertsMapToKeyValuePairs(t *testing.T) {
	out := envSlice(map[string]string{"API_KEY": "secret"})
	require.Len(t, out, 1)
	assert.Equal(t, "API_KEY=secret", out[0])
}

func TestEnvSliceHandlesNilMap(t *testing.T) {
	assert.Nil(t, envSlice(nil))
}
