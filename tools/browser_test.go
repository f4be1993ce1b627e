package tools

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeActionsParsesKnownFields(t *testing.T) {
	raw := []any{
		map[string]any{"kind": "click", "selector": "#submit"},
		map[string]any{"kind": "type", "selector": "#query", "text": "aspirin"},
		map[string]any{"kind": "wait", "wait_ms": float64(250)},
	}

	actions := decodeActions(raw)
	require.Len(t, actions, 3)
	assert.Equal(t, "click", actions[0].Kind)
	assert.Equal(t, "#submit", actions[0].Selector)
	assert.Equal(t, "type", actions[1].Kind)
	assert.Equal(t, "aspirin", actions[1].Text)
	assert.Equal(t, 250, actions[2].WaitMs)
}

func TestDecodeActionsIgnoresMalformedEntries(t *testing.T) {
	actions := decodeActions([]any{"not-a-map", 42, nil})
	assert.Empty(t, actions)
}

func TestDecodeActionsHandlesNonListInput(t *testing.T) {
	assert.Nil(t, decodeActions("not-a-list"))
}

func TestToPalettedPreservesBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 50), G: 0, B: 0, A: 255})
		}
	}

	dst := toPaletted(src)
	assert.Equal(t, src.Bounds(), dst.Bounds())
}

func TestBrowserToolRejectsEmptyURL(t *testing.T) {
	tool := NewBrowserTool(BrowserOptions{})
	_, err := tool.Invoke(context.Background(), map[string]any{}, nil)
	require.Error(t, err)

	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrorKindValidation, toolErr.Kind)
}
