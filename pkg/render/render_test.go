package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown_Render(t *testing.T) {
	r := New(StyleNoTTY, 40)

	out, err := r.Render("# Hello\n\nWorld")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "World")

	out, err = r.Render("\n\n")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMarkdown_UnknownStyle(t *testing.T) {
	_, err := New("no-such-style", 40).Render("text")
	assert.Error(t, err)
}

func TestPlain(t *testing.T) {
	out, err := Plain{}.Render("# raw")
	require.NoError(t, err)
	assert.Equal(t, "# raw", out)
}
