// Package render holds Renderer implementations: the narrow text-in,
// text-out collaborator used to present note bodies.
package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/notecap/pkg/core"
)

// DefaultWidth is the word-wrap width used when none is configured.
const DefaultWidth = 80

// Styles accepted by New besides "auto".
const (
	StyleAuto  = "auto"
	StyleNoTTY = "notty"
)

// Markdown renders note bodies for a terminal with glamour.
type Markdown struct {
	style string
	width int

	once sync.Once
	r    *glamour.TermRenderer
	err  error
}

// New creates a Markdown renderer. style is a glamour standard style name
// ("dark", "light", "dracula", "notty") or "auto".
func New(style string, width int) *Markdown {
	if style == "" {
		style = StyleAuto
	}
	if width <= 0 {
		width = DefaultWidth
	}
	return &Markdown{style: style, width: width}
}

func (m *Markdown) renderer() (*glamour.TermRenderer, error) {
	m.once.Do(func() {
		styleOpt := glamour.WithStandardStyle(m.style)
		if m.style == StyleAuto {
			styleOpt = glamour.WithAutoStyle()
		}
		m.r, m.err = glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(m.width))
	})
	return m.r, m.err
}

// Render implements core.Renderer. An empty body renders as empty.
func (m *Markdown) Render(text string) (string, error) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return "", nil
	}
	r, err := m.renderer()
	if err != nil {
		return "", err
	}
	out, err := r.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// Plain returns text unchanged.
type Plain struct{}

// Render implements core.Renderer.
func (Plain) Render(text string) (string, error) {
	return text, nil
}

var (
	_ core.Renderer = (*Markdown)(nil)
	_ core.Renderer = Plain{}
)
