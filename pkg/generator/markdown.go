// Package generator provides Title/Tag Generator implementations.
package generator

import (
	"context"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/aretw0/notecap/pkg/core"
)

// MaxTitleLength bounds generated titles, in runes.
const MaxTitleLength = 50

var hashtagPattern = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_][\p{L}\p{N}_/-]*)`)

// Markdown derives a title from the first heading of the note (falling back
// to the first non-empty line) and tags from inline #hashtags.
type Markdown struct {
	parser parser.Parser
}

// NewMarkdown creates a Markdown generator.
func NewMarkdown() *Markdown {
	return &Markdown{parser: goldmark.DefaultParser()}
}

// Generate implements core.Generator.
func (m *Markdown) Generate(ctx context.Context, content string) (core.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return core.Suggestion{}, &core.GeneratorError{Generator: "markdown", Err: err}
	}
	if strings.TrimSpace(content) == "" {
		return core.Suggestion{}, &core.GeneratorError{Generator: "markdown", Err: errEmpty}
	}

	source := []byte(content)
	doc := m.parser.Parse(text.NewReader(source))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			title = strings.TrimSpace(string(h.Text(source)))
			if title != "" {
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	if title == "" {
		title = firstLine(content)
	}

	tags := Hashtags(content)
	if len(tags) == 0 {
		tags = []string{FallbackTag(content)}
	}

	return core.Suggestion{Title: Truncate(title, MaxTitleLength), Tags: tags}, nil
}

// Hashtags extracts lowercased, de-duplicated #tags in order of appearance.
// Markdown headings ("# Title") are not tags.
func Hashtags(content string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range hashtagPattern.FindAllStringSubmatch(content, -1) {
		tag := strings.ToLower(m[1])
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

// FallbackTag is the local heuristic tag: "markdown" when the content
// contains '#', else "text".
func FallbackTag(content string) string {
	if strings.Contains(content, "#") {
		return "markdown"
	}
	return "text"
}

// FallbackTitle is the local heuristic title: the first line, at most
// MaxTitleLength runes, or "Untitled Note" when that is empty.
func FallbackTitle(content string) string {
	line := strings.SplitN(content, "\n", 2)[0]
	if t := Truncate(line, MaxTitleLength); t != "" {
		return t
	}
	return UntitledNote
}

// UntitledNote is the title of a note whose first line is empty.
const UntitledNote = "Untitled Note"

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return UntitledNote
}
