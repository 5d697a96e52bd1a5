package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown pretty-prints a run report to stderr. Report frontmatter is
// stripped first; the metadata is machine-facing and renders badly as
// markdown. Falls back to raw text when the terminal renderer is unavailable.
func RenderMarkdown(md string) {
	md = stripFrontmatter(md)

	style := glamour.WithAutoStyle()
	if plain {
		style = glamour.WithStandardStyle("notty")
	}
	renderer, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, md)
		return
	}

	out, err := renderer.Render(md)
	if err != nil {
		fmt.Fprintln(os.Stderr, md)
		return
	}

	fmt.Fprint(os.Stderr, out)
}

func stripFrontmatter(md string) string {
	trimmed := strings.TrimLeft(md, "\r\n")
	if !strings.HasPrefix(trimmed, "---\n") {
		return md
	}
	end := strings.Index(trimmed[4:], "\n---")
	if end == -1 {
		return md
	}
	return strings.TrimLeft(trimmed[4+end+4:], "\r\n")
}
