package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// descriptionRenderer renders task descriptions as markdown and caches the
// last result per task and width.
type descriptionRenderer struct {
	width    int
	renderer *glamour.TermRenderer

	cacheKey string
	cached   string
}

// render returns the styled description for one task, or a placeholder when
// the task has none.
func (r *descriptionRenderer) render(taskID, markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return "(no description)"
	}

	wrapWidth := max(width, 24)
	key := taskID + "\x00" + markdown
	if r.renderer != nil && r.width == wrapWidth && r.cacheKey == key {
		return r.cached
	}

	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	r.cacheKey = key
	r.cached = strings.TrimRight(rendered, "\n")
	return r.cached
}
