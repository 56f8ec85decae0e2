package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sternrassler/vinyl-library/pkg/collection"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/term"
)

type Renderer struct {
	width int
	r     *lipgloss.Renderer

	headerStyle lipgloss.Style
	cellStyle   lipgloss.Style
	borderStyle lipgloss.Style
	statusStyle lipgloss.Style
	errorStyle  lipgloss.Style
}

func NewRenderer(w io.Writer, width int) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		width:       width,
		r:           r,
		headerStyle: r.NewStyle().Bold(true).Padding(0, 1),
		cellStyle:   r.NewStyle().Padding(0, 1),
		borderStyle: r.NewStyle().Faint(true),
		statusStyle: r.NewStyle().Faint(true),
		errorStyle:  r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

func NewRendererAuto(w io.Writer) *Renderer {
	width := 80
	if f, ok := w.(*os.File); ok {
		if tw, _, err := term.GetSize(f.Fd()); err == nil && tw > 0 {
			width = tw
		}
	}
	return NewRenderer(w, width)
}

// RenderCollection draws the visible items as an Artist/Title/Year table
// followed by a status line.
func (r *Renderer) RenderCollection(items []collection.Item, snap collection.Snapshot) string {
	var sb strings.Builder

	if len(items) == 0 {
		sb.WriteString("No items.\n")
	} else {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(r.borderStyle).
			Width(r.width).
			Headers("Artist", "Title", "Year").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return r.headerStyle
				}
				return r.cellStyle
			})
		for _, item := range items {
			t.Row(item.Artists, item.Title, item.Year)
		}
		sb.WriteString(t.Render())
		sb.WriteString("\n")
	}

	sb.WriteString(r.statusStyle.Render(statusLine(len(items), snap)))
	sb.WriteString("\n")

	if snap.LastError != nil {
		sb.WriteString(r.errorStyle.Render("error: " + snap.LastError.Error()))
		sb.WriteString("\n")
	}
	return sb.String()
}

func statusLine(shown int, snap collection.Snapshot) string {
	p := snap.Pagination

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d shown, %d loaded", shown, snap.Loaded)
	if p.TotalItemsKnown {
		fmt.Fprintf(&sb, " of %d", p.TotalItems)
	}
	if p.TotalPagesKnown {
		fmt.Fprintf(&sb, ", %d of %d pages", snap.HighestPage, p.TotalPages)
	}
	switch {
	case snap.BulkError != nil:
		sb.WriteString(", stopped early")
	case p.Exhausted:
		sb.WriteString(", complete")
	}
	if snap.Query != "" {
		fmt.Fprintf(&sb, ", search %q", snap.Query)
	}
	return sb.String()
}
