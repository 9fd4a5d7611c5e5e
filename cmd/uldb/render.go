package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/MikhailWahib/uldb/internal/interp"
	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#8B5CF6")
	mutedColor   = lipgloss.Color("#94A3B8")
	errorColor   = lipgloss.Color("#EF4444")
	successColor = lipgloss.Color("#10B981")
)

const columnGap = 2

type renderer struct {
	w io.Writer

	promptStyle  lipgloss.Style
	headerStyle  lipgloss.Style
	rowStyle     lipgloss.Style
	messageStyle lipgloss.Style
	errorStyle   lipgloss.Style
	mutedStyle   lipgloss.Style
}

// newRenderer styles output for w. lipgloss drops colors when w is not a
// terminal.
func newRenderer(w io.Writer) *renderer {
	r := lipgloss.NewRenderer(w)
	return &renderer{
		w:            w,
		promptStyle:  r.NewStyle().Foreground(primaryColor).Bold(true),
		headerStyle:  r.NewStyle().Bold(true).Underline(true),
		rowStyle:     r.NewStyle(),
		messageStyle: r.NewStyle().Foreground(successColor),
		errorStyle:   r.NewStyle().Foreground(errorColor).Bold(true),
		mutedStyle:   r.NewStyle().Foreground(mutedColor).Italic(true),
	}
}

func (r *renderer) prompt() {
	fmt.Fprint(r.w, r.promptStyle.Render(strings.TrimSpace(prompt))+" ")
}

func (r *renderer) newline() {
	fmt.Fprintln(r.w)
}

func (r *renderer) error(err error) {
	fmt.Fprintln(r.w, r.errorStyle.Render("error:")+" "+err.Error())
}

// result prints a message, or the rows of res aligned under its columns.
func (r *renderer) result(res *interp.Result) {
	if len(res.Columns) == 0 {
		fmt.Fprintln(r.w, r.messageStyle.Render(res.Message))
		return
	}
	if len(res.Rows) == 0 {
		fmt.Fprintln(r.w, r.mutedStyle.Render("(no rows)"))
		return
	}

	widths := make([]int, len(res.Columns))
	for i, c := range res.Columns {
		widths[i] = lipgloss.Width(c)
	}
	for _, row := range res.Rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			s := style
			if i < len(cells)-1 {
				s = s.Width(widths[i] + columnGap).PaddingRight(columnGap)
			}
			parts[i] = s.Render(c)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}
	fmt.Fprintln(r.w, line(res.Columns, r.headerStyle))
	for _, row := range res.Rows {
		fmt.Fprintln(r.w, line(row, r.rowStyle))
	}
}
