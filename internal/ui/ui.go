// Package ui renders engine results for the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Printer writes styled output. Colours are dropped automatically when w is not a terminal.
type Printer struct {
	w io.Writer

	errorStyle   lipgloss.Style
	warnStyle    lipgloss.Style
	successStyle lipgloss.Style
	hintStyle    lipgloss.Style
	boldStyle    lipgloss.Style
	dimStyle     lipgloss.Style
	headerStyle  lipgloss.Style
	cellStyle    lipgloss.Style
	borderStyle  lipgloss.Style
}

// NewPrinter constructs a Printer for w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:            w,
		errorStyle:   r.NewStyle().Foreground(lipgloss.Color("#DC2626")).Bold(true),
		warnStyle:    r.NewStyle().Foreground(lipgloss.Color("#CA8A04")),
		successStyle: r.NewStyle().Foreground(lipgloss.Color("#16A34A")),
		hintStyle:    r.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true),
		boldStyle:    r.NewStyle().Bold(true),
		dimStyle:     r.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
		headerStyle:  r.NewStyle().Bold(true).Padding(0, 1),
		cellStyle:    r.NewStyle().Padding(0, 1),
		borderStyle:  r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Success prints a green line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.successStyle.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a yellow warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.warnStyle.Render("Warning: "+fmt.Sprintf(format, args...)))
}

// Error prints a styled error with optional hint.
func (p *Printer) Error(title, hint string) {
	fmt.Fprintln(p.w, p.errorStyle.Render("Error: "+title))
	if hint != "" {
		fmt.Fprintln(p.w, "  "+p.hintStyle.Render("Hint: "+hint))
	}
}

// Line prints an unstyled line.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Title prints a bold heading.
func (p *Printer) Title(s string) {
	fmt.Fprintln(p.w, p.boldStyle.Render(s))
}

// Check prints an OK or ERR line for a doctor check.
func (p *Printer) Check(ok bool, name, detail string) {
	mark := p.successStyle.Render("OK ")
	if !ok {
		mark = p.errorStyle.Render("ERR")
	}
	line := fmt.Sprintf("  %s %s", mark, name)
	if detail != "" {
		line += " " + p.dimStyle.Render(detail)
	}
	fmt.Fprintln(p.w, line)
}

// Table prints rows under headers.
func (p *Printer) Table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.headerStyle
			}
			return p.cellStyle
		})
	fmt.Fprintln(p.w, t.String())
}

func (p *Printer) state(s string) string {
	switch s {
	case "running", "enabled", "yes":
		return p.successStyle.Render(s)
	case "error", "dead", "restarting":
		return p.errorStyle.Render(s)
	case "unknown", "paused":
		return p.warnStyle.Render(s)
	default:
		return p.dimStyle.Render(s)
	}
}

func join(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
