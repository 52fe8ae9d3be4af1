package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorAmber = lipgloss.Color("#f59e0b")
	colorBlue  = lipgloss.Color("#3b82f6")
	colorDim   = lipgloss.Color("#6b7280")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	greenStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	redStyle    = lipgloss.NewStyle().Foreground(colorRed)
	amberStyle  = lipgloss.NewStyle().Foreground(colorAmber)
)

// useColor is decided once; tests run without a terminal.
var useColor = isInteractiveTTY()

func isInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func paint(style lipgloss.Style, s string) string {
	if !useColor {
		return s
	}
	return style.Render(s)
}

// statusStyle picks the color of a status cell.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "RUNNING", "AVAILABLE", "SUCCEEDED":
		return greenStyle
	case "ERROR", "FAILED", "TERMINATED", "DELETED":
		return redStyle
	case "PENDING", "QUEUED", "SUSPENDED":
		return amberStyle
	default:
		return dimStyle
	}
}

func checkOutput(format string) error {
	switch format {
	case "", OutputTable, OutputJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", format, OutputTable, OutputJSON)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// table is a column aligned text table. statusCol, when not negative,
// names the column painted by statusStyle.
type table struct {
	headers   []string
	rows      [][]string
	statusCol int
}

func newTable(headers ...string) *table {
	return &table{headers: headers, statusCol: -1}
}

func (t *table) withStatus(col int) *table {
	t.statusCol = col
	return t
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) error {
	if len(t.rows) == 0 {
		_, err := fmt.Fprintln(w, paint(dimStyle, "No resources found."))
		return err
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	var b strings.Builder
	b.WriteString(paint(headerStyle, pad(t.headers, widths)))
	b.WriteString("\n")
	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprintf("%-*s", widths[i], cell)
			if i == t.statusCol {
				cells[i] = paint(statusStyle(cell), cells[i])
			}
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func pad(cells []string, widths []int) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = fmt.Sprintf("%-*s", widths[i], c)
	}
	return strings.TrimRight(strings.Join(out, "  "), " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
