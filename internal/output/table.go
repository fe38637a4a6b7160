package output

import (
	"fmt"
	"io"
	"strings"
)

// Table renders aligned columns for text output.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a table. With no headers only rows are printed.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table to w.
func (t *Table) Render(w io.Writer) error {
	widths := t.widths()
	if len(widths) == 0 {
		return nil
	}

	lines := make([]string, 0, len(t.rows)+2)
	if len(t.headers) > 0 {
		lines = append(lines, formatRow(t.headers, widths))
		rule := make([]string, len(widths))
		for i, n := range widths {
			rule[i] = strings.Repeat("-", n)
		}
		lines = append(lines, formatRow(rule, widths))
	}
	for _, row := range t.rows {
		lines = append(lines, formatRow(row, widths))
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

// String returns the rendered table.
func (t *Table) String() string {
	var sb strings.Builder
	_ = t.Render(&sb)
	return sb.String()
}

func (t *Table) widths() []int {
	var widths []int
	grow := func(cells []string) {
		for i, c := range cells {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], len(c))
		}
	}

	grow(t.headers)
	for _, row := range t.rows {
		grow(row)
	}
	return widths
}

func formatRow(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, n := range widths {
		var c string
		if i < len(cells) {
			c = cells[i]
		}
		parts[i] = fmt.Sprintf("%-*s", n, c)
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}
