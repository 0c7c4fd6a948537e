package printer

import (
	"fmt"
	"io"
	"os"

	"github.com/harness/fetch-artifact/internal/style"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/pterm/pterm"
)

// Field is one row of a two-column key/value table.
type Field struct {
	Name  string
	Value string
}

// renderStyledTable renders a table using lipgloss/table with the project's colour theme.
func renderStyledTable(w io.Writer, headers []string, rows [][]string) {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(style.Cyan).
		Padding(0, 1)

	cellStyle := lipgloss.NewStyle().
		Foreground(style.White).
		Padding(0, 1)

	dimCellStyle := lipgloss.NewStyle().
		Foreground(style.Dim).
		Padding(0, 1)

	t := lgtable.New().
		Headers(headers...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(style.Subtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return dimCellStyle
			}
			return cellStyle
		})

	for _, r := range rows {
		t = t.Row(r...)
	}

	fmt.Fprintln(w, t.Render())
}

// renderPtermTable renders a table using pterm (for non-TTY / no-color).
func renderPtermTable(w io.Writer, headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	for _, r := range rows {
		data = append(data, r)
	}
	return pterm.DefaultTable.
		WithHasHeader().
		WithBoxed(true).
		WithWriter(w).
		WithData(data).
		Render()
}

// PrintFields prints fields as a two-column table to w (stdout when nil).
// When colour is enabled it renders with lipgloss, otherwise with pterm.
func PrintFields(w io.Writer, fields []Field) error {
	if w == nil {
		w = os.Stdout
	}
	if len(fields) == 0 {
		return nil
	}

	headers := []string{"FIELD", "VALUE"}
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		value := f.Value
		if value == "" {
			value = "-"
		}
		rows = append(rows, []string{f.Name, value})
	}

	if style.Enabled {
		renderStyledTable(w, headers, rows)
		return nil
	}
	return renderPtermTable(w, headers, rows)
}
