// Package components holds reusable lipgloss renderers for CLI output.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/in/cli/ui/styles"
)

// Column defines a table column. Width 0 means unbounded.
type Column struct {
	Title string
	Width int
}

// Table is a bordered table with a styled header row.
type Table struct {
	columns     []Column
	rows        [][]string
	border      lipgloss.Border
	borderStyle lipgloss.Style
	headerStyle lipgloss.Style
	cellStyle   lipgloss.Style
}

// TableOption configures a Table.
type TableOption func(*Table)

// NewTable creates a table with the CLI theme.
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		border:      lipgloss.RoundedBorder(),
		borderStyle: lipgloss.NewStyle().Foreground(styles.ColorBorder),
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorPrimary).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Foreground(styles.ColorText).
			Padding(0, 1),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// WithColumns sets the table columns.
func WithColumns(cols []Column) TableOption {
	return func(t *Table) {
		t.columns = cols
	}
}

// WithRows sets the table rows.
func WithRows(rows [][]string) TableOption {
	return func(t *Table) {
		t.rows = rows
	}
}

// WithHeaderStyle sets the header style.
func WithHeaderStyle(s lipgloss.Style) TableOption {
	return func(t *Table) {
		t.headerStyle = s
	}
}

// WithCellStyle sets the cell style.
func WithCellStyle(s lipgloss.Style) TableOption {
	return func(t *Table) {
		t.cellStyle = s
	}
}

// AddRow appends a row.
func (t *Table) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

// Render renders the table. A table without columns renders as "".
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	headers := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = truncateCell(col.Title, col.Width)
	}

	rows := make([][]string, len(t.rows))
	for rowIdx, row := range t.rows {
		rows[rowIdx] = make([]string, len(row))
		for colIdx, cell := range row {
			rows[rowIdx][colIdx] = truncateCell(cell, t.width(colIdx))
		}
	}

	tbl := table.New().
		Border(t.border).
		BorderStyle(t.borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := t.cellStyle
			if row == table.HeaderRow {
				s = t.headerStyle
			}
			if w := t.width(col); w > 0 {
				return s.Width(w).MaxWidth(w)
			}
			return s
		})

	return tbl.String()
}

func (t *Table) width(col int) int {
	if col < 0 || col >= len(t.columns) {
		return 0
	}
	return t.columns[col].Width
}

// SimpleTable renders headers and rows with unbounded columns.
func SimpleTable(headers []string, rows [][]string) string {
	cols := make([]Column, len(headers))
	for i, h := range headers {
		cols[i] = Column{Title: h}
	}
	return NewTable(WithColumns(cols), WithRows(rows)).Render()
}

// truncateCell cuts value to maxWidth display cells, ending with "...".
// Styled (ANSI) values are left alone.
func truncateCell(value string, maxWidth int) string {
	if strings.Contains(value, "\x1b[") {
		return value
	}

	if maxWidth <= 0 || runewidth.StringWidth(value) <= maxWidth {
		return value
	}

	if maxWidth <= 3 {
		return strings.Repeat(".", maxWidth)
	}

	targetWidth := maxWidth - 3
	b := strings.Builder{}
	currentWidth := 0
	g := uniseg.NewGraphemes(value)
	for g.Next() {
		grapheme := g.Str()
		graphemeWidth := runewidth.StringWidth(grapheme)
		if currentWidth+graphemeWidth > targetWidth {
			break
		}
		b.WriteString(grapheme)
		currentWidth += graphemeWidth
	}

	if b.Len() == 0 {
		return strings.Repeat(".", maxWidth)
	}

	return b.String() + "..."
}

// Truncate keeps the first n runes of s, appending "..." when anything
// was cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
