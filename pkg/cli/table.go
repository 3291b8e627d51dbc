package cli

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

// ansiRe matches the SGR sequences emitted by paint.
var ansiRe = regexp.MustCompile("\033\\[[0-9;]*m")

// columnGap separates columns.
const columnGap = 2

// Table buffers rows and writes them column-aligned on Flush. Widths are
// terminal cells measured without colour sequences, so painted cells
// (states, outcomes) line up with plain ones. A table with no rows prints
// nothing.
type Table struct {
	out     io.Writer
	headers []string
	rows    [][]string
}

// NewTable creates a table on stdout with the given column headers.
func NewTable(headers ...string) *Table {
	return NewTableTo(os.Stdout, headers...)
}

// NewTableTo creates a table that writes to w.
func NewTableTo(w io.Writer, headers ...string) *Table {
	return &Table{out: w, headers: headers}
}

// Row adds a row. Missing trailing cells are left empty.
func (t *Table) Row(values ...string) {
	t.rows = append(t.rows, values)
}

// Flush writes the header, a dash divider and every row.
func (t *Table) Flush() {
	if len(t.rows) == 0 {
		return
	}

	divider := make([]string, len(t.headers))
	for i, h := range t.headers {
		divider[i] = strings.Repeat("-", len(h))
	}
	lines := append([][]string{t.headers, divider}, t.rows...)

	var widths []int
	for _, cells := range lines {
		for i, c := range cells {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], visibleLen(c))
		}
	}

	var b strings.Builder
	for _, cells := range lines {
		for i, c := range cells {
			b.WriteString(c)
			if i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-visibleLen(c)+columnGap))
			}
		}
		b.WriteByte('\n')
	}
	io.WriteString(t.out, b.String())
	t.rows = nil
}

func visibleLen(s string) int {
	return runewidth.StringWidth(ansiRe.ReplaceAllString(s, ""))
}
