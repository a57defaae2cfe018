// Package table holds the in-memory form of a CSV file: ordered, named
// columns with a per-column kind, and rows of nullable cells.
package table

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the value kind shared by every cell of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindTime
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	default:
		return "text"
	}
}

// Column describes one column.
type Column struct {
	Name string
	Kind Kind
}

// Cell is a single value. Only the field matching the column kind is
// meaningful; Null marks a missing value of any kind.
type Cell struct {
	Null bool
	Text string
	Num  decimal.Decimal
	Time time.Time
}

// Null returns a missing cell.
func Null() Cell { return Cell{Null: true} }

// Text returns a text cell.
func Text(s string) Cell { return Cell{Text: s} }

// Number returns a numeric cell.
func Number(d decimal.Decimal) Cell { return Cell{Num: d} }

// Int returns a numeric cell holding v.
func Int(v int64) Cell { return Cell{Num: decimal.NewFromInt(v)} }

// Timestamp returns a time cell.
func Timestamp(t time.Time) Cell { return Cell{Time: t} }

// key renders the cell for equality checks. Numbers compare by value, so 1
// and 1.0 are the same cell.
func (c Cell) key(kind Kind) string {
	if c.Null {
		return "\x00"
	}
	switch kind {
	case KindNumber:
		return "n" + c.Num.String()
	case KindTime:
		return "t" + c.Time.UTC().Format(time.RFC3339Nano)
	default:
		return "s" + c.Text
	}
}

// Table is an ordered set of rows over a fixed column list.
type Table struct {
	Columns []Column
	Rows    [][]Cell
}

// New returns an empty table with the given columns.
func New(columns ...Column) *Table {
	return &Table{Columns: columns}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Missing returns the subset of names that are not columns of t, in order.
func (t *Table) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if t.Index(n) < 0 {
			missing = append(missing, n)
		}
	}
	return missing
}

// AddRow appends a row. Short rows are padded with nulls.
func (t *Table) AddRow(cells ...Cell) {
	row := make([]Cell, len(t.Columns))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = Null()
		}
	}
	t.Rows = append(t.Rows, row)
}

// Column returns a copy of the cells of column i.
func (t *Table) Column(i int) []Cell {
	cells := make([]Cell, len(t.Rows))
	for r, row := range t.Rows {
		cells[r] = row[i]
	}
	return cells
}

// SetColumn replaces the named column, or appends it when absent.
// len(cells) must equal t.Len().
func (t *Table) SetColumn(name string, kind Kind, cells []Cell) {
	i := t.Index(name)
	if i < 0 {
		t.Columns = append(t.Columns, Column{Name: name, Kind: kind})
		for r := range t.Rows {
			t.Rows[r] = append(t.Rows[r], cells[r])
		}
		return
	}

	t.Columns[i].Kind = kind
	for r := range t.Rows {
		t.Rows[r][i] = cells[r]
	}
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]Column(nil), t.Columns...),
		Rows:    make([][]Cell, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]Cell(nil), row...)
	}
	return out
}

// Head returns a copy holding at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := &Table{Columns: append([]Column(nil), t.Columns...)}
	for _, row := range t.Rows[:n] {
		out.Rows = append(out.Rows, append([]Cell(nil), row...))
	}
	return out
}

// RowKey renders row r for equality checks across all columns.
func (t *Table) RowKey(r int) string {
	var b strings.Builder
	for i, c := range t.Rows[r] {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(c.key(t.Columns[i].Kind))
	}
	return b.String()
}

// Equal reports whether t and o have the same columns and row values.
func (t *Table) Equal(o *Table) bool {
	if len(t.Columns) != len(o.Columns) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for r := range t.Rows {
		if t.RowKey(r) != o.RowKey(r) {
			return false
		}
	}
	return true
}

// NullCount returns the number of null cells.
func (t *Table) NullCount() int {
	n := 0
	for _, row := range t.Rows {
		for _, c := range row {
			if c.Null {
				n++
			}
		}
	}
	return n
}
