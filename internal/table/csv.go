package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrEmptyHeader is returned when a CSV has no header row.
var ErrEmptyHeader = errors.New("csv has no header row")

// naValues are read as missing cells, in addition to the empty string.
var naValues = map[string]struct{}{
	"NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "<NA>": {}, "#N/A": {}, "#N/A N/A": {},
	"#NA": {}, "1.#IND": {}, "1.#QNAN": {}, "-1.#IND": {}, "-1.#QNAN": {},
}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// IsNA reports whether a raw field denotes a missing value.
func IsNA(field string) bool {
	if field == "" {
		return true
	}
	_, ok := naValues[field]
	return ok
}

// ReadFile decodes the CSV file at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return t, nil
}

// Decode reads a CSV with a header row. Columns whose non-missing values all
// parse as decimals become number columns; everything else is text. Rows
// shorter than the header are padded with missing cells; longer rows are an
// error.
func Decode(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	names := dedupeNames(header)
	var raw [][]string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		if len(rec) > len(names) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", line, len(rec), len(names))
		}
		raw = append(raw, rec)
	}

	t := &Table{Columns: make([]Column, len(names)), Rows: make([][]Cell, len(raw))}
	for i := range t.Rows {
		t.Rows[i] = make([]Cell, len(names))
	}

	for c, name := range names {
		kind := inferKind(raw, c)
		t.Columns[c] = Column{Name: name, Kind: kind}
		for r, rec := range raw {
			t.Rows[r][c] = parseField(rec, c, kind)
		}
	}

	return t, nil
}

// dedupeNames renames repeated headers to name.1, name.2, ...
func dedupeNames(header []string) []string {
	taken := make(map[string]bool, len(header))
	names := make([]string, len(header))
	for i, h := range header {
		name := h
		for n := 1; taken[name]; n++ {
			name = fmt.Sprintf("%s.%d", h, n)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

func inferKind(raw [][]string, c int) Kind {
	for _, rec := range raw {
		if c >= len(rec) || IsNA(rec[c]) {
			continue
		}
		if _, err := decimal.NewFromString(strings.TrimSpace(rec[c])); err != nil {
			return KindText
		}
	}
	return KindNumber
}

func parseField(rec []string, c int, kind Kind) Cell {
	if c >= len(rec) || IsNA(rec[c]) {
		return Null()
	}
	if kind == KindNumber {
		// inferKind already proved every field parses
		d, _ := decimal.NewFromString(strings.TrimSpace(rec[c]))
		return Number(d)
	}
	return Text(rec[c])
}

// Records renders the header and rows as CSV fields. Missing cells become
// empty fields. A time column is written as dates when every value falls on
// midnight, with a time component otherwise.
func (t *Table) Records() ([]string, [][]string) {
	header := t.Names()

	layouts := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		if col.Kind == KindTime {
			layouts[i] = timeLayout(t.Rows, i)
		}
	}

	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(row))
		for i, cell := range row {
			out[i] = FormatCell(cell, t.Columns[i].Kind, layouts[i])
		}
		rows[r] = out
	}
	return header, rows
}

// FormatCell renders one cell. layout applies to time cells only.
func FormatCell(c Cell, kind Kind, layout string) string {
	if c.Null {
		return ""
	}
	switch kind {
	case KindNumber:
		return c.Num.String()
	case KindTime:
		if layout == "" {
			layout = DateTimeLayout
		}
		return c.Time.Format(layout)
	default:
		return c.Text
	}
}

func timeLayout(rows [][]Cell, col int) string {
	for _, row := range rows {
		c := row[col]
		if c.Null {
			continue
		}
		h, m, s := c.Time.Clock()
		if h != 0 || m != 0 || s != 0 || c.Time.Nanosecond() != 0 {
			return DateTimeLayout
		}
	}
	return DateLayout
}

// Encode writes t as CSV to w.
func (t *Table) Encode(w io.Writer) error {
	header, rows := t.Records()

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// dateLayouts are tried in order when converting a text column to times.
var dateLayouts = []string{
	DateLayout,
	DateTimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"20060102",
}

// ParseTime parses s with the first accepted layout. Layouts without a zone
// are read as UTC wall-clock time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseTimeColumn converts the named column to timestamps in place. The
// conversion is all or nothing: on the first unparseable value the table is
// left untouched and the error is returned. Number columns holding eight
// digit values are read as YYYYMMDD.
func (t *Table) ParseTimeColumn(name string) error {
	i := t.Index(name)
	if i < 0 {
		return fmt.Errorf("column %q not found", name)
	}

	col := t.Columns[i]
	if col.Kind == KindTime {
		return nil
	}

	cells := make([]Cell, len(t.Rows))
	for r, row := range t.Rows {
		c := row[i]
		if c.Null {
			cells[r] = Null()
			continue
		}

		raw := c.Text
		if col.Kind == KindNumber {
			raw = c.Num.String()
		}
		if col.Kind == KindText && raw == "" {
			cells[r] = Null()
			continue
		}

		ts, err := ParseTime(raw)
		if err != nil {
			return fmt.Errorf("row %d: %w", r+1, err)
		}
		cells[r] = Timestamp(ts)
	}

	t.SetColumn(name, KindTime, cells)
	return nil
}

// Float returns the cell as a float64, for presentation only.
func (c Cell) Float() float64 {
	f, _ := c.Num.Float64()
	return f
}

// Format renders c the way Records would for a column of the given kind.
func (c Cell) Format(kind Kind) string {
	if kind == KindTime && !c.Null {
		h, m, s := c.Time.Clock()
		if h == 0 && m == 0 && s == 0 {
			return c.Time.Format(DateLayout)
		}
	}
	return FormatCell(c, kind, "")
}
