package pipeline

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/scscodes/flsd/internal/table"
)

// Stats counts what baseline cleaning changed.
type Stats struct {
	DuplicatesRemoved int `json:"duplicates_removed"`
	NullsFilled       int `json:"nulls_filled"`
}

// Clean returns a copy of t without fully duplicate rows, keeping the first
// occurrence, and with every missing cell filled: 0 for number columns, the
// empty string for text and the zero time for time columns.
//
// Filling can make two previously distinct rows equal, so duplicates are
// dropped again afterwards. That keeps Clean idempotent.
func Clean(t *table.Table) (*table.Table, Stats) {
	var stats Stats

	out := dedupe(t, &stats)
	for _, row := range out.Rows {
		for c, cell := range row {
			if !cell.Null {
				continue
			}
			row[c] = fillValue(out.Columns[c].Kind)
			stats.NullsFilled++
		}
	}

	if stats.NullsFilled > 0 {
		out = dedupe(out, &stats)
	}
	return out, stats
}

func dedupe(t *table.Table, stats *Stats) *table.Table {
	out := table.New(append([]table.Column(nil), t.Columns...)...)
	seen := make(map[string]struct{}, t.Len())
	for r, row := range t.Rows {
		key := t.RowKey(r)
		if _, dup := seen[key]; dup {
			stats.DuplicatesRemoved++
			continue
		}
		seen[key] = struct{}{}
		out.Rows = append(out.Rows, append([]table.Cell(nil), row...))
	}
	return out
}

func fillValue(kind table.Kind) table.Cell {
	switch kind {
	case table.KindNumber:
		return table.Number(decimal.Zero)
	case table.KindTime:
		return table.Timestamp(time.Time{})
	default:
		return table.Text("")
	}
}
