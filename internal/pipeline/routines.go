package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scscodes/flsd/internal/table"
)

// Columns added by the type routines.
const (
	ColumnRunningTotal = "running_total"
	ColumnPctChange    = "pct_change"
)

// Env carries the collaborators every routine needs.
type Env struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	return e
}

// routineResult is the outcome of one routine over a table.
type routineResult struct {
	Table      *table.Table
	Stats      Stats
	Degraded   bool
	Warnings   []string
	FutureRows int
}

type augmentFunc func(env Env, t *table.Table, res *routineResult) error

// runRoutine cleans t and applies the augmentation selected by dt. Any
// augmentation failure, panics included, leaves the baseline-cleaned table.
func runRoutine(ctx context.Context, env Env, dt DataType, t *table.Table) *routineResult {
	env = env.withDefaults()
	logger := env.Logger.With(slog.String("data_type", dt.String()))

	cleaned, stats := Clean(t)
	res := &routineResult{Table: cleaned, Stats: stats}

	var augment augmentFunc
	switch dt {
	case Financial:
		augment = augmentFinancial
	case Market:
		augment = augmentMarket
	case Forecast:
		augment = augmentForecast
	default:
		return res
	}

	if missing := cleaned.Missing(dt.RequiredColumns()...); len(missing) > 0 {
		res.degrade(ctx, logger, fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
		return res
	}

	work := cleaned.Clone()
	if err := safeAugment(augment, env, work, res); err != nil {
		res.Table = cleaned
		res.FutureRows = 0
		res.degrade(ctx, logger, err.Error())
		return res
	}
	res.Table = work
	for _, w := range res.Warnings {
		logger.WarnContext(ctx, "routine warning", slog.String("warning", w))
	}
	return res
}

func safeAugment(augment augmentFunc, env Env, t *table.Table, res *routineResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("routine panicked: %v", r)
		}
	}()
	return augment(env, t, res)
}

func (r *routineResult) degrade(ctx context.Context, logger *slog.Logger, reason string) {
	r.Degraded = true
	r.Warnings = append(r.Warnings, reason)
	logger.WarnContext(ctx, "falling back to baseline cleaning", slog.String("reason", reason))
}

func (r *routineResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// augmentFinancial appends the inclusive running total of amount, in input
// row order. An unparseable date column is left as it is.
func augmentFinancial(_ Env, t *table.Table, res *routineResult) error {
	if err := t.ParseTimeColumn("date"); err != nil {
		res.warn("date column left unparsed: %v", err)
	}

	amount := t.Index("amount")
	if t.Columns[amount].Kind != table.KindNumber {
		return fmt.Errorf("amount column is not numeric")
	}

	total := decimal.Zero
	cells := make([]table.Cell, t.Len())
	for r, row := range t.Rows {
		total = total.Add(row[amount].Num)
		cells[r] = table.Number(total)
	}
	t.SetColumn(ColumnRunningTotal, table.KindNumber, cells)
	return nil
}

var hundred = decimal.NewFromInt(100)

// augmentMarket sorts rows by date, stable and oldest first with missing
// dates last, and appends the period-over-period price change in percent.
func augmentMarket(_ Env, t *table.Table, res *routineResult) error {
	if err := t.ParseTimeColumn("date"); err != nil {
		return fmt.Errorf("cannot sort by date: %w", err)
	}

	price := t.Index("price")
	if t.Columns[price].Kind != table.KindNumber {
		return fmt.Errorf("price column is not numeric")
	}

	date := t.Index("date")
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i][date], t.Rows[j][date]
		if a.Null || b.Null {
			return !a.Null && b.Null
		}
		return a.Time.Before(b.Time)
	})

	cells := make([]table.Cell, t.Len())
	for r, row := range t.Rows {
		if r == 0 {
			cells[r] = table.Null()
			continue
		}
		prev := t.Rows[r-1][price].Num
		if prev.IsZero() {
			cells[r] = table.Null()
			continue
		}
		cells[r] = table.Number(row[price].Num.Sub(prev).Div(prev).Mul(hundred))
	}
	t.SetColumn(ColumnPctChange, table.KindNumber, cells)

	if zeros := countNull(cells) - 1; zeros > 0 {
		res.warn("pct_change undefined for %d rows after a zero price", zeros)
	}
	return nil
}

// augmentForecast counts rows dated after the start of today. Nothing is
// added to the table.
func augmentForecast(env Env, t *table.Table, res *routineResult) error {
	if err := t.ParseTimeColumn("date"); err != nil {
		return fmt.Errorf("cannot count future rows: %w", err)
	}

	today := StartOfDay(env.Now())
	date := t.Index("date")
	for _, row := range t.Rows {
		if !row[date].Null && row[date].Time.After(today) {
			res.FutureRows++
		}
	}
	return nil
}

// StartOfDay returns midnight of now's calendar day as a UTC wall-clock
// time, the same form parsed dates take.
func StartOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func countNull(cells []table.Cell) int {
	n := 0
	for _, c := range cells {
		if c.Null {
			n++
		}
	}
	return n
}
