package pipeline

import (
	"context"
	"path/filepath"
	"strings"
)

// DataType is the closed set of cleaning routines.
type DataType int

const (
	Default DataType = iota
	Financial
	Market
	Forecast
)

var dataTypeLabels = map[DataType]string{
	Default:   "default",
	Financial: "financial",
	Market:    "market",
	Forecast:  "forecast",
}

// UnknownLabel is the label inferred for raw files without a recognized type prefix.
const UnknownLabel = "unknown"

// String returns the canonical label.
func (d DataType) String() string {
	if l, ok := dataTypeLabels[d]; ok {
		return l
	}
	return dataTypeLabels[Default]
}

// ParseDataType maps a free-form label onto a DataType. Matching ignores case
// and surrounding space. Unrecognized labels map to Default.
func ParseDataType(label string) DataType {
	switch NormalizeLabel(label) {
	case "financial":
		return Financial
	case "market":
		return Market
	case "forecast":
		return Forecast
	default:
		return Default
	}
}

// KnownLabels lists the labels with a dedicated routine, in display order.
func KnownLabels() []string {
	return []string{Financial.String(), Market.String(), Forecast.String()}
}

// IsKnownLabel reports whether label selects a dedicated routine.
func IsKnownLabel(label string) bool {
	return ParseDataType(label) != Default
}

// RequiredColumns are the columns a routine needs before it augments a table.
func (d DataType) RequiredColumns() []string {
	switch d {
	case Financial:
		return []string{"date", "amount"}
	case Market:
		return []string{"date", "price"}
	case Forecast:
		return []string{"date", "prediction"}
	default:
		return nil
	}
}

// ExpectedColumns are the columns a processed file of this type should carry.
func (d DataType) ExpectedColumns() []string {
	switch d {
	case Financial:
		return []string{"date", "amount", ColumnRunningTotal}
	case Market:
		return []string{"date", "price", ColumnPctChange}
	case Forecast:
		return []string{"date", "prediction"}
	default:
		return nil
	}
}

// NormalizeLabel lower-cases and trims a type label and makes it safe to use
// as a file name prefix. An empty label becomes "default".
func NormalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return Default.String()
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, label)
}

// InferDataType derives a label from a raw file name: the first underscore
// separated token of the stem when it is a known label, "unknown" otherwise.
func InferDataType(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	prefix, _, _ := strings.Cut(stem, "_")
	prefix = strings.ToLower(prefix)
	if IsKnownLabel(prefix) {
		return prefix
	}
	return UnknownLabel
}

// Trigger names what started an ingestion.
type Trigger string

const (
	TriggerUpload  Trigger = "upload"
	TriggerNightly Trigger = "nightly"
	TriggerManual  Trigger = "manual"
	TriggerCLI     Trigger = "cli"
)

type triggerKey struct{}

// WithTrigger tags ctx with the ingestion trigger.
func WithTrigger(ctx context.Context, t Trigger) context.Context {
	return context.WithValue(ctx, triggerKey{}, t)
}

// TriggerFromContext returns the trigger set by WithTrigger, or TriggerManual.
func TriggerFromContext(ctx context.Context) Trigger {
	if t, ok := ctx.Value(triggerKey{}).(Trigger); ok {
		return t
	}
	return TriggerManual
}
