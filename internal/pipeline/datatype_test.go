package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDataType(t *testing.T) {
	tests := []struct {
		label string
		want  DataType
	}{
		{"financial", Financial},
		{"FINANCIAL", Financial},
		{"  Market ", Market},
		{"forecast", Forecast},
		{"inventory", Default},
		{"", Default},
		{"unknown", Default},
		{"default", Default},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDataType(tt.label))
		})
	}
}

func TestDataTypeString(t *testing.T) {
	assert.Equal(t, "financial", Financial.String())
	assert.Equal(t, "default", Default.String())
	assert.Equal(t, "default", DataType(42).String())
	assert.Equal(t, []string{"financial", "market", "forecast"}, KnownLabels())
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "market", NormalizeLabel(" MARKET "))
	assert.Equal(t, "default", NormalizeLabel("   "))
	assert.Equal(t, "---etc", NormalizeLabel("../etc"))
	assert.Equal(t, "q-1", NormalizeLabel("q 1"))
}

func TestInferDataType(t *testing.T) {
	tests := map[string]string{
		"market_b.csv":               "market",
		"Financial_q1_2024.csv":      "financial",
		"forecast.csv":               "forecast",
		"/data/raw/forecast_x_1.CSV": "forecast",
		"inventory_2024_01_01.csv":   UnknownLabel,
		"notes.csv":                  UnknownLabel,
	}
	for name, want := range tests {
		assert.Equal(t, want, InferDataType(name), name)
	}
}

func TestExpectedColumns(t *testing.T) {
	assert.Equal(t, []string{"date", "amount", "running_total"}, Financial.ExpectedColumns())
	assert.Equal(t, []string{"date", "price", "pct_change"}, Market.ExpectedColumns())
	assert.Equal(t, []string{"date", "prediction"}, Forecast.ExpectedColumns())
	assert.Nil(t, Default.ExpectedColumns())
}

func TestTriggerFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, TriggerManual, TriggerFromContext(ctx))
	assert.Equal(t, TriggerNightly, TriggerFromContext(WithTrigger(ctx, TriggerNightly)))
}
