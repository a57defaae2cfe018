package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/scscodes/flsd/internal/config"
)

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := NewLogger(config.LoggingConfig{Level: "info", Output: "console"}, &buf)
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()

	logger.Info("test message", "key", "value")
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestNewLoggerBothWritesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "app.log")
	var buf bytes.Buffer

	logger, closer, err := NewLogger(config.LoggingConfig{Level: "debug", Output: "both", FilePath: logFile}, &buf)
	require.NoError(t, err)

	logger.Debug("to both")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestNewLoggerFileOnly(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	var buf bytes.Buffer

	logger, closer, err := NewLogger(config.LoggingConfig{Output: "file", FilePath: logFile}, &buf)
	require.NoError(t, err)
	logger.Info("file only")
	require.NoError(t, closer.Close())

	assert.Empty(t, buf.String())
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "file only")
}

func TestTraceIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Level: "info", Output: "console"}, &buf)
	require.NoError(t, err)

	ctx := WithTraceID(context.Background(), "trace-123")
	logger.InfoContext(ctx, "with trace")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-123", entry["trace_id"])

	buf.Reset()
	logger.With("component", "x").WithGroup("g").InfoContext(ctx, "grouped", "k", 1)
	assert.Contains(t, buf.String(), "trace-123")
}

func TestTraceIDNotDuplicated(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Level: "info", Output: "console"}, &buf)
	require.NoError(t, err)

	ctx := WithTraceID(context.Background(), "trace-456")
	LoggerWithContext(ctx, logger).InfoContext(ctx, "once")

	assert.Equal(t, 1, strings.Count(buf.String(), "trace-456"))
}

func TestNewLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Level: "info", Format: "text", Output: "console"}, &buf)
	require.NoError(t, err)

	logger.InfoContext(WithTraceID(context.Background(), "trace-789"), "plain", "rows", 3)

	line := buf.String()
	assert.Contains(t, line, "msg=plain")
	assert.Contains(t, line, "rows=3")
	assert.Contains(t, line, "trace_id=trace-789")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestTraceIDHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	ctx = EnsureTraceID(ctx)
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)

	// existing id is preserved
	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)))

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	LoggerWithContext(ctx, base).Info("x")
	assert.Contains(t, buf.String(), `"trace_id":"`+id+`"`)
	assert.NotContains(t, buf.String(), "span_id")

	assert.Same(t, base, LoggerWithContext(context.Background(), base))
}

func TestLoggerWithContext_Span(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "dispatch")
	defer span.End()

	var buf bytes.Buffer
	LoggerWithContext(ctx, slog.New(slog.NewJSONHandler(&buf, nil))).Info("x")
	assert.Contains(t, buf.String(), span.SpanContext().TraceID().String())
	assert.Contains(t, buf.String(), `"span_id":"`+span.SpanContext().SpanID().String()+`"`)
}
