// Package shared holds helpers used across the pipeline packages.
//
// The testutil subpackage provides a capturing slog handler
// (NewTestLogger) and filesystem fixtures for CSV-driven tests
// (WriteFile, WriteFileAt, ListDir, FixedClock).
package shared
