// Package exporter writes tables out of the pipeline.
//
// CSVWriter writes a table to a CSV file, optionally refusing to replace an
// existing file or going through a temporary file and rename so readers never
// see a partial write. WriteWorkbook renders a table as an Excel workbook for
// download from the dashboard.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(logger)
//	err := w.WriteTable(paths.LatestFile(), t, exporter.WriteOptions{Atomic: true})
package exporter
