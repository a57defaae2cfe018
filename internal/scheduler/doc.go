// Package scheduler triggers the ingestion selector periodically from inside
// a running process.
package scheduler
