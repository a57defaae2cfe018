// Package pipeline turns a raw CSV into published, cleaned output.
//
// A Dispatcher reads a raw file, maps its type label onto one of the closed
// set of data types, runs the matching cleaning routine and hands the result
// to a Publisher, which writes a date-stamped copy and replaces latest.csv.
// A Selector picks the most recently modified raw file and dispatches it,
// which is what the nightly job runs.
//
// Every routine starts with the same baseline cleaning: duplicate rows are
// dropped and missing cells are filled. Type-specific augmentation on top of
// that never fails the ingestion; a missing column or a bad value logs a
// warning and the baseline table is published instead.
package pipeline
