// Package config provides configuration loading and path resolution for the
// FLSD pipeline.
//
// # Configuration Sources
//
// Configuration starts from Default(), is overlaid by a YAML file
// (config.yaml, configs/config.yaml or an explicit path), and finally by
// environment variables prefixed with FLSD_. A .env file in the working
// directory is loaded into the environment first when present; variables that
// are already set keep their values.
//
// Examples:
//
//	FLSD_SERVER_PORT=8000
//	FLSD_DASHBOARD_PORT=8501
//	FLSD_PATHS_ROOT=/srv/flsd
//	FLSD_LOGGING_LEVEL=debug
//	FLSD_NIGHTLY_INTERVAL=24h
//
// # Path Management
//
// All data locations derive from a single project root:
//
//	{root}/data/raw/           uploaded CSVs, never mutated
//	{root}/data/processed/     stamped outputs plus latest.csv
//	{root}/data/external/      reserved
//	{root}/data/history.db     ingestion ledger
//	{root}/logs/               application logs
//
// Only the raw, processed and external subfolders may be requested through
// DataPath; anything else is rejected with ErrInvalidSubfolder.
package config
