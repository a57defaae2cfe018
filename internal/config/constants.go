package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "FLSD Data Pipeline"
	AppVersion = "1.0.0"

	// Environment variable prefix (FLSD_SERVER_PORT, FLSD_LOGGING_LEVEL, ...)
	EnvPrefix = "FLSD"

	// Data layout (relative to the project root)
	DataDirName        = "data"
	LogsDirName        = "logs"
	SubfolderRaw       = "raw"
	SubfolderProcessed = "processed"
	SubfolderExternal  = "external"
	LatestFileName     = "latest.csv"
	HistoryDBName      = "history.db"

	// Naming convention for uploads
	NamingConvention = "{type}_{description}_{date}.csv"

	// Server defaults
	DefaultAPIPort       = 8000
	DefaultDashboardPort = 8501
	DefaultMaxUploadSize = 32 << 20 // 32MB

	// Launcher timings
	DefaultStartupDelay  = 2 * time.Second
	DefaultShutdownGrace = 5 * time.Second

	// Dashboard
	DefaultPreviewRows = 5
)
