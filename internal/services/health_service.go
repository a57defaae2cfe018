package services

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/scscodes/flsd/internal/config"
	"github.com/scscodes/flsd/internal/files"
	"github.com/scscodes/flsd/internal/infrastructure"
)

// HealthService provides health check functionality
type HealthService struct {
	service   string
	version   string
	paths     *config.Paths
	files     *files.Manager
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status      string                 `json:"status"`
	Service     string                 `json:"service"`
	Timestamp   time.Time              `json:"timestamp"`
	Version     string                 `json:"version"`
	Directories map[string]bool        `json:"directories"`
	Files       map[string]int         `json:"files"`
	LatestBytes *int64                 `json:"latest_size_bytes,omitempty"`
	Runtime     map[string]interface{} `json:"runtime,omitempty"`
}

// NewHealthService creates a health service for the named service
func NewHealthService(service, version string, paths *config.Paths, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthService{
		service:   service,
		version:   version,
		paths:     paths,
		files:     files.NewManager(paths, logger),
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status. The status is "degraded" when
// any data directory is missing or unreadable. Files counts the regular files
// in each directory.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	dirs := map[string]string{
		config.SubfolderRaw:       hs.paths.RawDir,
		config.SubfolderProcessed: hs.paths.ProcessedDir,
		config.SubfolderExternal:  hs.paths.ExternalDir,
	}

	status := HealthStatus{
		Status:      "ok",
		Service:     hs.service,
		Timestamp:   time.Now(),
		Version:     hs.version,
		Directories: make(map[string]bool, len(dirs)),
		Files:       make(map[string]int, len(dirs)),
		Runtime:     infrastructure.CollectSystemStats(hs.startTime).FormatStats(),
	}

	for name, dir := range dirs {
		info, err := os.Stat(dir)
		present := err == nil && info.IsDir()
		status.Directories[name] = present
		if !present {
			status.Status = "degraded"
			continue
		}

		names, err := hs.files.ListFiles(dir)
		if err != nil {
			hs.logger.WarnContext(ctx, "failed to list data directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
			status.Status = "degraded"
			continue
		}
		status.Files[name] = len(names)
	}

	if size, err := hs.files.GetFileSize(hs.paths.LatestFile()); err == nil {
		status.LatestBytes = &size
	}

	hs.logger.DebugContext(ctx, "health check completed",
		slog.String("status", status.Status))

	return status
}
