package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrInvalidSubfolder is returned by DataPath for names outside the data layout.
var ErrInvalidSubfolder = errors.New("invalid subfolder")

// Paths contains every filesystem location used by the pipeline.
// This is the single source of truth for file paths in the application.
type Paths struct {
	RootDir      string
	DataDir      string
	RawDir       string
	ProcessedDir string
	ExternalDir  string
	LogsDir      string
	HistoryDB    string
}

// NewPaths builds the layout under root. A relative root is made absolute
// against the working directory.
func NewPaths(root string) (*Paths, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}

	dataDir := filepath.Join(abs, DataDirName)
	return &Paths{
		RootDir:      abs,
		DataDir:      dataDir,
		RawDir:       filepath.Join(dataDir, SubfolderRaw),
		ProcessedDir: filepath.Join(dataDir, SubfolderProcessed),
		ExternalDir:  filepath.Join(dataDir, SubfolderExternal),
		LogsDir:      filepath.Join(abs, LogsDirName),
		HistoryDB:    filepath.Join(dataDir, HistoryDBName),
	}, nil
}

// GetPaths resolves the layout from the FLSD_PATHS_ROOT environment variable,
// falling back to the working directory.
func GetPaths() (*Paths, error) {
	return NewPaths(os.Getenv(EnvPrefix + "_PATHS_ROOT"))
}

// DataPath returns the data directory, or one of its raw, processed or
// external subfolders.
func (p *Paths) DataPath(subfolder string) (string, error) {
	switch subfolder {
	case "":
		return p.DataDir, nil
	case SubfolderRaw:
		return p.RawDir, nil
	case SubfolderProcessed:
		return p.ProcessedDir, nil
	case SubfolderExternal:
		return p.ExternalDir, nil
	default:
		return "", fmt.Errorf("%w: %q (expected %s, %s or %s)",
			ErrInvalidSubfolder, subfolder, SubfolderRaw, SubfolderProcessed, SubfolderExternal)
	}
}

// EnsureDirectories creates the data layout if it does not exist.
func (p *Paths) EnsureDirectories(logger *slog.Logger) error {
	directories := []string{
		p.DataDir,
		p.RawDir,
		p.ProcessedDir,
		p.ExternalDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		if logger != nil {
			logger.Debug("Ensured directory exists", slog.String("directory", dir))
		}
	}

	return nil
}

// LatestFile returns the path of the always-replaced latest output.
func (p *Paths) LatestFile() string {
	return filepath.Join(p.ProcessedDir, LatestFileName)
}

// GetRawPath returns the path for a raw upload.
func (p *Paths) GetRawPath(filename string) string {
	return filepath.Join(p.RawDir, filename)
}

// GetProcessedPath returns the path for a processed file.
func (p *Paths) GetProcessedPath(filename string) string {
	return filepath.Join(p.ProcessedDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved layout.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		return
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("root", p.RootDir),
			slog.String("data", p.DataDir),
			slog.String("raw", p.RawDir),
			slog.String("processed", p.ProcessedDir),
			slog.String("external", p.ExternalDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("latest", p.LatestFile()),
			slog.String("history_db", p.HistoryDB),
			slog.Bool("latest_exists", FileExists(p.LatestFile())),
		))
}
