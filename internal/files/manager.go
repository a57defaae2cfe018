package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/scscodes/flsd/internal/config"
)

// ErrExists is returned when a write would replace an existing file.
var ErrExists = fs.ErrExist

// Manager provides file management operations over the data layout
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		paths:  paths,
		logger: logger.With(slog.String("component", "file_manager")),
	}
}

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	fullPath := m.resolvePath(path)
	_, err := os.Stat(fullPath)
	return err == nil
}

// EnsureDirectory creates a directory if it doesn't exist
func (m *Manager) EnsureDirectory(path string) error {
	fullPath := m.resolvePath(path)

	m.logger.Debug("Ensuring directory exists",
		slog.String("path", path),
		slog.String("full_path", fullPath))

	return os.MkdirAll(fullPath, 0755)
}

// SaveUpload streams src into the raw directory under name. An existing file
// is never replaced; ErrExists is returned instead. Partially written files
// are removed on failure.
func (m *Manager) SaveUpload(name string, src io.Reader) (string, int64, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", 0, fmt.Errorf("invalid upload name %q", name)
	}

	if err := m.EnsureDirectory(m.paths.RawDir); err != nil {
		return "", 0, fmt.Errorf("failed to create raw directory: %w", err)
	}

	dst := filepath.Join(m.paths.RawDir, name)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	n, err := io.Copy(f, src)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return "", 0, fmt.Errorf("failed to write %s: %w", dst, err)
	}

	m.logger.Info("Saved upload",
		slog.String("path", dst),
		slog.Int64("size_bytes", n))

	return dst, n, nil
}

// GetFileSize returns the size of a file in bytes
func (m *Manager) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(m.resolvePath(path))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ListFiles returns all files in a directory (non-recursive). A missing
// directory yields an empty list.
func (m *Manager) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(m.resolvePath(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

// resolvePath resolves a path relative to the data layout
func (m *Manager) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	switch {
	case strings.HasPrefix(path, config.SubfolderRaw+"/"):
		return m.paths.GetRawPath(strings.TrimPrefix(path, config.SubfolderRaw+"/"))
	case strings.HasPrefix(path, config.SubfolderProcessed+"/"):
		return m.paths.GetProcessedPath(strings.TrimPrefix(path, config.SubfolderProcessed+"/"))
	case strings.HasPrefix(path, config.LogsDirName+"/"):
		return m.paths.GetLogPath(strings.TrimPrefix(path, config.LogsDirName+"/"))
	default:
		return filepath.Join(m.paths.DataDir, path)
	}
}
