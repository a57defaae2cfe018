package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotCSV is returned for paths without a .csv extension.
	ErrNotCSV = errors.New("not a CSV file")
	// ErrLockFile is returned for spreadsheet lock files such as ~$prices.csv.
	ErrLockFile = errors.New("spreadsheet lock file")
	// ErrEmptyFile is returned for zero-byte inputs, which have no header row.
	ErrEmptyFile = errors.New("file is empty")
)

// LockFilePrefix marks the owner files spreadsheet editors leave next to an open CSV.
const LockFilePrefix = "~$"

// FileValidator checks raw input files before they enter the pipeline
type FileValidator struct {
	logger *slog.Logger
}

func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// IsLockFile reports whether name is a spreadsheet lock file.
func IsLockFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), LockFilePrefix)
}

// ValidateFile checks that path is a readable regular file.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		v.logger.Error("input file unavailable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		v.logger.Error("input path is not a regular file",
			slog.String("file", path),
			slog.String("mode", info.Mode().String()))
		return fmt.Errorf("%s is a directory or special file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		v.logger.Error("input file unreadable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("open %s: %w", path, err)
	}
	f.Close()

	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return nil
}

// ValidateCSVFile checks that path names a non-empty, readable CSV file that
// is not a lock file. Lock files are logged as warnings since they appear
// whenever a raw file is open in an editor.
func (v *FileValidator) ValidateCSVFile(path string) error {
	if ext := filepath.Ext(path); !strings.EqualFold(ext, ".csv") {
		v.logger.Error("input is not a CSV file",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("%w: %s (extension %q)", ErrNotCSV, path, ext)
	}
	if IsLockFile(path) {
		v.logger.Warn("skipping spreadsheet lock file", slog.String("file", path))
		return fmt.Errorf("%w: %s", ErrLockFile, path)
	}
	return v.ValidateFile(path)
}
