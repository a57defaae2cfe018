package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/scscodes/flsd/internal/files"
	"github.com/scscodes/flsd/internal/validation"
)

// Selector statuses.
const (
	StatusNoData  = "no_data"
	StatusSuccess = "success"
)

// Processor dispatches one raw file.
type Processor interface {
	Dispatch(ctx context.Context, filePath, label string) (*Result, error)
}

// Outcome is the result of one selection pass.
type Outcome struct {
	Status  string  `json:"status"`
	Message string  `json:"message,omitempty"`
	File    string  `json:"file,omitempty"`
	Label   string  `json:"type,omitempty"`
	Result  *Result `json:"result,omitempty"`
}

// Selector picks the most recently modified raw CSV and dispatches it.
type Selector struct {
	basePath  string
	discovery *files.Discovery
	processor Processor
	logger    *slog.Logger
}

// NewSelector creates a Selector. Relative raw directories resolve against
// basePath.
func NewSelector(basePath string, processor Processor, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = Env{}.withDefaults().Logger
	}
	return &Selector{
		basePath:  basePath,
		discovery: files.NewDiscovery(basePath),
		processor: processor,
		logger:    logger.With(slog.String("component", "selector")),
	}
}

// SelectAndProcess dispatches the newest *.csv directly under rawDir,
// ignoring spreadsheet lock files. A missing directory is created and
// treated as empty. With no candidates the
// outcome status is "no_data" and nothing is written. When several files
// share the newest modification time, which one wins is unspecified.
func (s *Selector) SelectAndProcess(ctx context.Context, rawDir string) (*Outcome, error) {
	if !filepath.IsAbs(rawDir) {
		rawDir = filepath.Join(s.basePath, rawDir)
	}
	if err := os.MkdirAll(rawDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create raw directory: %w", err)
	}

	found, err := s.discovery.FindCSVFiles(rawDir)
	if err != nil {
		return nil, err
	}

	candidates := found[:0]
	for _, f := range found {
		if validation.IsLockFile(f.Name) {
			s.logger.DebugContext(ctx, "ignoring lock file", slog.String("file", f.Name))
			continue
		}
		candidates = append(candidates, f)
	}

	latest, ok := files.GetLatestFile(candidates)
	if !ok {
		s.logger.InfoContext(ctx, "No CSV uploads found in data/raw", slog.String("dir", rawDir))
		return &Outcome{
			Status:  StatusNoData,
			Message: "No CSV uploads found in data/raw",
		}, nil
	}

	label := InferDataType(latest.Name)
	s.logger.InfoContext(ctx, "selected raw file",
		slog.String("file", latest.Name),
		slog.String("type", label),
		slog.Int("candidates", len(candidates)),
		slog.Time("modified", latest.ModTime))

	res, err := s.processor.Dispatch(ctx, latest.Path, label)
	if err != nil {
		return nil, fmt.Errorf("failed to process %s: %w", latest.Name, err)
	}

	return &Outcome{
		Status: StatusSuccess,
		File:   latest.Path,
		Label:  label,
		Result: res,
	}, nil
}
