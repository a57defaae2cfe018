package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/scscodes/flsd/internal/config"
	"github.com/scscodes/flsd/internal/exporter"
	"github.com/scscodes/flsd/internal/table"
)

const (
	// StampDate is the layout of the date embedded in stamped names.
	StampDate = "20060102"

	// maxStampAttempts bounds the numeric suffixes tried for a stamped name.
	maxStampAttempts = 1000
)

// Publisher writes processed tables into the processed directory.
type Publisher struct {
	dir          string
	writer       *exporter.CSVWriter
	atomicLatest bool
	env          Env
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithAtomicLatest controls whether latest.csv is replaced through a
// temporary file and rename. It is on by default.
func WithAtomicLatest(atomic bool) PublisherOption {
	return func(p *Publisher) { p.atomicLatest = atomic }
}

// NewPublisher returns a Publisher writing into dir.
func NewPublisher(dir string, env Env, opts ...PublisherOption) *Publisher {
	env = env.withDefaults()
	p := &Publisher{
		dir:          dir,
		writer:       exporter.NewCSVWriter(env.Logger),
		atomicLatest: true,
		env:          env,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dir returns the processed directory.
func (p *Publisher) Dir() string { return p.dir }

// LatestPath returns the path of latest.csv.
func (p *Publisher) LatestPath() string {
	return filepath.Join(p.dir, config.LatestFileName)
}

// Publish writes t as {typeLabel}_{YYYYMMDD}_{stampedName} and as latest.csv,
// and returns the stamped path. A stamped file is never replaced: when the
// name is taken a -1, -2, ... suffix is added before the extension. The two
// writes are not transactional; a failure writing latest.csv leaves the
// stamped file in place.
func (p *Publisher) Publish(ctx context.Context, t *table.Table, typeLabel, stampedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create processed directory: %w", err)
	}

	base := fmt.Sprintf("%s_%s_%s", typeLabel, p.env.Now().Format(StampDate), filepath.Base(stampedName))
	stamped, err := p.writeStamped(t, base)
	if err != nil {
		return "", err
	}

	if err := p.writer.WriteTable(p.LatestPath(), t, exporter.WriteOptions{Atomic: p.atomicLatest}); err != nil {
		return stamped, fmt.Errorf("failed to write %s: %w", config.LatestFileName, err)
	}

	p.env.Logger.InfoContext(ctx, "published processed file",
		slog.String("stamped", stamped),
		slog.String("latest", p.LatestPath()),
		slog.Int("rows", t.Len()),
		slog.Bool("atomic_latest", p.atomicLatest))

	return stamped, nil
}

func (p *Publisher) writeStamped(t *table.Table, base string) (string, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := 0; i < maxStampAttempts; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(p.dir, name)

		err := p.writer.WriteTable(path, t, exporter.WriteOptions{Exclusive: true})
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("no free stamped name for %s after %d attempts", base, maxStampAttempts)
}
