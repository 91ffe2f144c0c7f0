package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/spice-statements/internal/common"
	"github.com/Veraticus/spice-statements/internal/model"
)

// ErrNoExport is returned when a source directory holds no export file.
var ErrNoExport = errors.New("no export file found")

// Adapter parses one source's export into canonical transactions.
type Adapter interface {
	Source() model.Source
	Parse(ctx context.Context, r io.Reader) ([]model.Transaction, error)
}

// ForSource returns the adapter for a source. Home is the currency implied
// when an export carries none.
func ForSource(src model.Source, home string) (Adapter, error) {
	switch src {
	case model.SourceRevolut:
		return NewRevolutParser(home), nil
	case model.SourceTinkoff:
		return NewTinkoffParser(home), nil
	case model.SourceCash:
		return NewMoneyLoverParser(home), nil
	default:
		return nil, fmt.Errorf("unknown source %q", src)
	}
}

// Read parses the export at path. It fails closed: on any problem the
// failure is logged and returned as a *common.ParseError alongside an empty,
// non-nil collection, so callers may continue with the other sources.
func Read(ctx context.Context, adapter Adapter, path string) ([]model.Transaction, error) {
	txns, err := readFile(ctx, adapter, path)
	if err != nil {
		perr := &common.ParseError{Source: string(adapter.Source()), Path: path, Err: err}
		common.LogError(perr, "Failed to read statement", common.Fields{
			"source": adapter.Source(),
			"path":   path,
		})
		return []model.Transaction{}, perr
	}

	slog.Info("Read statement",
		"source", adapter.Source(),
		"path", path,
		"rows", len(txns))

	return txns, nil
}

func readFile(ctx context.Context, adapter Adapter, path string) ([]model.Transaction, error) {
	if path == "" {
		return nil, ErrNoExport
	}

	f, err := os.Open(path) // #nosec G304 -- path comes from the configured statements directory
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer func() { _ = f.Close() }()

	return adapter.Parse(ctx, f)
}

// LatestFile returns the most recently modified regular file in dir.
func LatestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var (
		latest   string
		latestAt int64
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); latest == "" || mod > latestAt {
			latest = filepath.Join(dir, entry.Name())
			latestAt = mod
		}
	}

	if latest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoExport, dir)
	}

	slog.Debug("Selected latest export", "dir", dir, "file", latest)
	return latest, nil
}
