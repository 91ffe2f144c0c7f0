package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-statements/internal/common"
	"github.com/Veraticus/spice-statements/internal/model"
	"github.com/Veraticus/spice-statements/internal/source"
	"github.com/Veraticus/spice-statements/internal/storage"
	"github.com/Veraticus/spice-statements/internal/unify"
)

// Step is a single stage of a run.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// State holds the data shared across the steps of one run.
type State struct {
	Collections map[model.Source][]model.Transaction
	Report      *Report
	Rows        []model.Transaction
}

// readStep reads and categorizes each source's newest export. A source that
// fails contributes an empty collection.
type readStep struct {
	resolver Resolver
	dirs     map[model.Source]string
	adapters []source.Adapter
}

func (s *readStep) Name() string { return "read" }

func (s *readStep) Execute(ctx context.Context, state *State) error {
	for _, adapter := range s.adapters {
		src := adapter.Source()
		summary := SourceReport{}

		err := guard("read "+string(src), func() error {
			path, err := s.latest(src)
			if err != nil {
				perr := &common.ParseError{Source: string(src), Path: s.dirs[src], Err: err}
				common.LogError(perr, "Failed to locate statement", common.Fields{
					"source": src,
					"dir":    s.dirs[src],
				})
				return perr
			}
			summary.Path = path

			txns, err := source.Read(ctx, adapter, path)
			summary.Parsed = len(txns)

			resolved, stats := s.resolver.Resolve(txns)
			summary.Categories = stats
			summary.Rows = len(resolved)
			state.Collections[src] = resolved
			return err
		})
		if err != nil {
			summary.Err = err
			summary.Rows = 0
			state.Collections[src] = []model.Transaction{}
			state.Report.Failures = append(state.Report.Failures, err)
		}

		state.Report.Sources[src] = summary
	}
	return nil
}

func (s *readStep) latest(src model.Source) (string, error) {
	dir := s.dirs[src]
	if dir == "" {
		return "", fmt.Errorf("%w: no directory configured", source.ErrNoExport)
	}
	return source.LatestFile(dir)
}

type unifyStep struct{}

func (s *unifyStep) Name() string { return "unify" }

func (s *unifyStep) Execute(_ context.Context, state *State) error {
	state.Rows = unify.BySource(state.Collections)
	state.Report.Rows = len(state.Rows)
	return nil
}

// convertStep leaves rows as they are when the converter panics.
type convertStep struct {
	converter Converter
}

func (s *convertStep) Name() string { return "convert" }

func (s *convertStep) Execute(ctx context.Context, state *State) error {
	err := guard(s.Name(), func() error {
		report := s.converter.Convert(ctx, state.Rows)
		state.Report.Currency = report
		for _, failure := range report.Failures {
			state.Report.Failures = append(state.Report.Failures, failure)
		}
		return nil
	})
	if err != nil {
		state.Report.Failures = append(state.Report.Failures, err)
	}
	return nil
}

// tagStep leaves IncomeSource unset when the tagger panics.
type tagStep struct {
	tagger Tagger
}

func (s *tagStep) Name() string { return "tag" }

func (s *tagStep) Execute(_ context.Context, state *State) error {
	err := guard(s.Name(), func() error {
		state.Report.Income = s.tagger.Tag(state.Rows)
		return nil
	})
	if err != nil {
		state.Report.Failures = append(state.Report.Failures, err)
	}
	return nil
}

// writeStep replaces the sink table. Any failure here stops the run.
type writeStep struct {
	sink   Sink
	now    func() time.Time
	dryRun bool
}

func (s *writeStep) Name() string { return "write" }

func (s *writeStep) Execute(ctx context.Context, state *State) error {
	if s.dryRun {
		slog.Info("Dry run, skipping write", "rows", len(state.Rows))
		return nil
	}

	err := guard(s.Name(), func() error {
		written, err := s.sink.ReplaceTransactions(ctx, state.Rows)
		if err != nil {
			return fmt.Errorf("failed to write transactions: %w", err)
		}
		state.Report.Written = written
		return nil
	})
	if err != nil {
		return err
	}

	if recorder, ok := s.sink.(RunRecorder); ok {
		run := storage.Run{
			ID:               state.Report.RunID,
			StartedAt:        state.Report.StartedAt,
			FinishedAt:       s.now(),
			Rows:             state.Report.Written,
			Converted:        state.Report.Currency.Converted,
			ConversionFailed: state.Report.Currency.Failed + state.Report.Currency.Unsupported,
			Degraded:         state.Report.Degraded(),
		}
		if err := recorder.RecordRun(ctx, run); err != nil {
			common.LogError(err, "Failed to record run", common.Fields{"run_id": run.ID.String()})
		}
	}

	return nil
}
