// Package pipeline runs the statement stages in order: read, resolve, unify,
// convert, tag and write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-statements/internal/category"
	"github.com/Veraticus/spice-statements/internal/common"
	"github.com/Veraticus/spice-statements/internal/currency"
	"github.com/Veraticus/spice-statements/internal/model"
	"github.com/Veraticus/spice-statements/internal/source"
	"github.com/Veraticus/spice-statements/internal/storage"
	"github.com/google/uuid"
)

// ErrStageFailure marks a stage that panicked and fell back to its default.
var ErrStageFailure = errors.New("stage failure")

// StageError reports a panic recovered at a stage boundary.
type StageError struct {
	Value any
	Stage string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStageFailure, e.Stage, e.Value)
}

func (e *StageError) Unwrap() error {
	return ErrStageFailure
}

// Resolver assigns categories and drops internal transfers.
type Resolver interface {
	Resolve(txns []model.Transaction) ([]model.Transaction, category.Stats)
}

// Converter converts foreign-currency rows in place.
type Converter interface {
	Convert(ctx context.Context, txns []model.Transaction) currency.Report
}

// Tagger assigns income sources in place.
type Tagger interface {
	Tag(txns []model.Transaction) map[string]int
}

// Sink receives the final table.
type Sink interface {
	ReplaceTransactions(ctx context.Context, txns []model.Transaction) (int, error)
}

// RunRecorder is implemented by sinks that keep a run history.
type RunRecorder interface {
	RecordRun(ctx context.Context, run storage.Run) error
}

// Config selects the exports to read and how the run ends.
type Config struct {
	Sources map[model.Source]string // Directory holding each source's exports
	Home    string
	DryRun  bool // Skip the sink
}

// Pipeline wires the stages together. It is single-use per Run call and
// holds no state between runs.
type Pipeline struct {
	resolver  Resolver
	converter Converter
	tagger    Tagger
	sink      Sink
	now       func() time.Time
	cfg       Config
	adapters  []source.Adapter
}

// New creates a pipeline. Sink may be nil only for dry runs.
func New(cfg Config, resolver Resolver, converter Converter, tagger Tagger, sink Sink) (*Pipeline, error) {
	if resolver == nil || converter == nil || tagger == nil {
		return nil, common.NewConfigError("pipeline requires a resolver, a converter and a tagger")
	}
	if sink == nil && !cfg.DryRun {
		return nil, common.NewConfigError("no sink configured")
	}

	adapters := make([]source.Adapter, 0, len(model.SourceOrder))
	for _, src := range model.SourceOrder {
		adapter, err := source.ForSource(src, cfg.Home)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}

	return &Pipeline{
		cfg:       cfg,
		adapters:  adapters,
		resolver:  resolver,
		converter: converter,
		tagger:    tagger,
		sink:      sink,
		now:       time.Now,
	}, nil
}

// Run executes every stage once. Parse and lookup failures degrade the
// result and are listed in the report; only a sink failure stops the run
// and is returned.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	state := &State{
		Collections: make(map[model.Source][]model.Transaction, len(p.adapters)),
		Report: &Report{
			RunID:     uuid.New(),
			StartedAt: p.now(),
			DryRun:    p.cfg.DryRun,
			Sources:   make(map[model.Source]SourceReport, len(p.adapters)),
		},
	}

	logger := slog.With("run_id", state.Report.RunID.String())
	logger.Info("Starting statement run", "dry_run", p.cfg.DryRun)

	for _, step := range p.steps() {
		if err := step.Execute(ctx, state); err != nil {
			state.Report.FinishedAt = p.now()
			common.LogError(err, "Run stopped", common.Fields{
				"run_id": state.Report.RunID.String(),
				"step":   step.Name(),
			})
			return state.Report, err
		}
	}

	state.Report.FinishedAt = p.now()
	logger.Info("Finished statement run",
		"rows", state.Report.Rows,
		"written", state.Report.Written,
		"degraded", state.Report.Degraded(),
		"duration", state.Report.FinishedAt.Sub(state.Report.StartedAt))

	return state.Report, nil
}

func (p *Pipeline) steps() []Step {
	return []Step{
		&readStep{adapters: p.adapters, dirs: p.cfg.Sources, resolver: p.resolver},
		&unifyStep{},
		&convertStep{converter: p.converter},
		&tagStep{tagger: p.tagger},
		&writeStep{sink: p.sink, dryRun: p.cfg.DryRun, now: p.now},
	}
}

// guard runs fn and converts a panic into a logged *StageError.
func guard(stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: stage, Value: r}
			common.LogError(err, "Stage panicked, using its default result", common.Fields{
				"stage": stage,
			})
		}
	}()
	return fn()
}
