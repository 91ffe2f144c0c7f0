package pipeline

import (
	"time"

	"github.com/Veraticus/spice-statements/internal/category"
	"github.com/Veraticus/spice-statements/internal/common"
	"github.com/Veraticus/spice-statements/internal/currency"
	"github.com/Veraticus/spice-statements/internal/model"
	"github.com/google/uuid"
)

// SourceReport summarizes one source in a run.
type SourceReport struct {
	Err        error
	Path       string
	Categories category.Stats
	Parsed     int
	Rows       int // Rows kept after category resolution
}

// Report summarizes one run.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Sources    map[model.Source]SourceReport
	Income     map[string]int
	Failures   []error // Degraded failures the run continued past
	Currency   currency.Report
	Rows       int
	Written    int
	RunID      uuid.UUID
	DryRun     bool
}

// Degraded reports whether any stage fell back to a reduced result.
func (r *Report) Degraded() bool {
	return len(r.Failures) > 0
}

// StageFailures counts failures raised by a stage boundary, as opposed to a
// source that could not be read or a date without a rate.
func (r *Report) StageFailures() int {
	n := 0
	for _, err := range r.Failures {
		if !common.IsDegraded(err) {
			n++
		}
	}
	return n
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
