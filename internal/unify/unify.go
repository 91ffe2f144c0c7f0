// Package unify merges per-source transaction collections into one statement.
package unify

import (
	"log/slog"

	"github.com/Veraticus/spice-statements/internal/model"
)

// Unify concatenates the batches in argument order. Rows are neither
// deduplicated nor re-sorted, and the result never aliases an input.
func Unify(batches ...[]model.Transaction) []model.Transaction {
	total := 0
	for _, batch := range batches {
		total += len(batch)
	}

	unified := make([]model.Transaction, 0, total)
	for _, batch := range batches {
		unified = append(unified, batch...)
	}

	slog.Info("Unified statements", "batches", len(batches), "rows", len(unified))
	return unified
}

// BySource unifies collections keyed by source in model.SourceOrder. Sources
// missing from the map contribute nothing.
func BySource(collections map[model.Source][]model.Transaction) []model.Transaction {
	batches := make([][]model.Transaction, 0, len(model.SourceOrder))
	for _, src := range model.SourceOrder {
		batches = append(batches, collections[src])
	}
	return Unify(batches...)
}
