// Package income labels each transaction with the income stream that funds it.
package income

import (
	"cloud.google.com/go/civil"
	"github.com/Veraticus/spice-statements/internal/model"
)

// Income source labels.
const (
	LabelSalary     = "Salary"
	LabelRealEstate = "Real Estate"
)

// DefaultCutover is the first day cash rows count as real-estate income.
var DefaultCutover = civil.Date{Year: 2023, Month: 6, Day: 4}

// Tagger assigns IncomeSource from the row's source and date.
type Tagger struct {
	Cutover civil.Date
}

// NewTagger creates a tagger. A zero cutover uses DefaultCutover.
func NewTagger(cutover civil.Date) *Tagger {
	if cutover.IsZero() {
		cutover = DefaultCutover
	}
	return &Tagger{Cutover: cutover}
}

// Label returns the income source for a row from src dated day. Unknown
// sources get an empty label.
func (t *Tagger) Label(src model.Source, day civil.Date) string {
	switch src {
	case model.SourceRevolut, model.SourceTinkoff:
		return LabelSalary
	case model.SourceCash:
		if day.Before(t.Cutover) {
			return LabelSalary
		}
		return LabelRealEstate
	default:
		return ""
	}
}

// Tag sets IncomeSource on every row in place and returns how many rows got
// each label.
func (t *Tagger) Tag(txns []model.Transaction) map[string]int {
	counts := make(map[string]int)
	for i := range txns {
		label := t.Label(txns[i].Source, txns[i].Day())
		txns[i].IncomeSource = label
		counts[label]++
	}
	return counts
}
