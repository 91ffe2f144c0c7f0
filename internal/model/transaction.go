package model

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Source identifies the export a transaction was read from.
type Source string

const (
	// SourceRevolut is the card-payment provider export.
	SourceRevolut Source = "Revolut"
	// SourceTinkoff is the banking app export.
	SourceTinkoff Source = "Tinkoff"
	// SourceCash is the manual cash-tracking export (MoneyLover).
	SourceCash Source = "Cash"
)

// SourceOrder is the order in which per-source collections are concatenated.
var SourceOrder = []Source{SourceRevolut, SourceTinkoff, SourceCash}

// DefaultCategory is assigned when the dictionary has no match.
const DefaultCategory = "Other"

// Transaction is the canonical row every source adapter produces.
type Transaction struct {
	Date           time.Time
	Amount         decimal.Decimal // Always non-negative, see IsPositiveTransaction
	Currency       string
	Description    string // Text used as dictionary key
	NativeCategory string // Category as exported by the source, if any
	Category       string
	Source         Source
	IncomeSource   string

	IsPositiveTransaction bool
	// ConversionFailed marks rows that needed currency conversion but kept
	// their original amount and currency.
	ConversionFailed bool
}

// SetSignedAmount stores the magnitude of a signed amount and keeps its sign
// in IsPositiveTransaction.
func (t *Transaction) SetSignedAmount(amount decimal.Decimal) {
	t.IsPositiveTransaction = amount.IsPositive()
	t.Amount = amount.Abs()
}

// SignedAmount reconstructs the amount as exported by the source.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.IsPositiveTransaction {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Day returns the calendar date of the transaction in its own location. Rate
// lookups and the income cutover both work on this date.
func (t *Transaction) Day() civil.Date {
	return civil.DateOf(t.Date)
}
