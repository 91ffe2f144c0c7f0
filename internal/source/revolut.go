package source

import (
	"context"
	"io"
	"strings"

	"github.com/Veraticus/spice-statements/internal/model"
)

// Revolut export columns.
const (
	revolutStartedDate = "Started Date"
	revolutDescription = "Description"
	revolutAmount      = "Amount"
	revolutCurrency    = "Currency"
	revolutState       = "State"
)

// revolutVoidStates are states of operations that never settled.
var revolutVoidStates = map[string]bool{
	"REVERTED": true,
	"DECLINED": true,
	"FAILED":   true,
}

var revolutDialect = dialect{
	delimiter:   ',',
	decimalSep:  '.',
	dateLayouts: []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"},
}

// RevolutParser reads Revolut account statements (comma separated, UTF-8).
type RevolutParser struct {
	home string
}

// NewRevolutParser creates a Revolut parser.
func NewRevolutParser(home string) *RevolutParser {
	return &RevolutParser{home: home}
}

// Source implements Adapter.
func (p *RevolutParser) Source() model.Source {
	return model.SourceRevolut
}

// Parse implements Adapter.
func (p *RevolutParser) Parse(ctx context.Context, r io.Reader) ([]model.Transaction, error) {
	columns := []string{revolutStartedDate, revolutDescription, revolutAmount}

	var txns []model.Transaction
	err := revolutDialect.readRecords(ctx, r, columns, func(rec record) error {
		if revolutVoidStates[strings.ToUpper(rec.get(revolutState))] {
			return nil
		}

		date, err := revolutDialect.parseDate(rec.get(revolutStartedDate))
		if err != nil {
			return err
		}
		amount, err := revolutDialect.parseAmount(rec.get(revolutAmount))
		if err != nil {
			return err
		}

		txn := model.Transaction{
			Date:        date,
			Currency:    currencyOrHome(rec.get(revolutCurrency), p.home),
			Description: rec.get(revolutDescription),
			Source:      model.SourceRevolut,
		}
		txn.SetSignedAmount(amount)

		txns = append(txns, txn)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return nonNil(txns), nil
}

func currencyOrHome(currency, home string) string {
	if c := strings.ToUpper(strings.TrimSpace(currency)); c != "" {
		return c
	}
	return home
}

func nonNil(txns []model.Transaction) []model.Transaction {
	if txns == nil {
		return []model.Transaction{}
	}
	return txns
}
