package source

import (
	"context"
	"io"

	"github.com/Veraticus/spice-statements/internal/model"
	"golang.org/x/text/encoding/unicode"
)

// MoneyLover export columns. The category the user picked in the app is the
// dictionary key.
const (
	moneyLoverDate     = "Date"
	moneyLoverCategory = "Category"
	moneyLoverAmount   = "Amount"
	moneyLoverCurrency = "Currency"
)

var moneyLoverDialect = dialect{
	delimiter:   '\t',
	decimalSep:  '.',
	lazyQuotes:  true,
	encoding:    unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	dateLayouts: []string{"02/01/2006"},
}

// MoneyLoverParser reads MoneyLover cash wallet exports (tab separated, UTF-16).
type MoneyLoverParser struct {
	home string
}

// NewMoneyLoverParser creates a MoneyLover parser.
func NewMoneyLoverParser(home string) *MoneyLoverParser {
	return &MoneyLoverParser{home: home}
}

// Source implements Adapter.
func (p *MoneyLoverParser) Source() model.Source {
	return model.SourceCash
}

// Parse implements Adapter.
func (p *MoneyLoverParser) Parse(ctx context.Context, r io.Reader) ([]model.Transaction, error) {
	columns := []string{moneyLoverDate, moneyLoverCategory, moneyLoverAmount}

	var txns []model.Transaction
	err := moneyLoverDialect.readRecords(ctx, r, columns, func(rec record) error {
		date, err := moneyLoverDialect.parseDate(rec.get(moneyLoverDate))
		if err != nil {
			return err
		}
		amount, err := moneyLoverDialect.parseAmount(rec.get(moneyLoverAmount))
		if err != nil {
			return err
		}

		txn := model.Transaction{
			Date:        date,
			Currency:    currencyOrHome(rec.get(moneyLoverCurrency), p.home),
			Description: rec.get(moneyLoverCategory),
			Source:      model.SourceCash,
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
