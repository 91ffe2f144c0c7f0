package source

import (
	"context"
	"io"
	"strings"

	"github.com/Veraticus/spice-statements/internal/model"
	"golang.org/x/text/encoding/charmap"
)

// Tinkoff export columns.
const (
	tinkoffDate        = "Дата операции"
	tinkoffStatus      = "Статус"
	tinkoffAmount      = "Сумма операции"
	tinkoffCurrency    = "Валюта операции"
	tinkoffCategory    = "Категория"
	tinkoffDescription = "Описание"
)

// tinkoffFailedStatus marks operations the bank rejected.
const tinkoffFailedStatus = "FAILED"

var tinkoffDialect = dialect{
	delimiter:   ';',
	decimalSep:  ',',
	groupSeps:   " \u00a0",
	encoding:    charmap.Windows1251,
	dateLayouts: []string{"02.01.2006 15:04:05", "02.01.2006"},
}

// TinkoffParser reads Tinkoff operation exports (semicolon separated,
// Windows-1251, quoted fields, comma decimals).
type TinkoffParser struct {
	home string
}

// NewTinkoffParser creates a Tinkoff parser.
func NewTinkoffParser(home string) *TinkoffParser {
	return &TinkoffParser{home: home}
}

// Source implements Adapter.
func (p *TinkoffParser) Source() model.Source {
	return model.SourceTinkoff
}

// Parse implements Adapter. The native category is kept so the resolver can
// qualify transfer-like categories with the description.
func (p *TinkoffParser) Parse(ctx context.Context, r io.Reader) ([]model.Transaction, error) {
	columns := []string{tinkoffDate, tinkoffStatus, tinkoffAmount, tinkoffCategory, tinkoffDescription}

	var txns []model.Transaction
	err := tinkoffDialect.readRecords(ctx, r, columns, func(rec record) error {
		if strings.EqualFold(rec.get(tinkoffStatus), tinkoffFailedStatus) {
			return nil
		}

		date, err := tinkoffDialect.parseDate(rec.get(tinkoffDate))
		if err != nil {
			return err
		}
		amount, err := tinkoffDialect.parseAmount(rec.get(tinkoffAmount))
		if err != nil {
			return err
		}

		txn := model.Transaction{
			Date:           date,
			Currency:       currencyOrHome(rec.get(tinkoffCurrency), p.home),
			Description:    rec.get(tinkoffDescription),
			NativeCategory: rec.get(tinkoffCategory),
			Source:         model.SourceTinkoff,
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
