package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/spice-statements/internal/common"
	"github.com/Veraticus/spice-statements/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const sampleRevolut = "\ufeffType,Product,Started Date,Completed Date,Description,Amount,Fee,Currency,State,Balance\n" +
	"CARD_PAYMENT,Current,2023-05-02 10:15:00,2023-05-03 09:00:00,Lidl,-50.00,0.00,EUR,COMPLETED,950.00\n" +
	"TOPUP,Current,2023-05-01 08:00:00,2023-05-01 08:00:01,Top-Up by *1234,1000,0.00,EUR,COMPLETED,1000.00\n" +
	"CARD_PAYMENT,Current,2023-05-04 12:00:00,,Refused shop,-20.00,0.00,EUR,DECLINED,\n" +
	"CARD_PAYMENT,Current,2023-05-05,,Yandex Taxi,-300.00,0.00,RUB,COMPLETED,650.00\n"

const sampleTinkoff = `"Дата операции";"Дата платежа";"Номер карты";"Статус";"Сумма операции";"Валюта операции";"Сумма платежа";"Валюта платежа";"Кэшбэк";"Категория";"MCC";"Описание";"Бонусы (включая кэшбэк)"
"14.03.2023 19:22:10";"15.03.2023";"*1234";"OK";"-1234,56";"RUB";"-1234,56";"RUB";"";"Супермаркеты";"5411";"Пятёрочка";"12,00"
"13.03.2023 08:00:00";"13.03.2023";"";"OK";"5000,00";"RUB";"5000,00";"RUB";"";"Переводы";"";"Перевод между счетами";"0,00"
"12.03.2023 11:11:11";"12.03.2023";"*1234";"FAILED";"-99,00";"RUB";"-99,00";"RUB";"";"Кафе";"5814";"Кофейня";"0,00"
`

const sampleMoneyLover = "Id\tDate\tCategory\tAmount\tCurrency\tNote\tWallet\n" +
	"1\t03/06/2023\tRent\t1500\tEUR\tthe \"flat\" deposit\tCash\n" +
	"2\t04/06/2023\tFood\t-35.5\tEUR\tmarket\tCash\n" +
	"\t\t\t\t\t\t\n"

func encodeCP1251(t *testing.T, s string) string {
	t.Helper()
	out, err := charmap.Windows1251.NewEncoder().String(s)
	require.NoError(t, err)
	return out
}

func encodeUTF16(t *testing.T, s string) string {
	t.Helper()
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(s)
	require.NoError(t, err)
	return out
}

func TestRevolutParser_Parse(t *testing.T) {
	txns, err := NewRevolutParser("EUR").Parse(context.Background(), strings.NewReader(sampleRevolut))
	require.NoError(t, err)
	require.Len(t, txns, 3, "declined operation is dropped")

	first := txns[0]
	assert.Equal(t, time.Date(2023, 5, 2, 10, 15, 0, 0, time.UTC), first.Date)
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(50)))
	assert.False(t, first.IsPositiveTransaction)
	assert.Equal(t, "EUR", first.Currency)
	assert.Equal(t, "Lidl", first.Description)
	assert.Equal(t, model.SourceRevolut, first.Source)
	assert.Empty(t, first.NativeCategory)

	assert.True(t, txns[1].IsPositiveTransaction)
	assert.Equal(t, "RUB", txns[2].Currency)
	assert.Equal(t, time.Date(2023, 5, 5, 0, 0, 0, 0, time.UTC), txns[2].Date, "date-only values are accepted")
}

func TestTinkoffParser_Parse(t *testing.T) {
	input := encodeCP1251(t, sampleTinkoff)

	txns, err := NewTinkoffParser("EUR").Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 2, "failed operation is dropped")

	first := txns[0]
	assert.Equal(t, time.Date(2023, 3, 14, 19, 22, 10, 0, time.UTC), first.Date)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("1234.56")))
	assert.False(t, first.IsPositiveTransaction)
	assert.Equal(t, "RUB", first.Currency)
	assert.Equal(t, "Супермаркеты", first.NativeCategory)
	assert.Equal(t, "Пятёрочка", first.Description)
	assert.Equal(t, model.SourceTinkoff, first.Source)

	assert.Equal(t, "Переводы", txns[1].NativeCategory)
	assert.Equal(t, "Перевод между счетами", txns[1].Description)
	assert.True(t, txns[1].IsPositiveTransaction)
}

func TestMoneyLoverParser_Parse(t *testing.T) {
	input := encodeUTF16(t, sampleMoneyLover)

	txns, err := NewMoneyLoverParser("EUR").Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 2, "blank rows are skipped")

	assert.Equal(t, time.Date(2023, 6, 3, 0, 0, 0, 0, time.UTC), txns[0].Date)
	assert.Equal(t, "Rent", txns[0].Description)
	assert.True(t, txns[0].IsPositiveTransaction)
	assert.Equal(t, model.SourceCash, txns[0].Source)

	assert.True(t, txns[1].Amount.Equal(decimal.RequireFromString("35.5")))
	assert.False(t, txns[1].IsPositiveTransaction)
}

func TestParse_MissingCurrencyImpliesHome(t *testing.T) {
	input := encodeUTF16(t, "Id\tDate\tCategory\tAmount\n1\t01/01/2023\tGift\t10\n")

	txns, err := NewMoneyLoverParser("EUR").Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "EUR", txns[0].Currency)
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		adapter Adapter
		wantErr error
		name    string
		input   string
	}{
		{
			name:    "missing column",
			adapter: NewRevolutParser("EUR"),
			input:   "Started Date,Amount\n2023-01-01,1\n",
			wantErr: ErrMissingColumn,
		},
		{
			name:    "bad date",
			adapter: NewRevolutParser("EUR"),
			input:   "Started Date,Description,Amount\n01/02/2023,x,1\n",
			wantErr: ErrInvalidDate,
		},
		{
			name:    "bad amount",
			adapter: NewRevolutParser("EUR"),
			input:   "Started Date,Description,Amount\n2023-01-02,x,abc\n",
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "grouped amount",
			adapter: NewMoneyLoverParser("EUR"),
			input:   encodeUTF16(t, "Id\tDate\tCategory\tAmount\tCurrency\tNote\tWallet\n1\t03/06/2023\tRent\t1,000\tEUR\t\tCash\n"),
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "european amount",
			adapter: NewRevolutParser("EUR"),
			input:   "Started Date,Description,Amount\n2023-01-02,x,\"1.234,56\"\n",
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "empty file",
			adapter: NewRevolutParser("EUR"),
			input:   "",
			wantErr: ErrEmptyExport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns, err := tt.adapter.Parse(context.Background(), strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, txns)
		})
	}
}

func TestDialect_ParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		dialect dialect
		wantErr bool
	}{
		{name: "tinkoff comma decimal", dialect: tinkoffDialect, input: "-1234,56", want: "-1234.56"},
		{name: "tinkoff space grouping", dialect: tinkoffDialect, input: "1 234,56", want: "1234.56"},
		{name: "tinkoff nbsp grouping", dialect: tinkoffDialect, input: "1\u00a0234,56", want: "1234.56"},
		{name: "tinkoff minus sign", dialect: tinkoffDialect, input: "\u2212 7", want: "-7"},
		{name: "tinkoff comma is decimal", dialect: tinkoffDialect, input: "1,000", want: "1"},
		{name: "tinkoff rejects dot", dialect: tinkoffDialect, input: "1.234,56", wantErr: true},
		{name: "tinkoff rejects dot decimal", dialect: tinkoffDialect, input: "1,234.56", wantErr: true},
		{name: "revolut dot decimal", dialect: revolutDialect, input: "-50.00", want: "-50"},
		{name: "revolut plus sign", dialect: revolutDialect, input: "+0.10", want: "0.1"},
		{name: "revolut rejects comma", dialect: revolutDialect, input: "1,000", wantErr: true},
		{name: "revolut rejects european", dialect: revolutDialect, input: "1.234,56", wantErr: true},
		{name: "revolut rejects two decimals", dialect: revolutDialect, input: "1.2.3", wantErr: true},
		{name: "moneylover dot decimal", dialect: moneyLoverDialect, input: "-35.5", want: "-35.5"},
		{name: "moneylover rejects comma", dialect: moneyLoverDialect, input: "1,000", wantErr: true},
		{name: "moneylover rejects european", dialect: moneyLoverDialect, input: "1.234,56", wantErr: true},
		{name: "moneylover rejects space", dialect: moneyLoverDialect, input: "1 000", wantErr: true},
		{name: "empty", dialect: revolutDialect, input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.dialect.parseAmount(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%q -> %s", tt.input, got)
		})
	}
}

func TestRead_FailsClosed(t *testing.T) {
	ctx := context.Background()

	txns, err := Read(ctx, NewRevolutParser("EUR"), filepath.Join(t.TempDir(), "missing.csv"))
	assert.NotNil(t, txns)
	assert.Empty(t, txns)
	assert.ErrorIs(t, err, common.ErrParseFailure)
	assert.True(t, common.IsDegraded(err))

	txns, err = Read(ctx, NewTinkoffParser("EUR"), "")
	assert.Empty(t, txns)
	assert.ErrorIs(t, err, ErrNoExport)

	var perr *common.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Tinkoff", perr.Source)

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("nonsense\n"), 0o600))
	txns, err = Read(ctx, NewRevolutParser("EUR"), bad)
	assert.Empty(t, txns)
	assert.ErrorIs(t, err, ErrMissingColumn)

	good := filepath.Join(t.TempDir(), "good.csv")
	require.NoError(t, os.WriteFile(good, []byte(sampleRevolut), 0o600))
	txns, err = Read(ctx, NewRevolutParser("EUR"), good)
	require.NoError(t, err)
	assert.Len(t, txns, 3)
}

func TestLatestFile(t *testing.T) {
	dir := t.TempDir()

	_, err := LatestFile(dir)
	assert.ErrorIs(t, err, ErrNoExport)

	older := filepath.Join(dir, "older.csv")
	newer := filepath.Join(dir, "newer.csv")
	require.NoError(t, os.WriteFile(older, []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(newer, []byte("b"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o750))

	now := time.Now()
	require.NoError(t, os.Chtimes(older, now, now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, now, now))

	got, err := LatestFile(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	_, err = LatestFile(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestForSource(t *testing.T) {
	for _, src := range model.SourceOrder {
		adapter, err := ForSource(src, "EUR")
		require.NoError(t, err)
		assert.Equal(t, src, adapter.Source())
	}

	_, err := ForSource("Paypal", "EUR")
	assert.Error(t, err)
}
