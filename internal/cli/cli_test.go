package cli

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/Veraticus/spice-statements/internal/category"
	"github.com/Veraticus/spice-statements/internal/common"
	"github.com/Veraticus/spice-statements/internal/currency"
	"github.com/Veraticus/spice-statements/internal/model"
	"github.com/Veraticus/spice-statements/internal/pipeline"
	"github.com/Veraticus/spice-statements/internal/source"
	"github.com/Veraticus/spice-statements/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSummary(t *testing.T) {
	runID := uuid.MustParse("3f2b8c1e-0000-4000-8000-000000000000")
	started := time.Date(2023, 6, 10, 9, 0, 0, 0, time.UTC)
	report := &pipeline.Report{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Sources: map[model.Source]pipeline.SourceReport{
			model.SourceRevolut: {Path: "/exports/revolut/account-statement.csv", Rows: 12},
			model.SourceTinkoff: {Path: "/exports/tinkoff/operations.csv", Rows: 30, Categories: category.Stats{Excluded: 2}},
			model.SourceCash:    {Err: &common.ParseError{Source: "Cash", Err: source.ErrNoExport}},
		},
		Currency: currency.Report{
			Lookups:   3,
			Converted: 25,
			Failed:    2,
			Table: currency.RateTable{
				civil.Date{Year: 2023, Month: 5, Day: 3}: decimal.RequireFromString("0.0121"),
				civil.Date{Year: 2023, Month: 5, Day: 1}: decimal.RequireFromString("0.0120"),
			},
			Failures: []*common.LookupError{{
				Date: time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC),
				Err:  errors.New("timeout"),
			}},
		},
		Income:   map[string]int{"Salary": 40},
		Rows:     42,
		Written:  42,
		Failures: []error{
			&common.ParseError{Source: "Cash", Err: source.ErrNoExport},
			&pipeline.StageError{Stage: "tag", Value: "boom"},
		},
	}

	out := RenderSummary(report)

	assert.Contains(t, out, "Statement run 3f2b8c1e")
	assert.Contains(t, out, "12 rows")
	assert.Contains(t, out, "account-statement.csv")
	assert.Contains(t, out, "2 transfers removed")
	assert.Contains(t, out, "no export file found")
	assert.Contains(t, out, "25 converted, 3 lookups")
	assert.Contains(t, out, "2 unconverted")
	assert.Contains(t, out, "no rate for 2023-05-02")
	assert.Contains(t, out, "Salary 40")
	assert.Contains(t, out, "42 rows written")
	assert.Contains(t, out, "rates from 2023-05-01 to 2023-05-03")
	assert.Contains(t, out, "Completed with 2 failures, see the log (1 stage errors)")
	assert.Contains(t, out, "Finished in 1.5s")

	report.DryRun = true
	report.Failures = nil
	out = RenderSummary(report)
	assert.Contains(t, out, "Dry run: 42 rows ready, nothing written")
	assert.NotContains(t, out, "failures")
}

func TestRenderTransactions(t *testing.T) {
	txns := []model.Transaction{
		{
			Date:         time.Date(2023, 5, 2, 10, 15, 0, 0, time.UTC),
			Amount:       decimal.RequireFromString("50"),
			Currency:     "EUR",
			Category:     "Groceries",
			Source:       model.SourceRevolut,
			IncomeSource: "Salary",
		},
		{
			Date:                  time.Date(2023, 5, 5, 21, 0, 0, 0, time.UTC),
			Amount:                decimal.RequireFromString("300"),
			Currency:              "RUB",
			Category:              "Transport and taxi services",
			Source:                model.SourceRevolut,
			IsPositiveTransaction: true,
			ConversionFailed:      true,
		},
	}

	out := RenderTransactions(txns, 5)
	assert.Contains(t, out, "2 of 5 rows")
	assert.Contains(t, out, "2023-05-02")
	assert.Contains(t, out, "-50.00")
	assert.Contains(t, out, "300.00")
	assert.Contains(t, out, "Transport and tax…")
	assert.Contains(t, out, "unconverted")

	assert.Contains(t, RenderTransactions(nil, 0), "table is empty")
}

func TestRenderRates(t *testing.T) {
	out := RenderRates("RUB", "EUR", []RateRow{
		{Date: "2023-05-01", Rate: decimal.RequireFromString("0.0113"), Effective: decimal.RequireFromString("0.012091")},
		{Date: "2023-05-02", Err: currency.ErrRateNotFound},
	})

	assert.Contains(t, out, "RUB → EUR")
	assert.Contains(t, out, "0.0113")
	assert.Contains(t, out, "0.012091")
	assert.Contains(t, out, "rate not found")
}

func TestRenderRuns(t *testing.T) {
	assert.Contains(t, RenderRuns(nil), "No runs recorded yet")

	out := RenderRuns([]storage.Run{{
		ID:        uuid.MustParse("aabbccdd-0000-4000-8000-000000000000"),
		StartedAt: time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
		Rows:      7,
		Converted: 3,
		Degraded:  true,
	}})
	assert.Contains(t, out, "aabbccdd")
	assert.Contains(t, out, "7 rows, 3 converted, 0 unconverted")
}

func TestProgressProvider(t *testing.T) {
	calls := 0
	next := currency.RateProviderFunc(func(_ context.Context, from, to string, _ civil.Date) (decimal.Decimal, error) {
		calls++
		assert.Equal(t, "RUB", from)
		assert.Equal(t, "EUR", to)
		if calls == 2 {
			return decimal.Zero, currency.ErrRateNotFound
		}
		return decimal.RequireFromString("0.011"), nil
	})

	provider := NewProgressProvider(next, io.Discard)
	provider.Finish()

	rate, err := provider.Rate(context.Background(), "RUB", "EUR", civil.Date{Year: 2023, Month: 5, Day: 1})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.011").Equal(rate))

	_, err = provider.Rate(context.Background(), "RUB", "EUR", civil.Date{Year: 2023, Month: 5, Day: 2})
	assert.ErrorIs(t, err, currency.ErrRateNotFound)

	require.NotNil(t, provider.bar)
	provider.Finish()
	assert.Nil(t, provider.bar, "finished bar is released")
	provider.Finish()
	assert.Equal(t, 2, provider.Lookups())
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yes", true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out strings.Builder
			got, err := Confirm(context.Background(), strings.NewReader(tt.input), &out, "Replace table?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Replace table? [y/N]")
		})
	}
}

func TestConfirm_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader, writer := io.Pipe()
	defer func() { _ = writer.Close() }()

	_, err := Confirm(ctx, reader, io.Discard, "Replace table?")
	assert.ErrorIs(t, err, ErrInputCancelled)
}
