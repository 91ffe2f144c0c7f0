package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/Veraticus/spice-statements/internal/category"
	"github.com/Veraticus/spice-statements/internal/common"
	"github.com/Veraticus/spice-statements/internal/currency"
	"github.com/Veraticus/spice-statements/internal/income"
	"github.com/Veraticus/spice-statements/internal/model"
	"github.com/Veraticus/spice-statements/internal/source"
	"github.com/Veraticus/spice-statements/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDictionary = category.Dictionary{
	"Lidl":         "Groceries",
	"Супермаркеты": "Groceries",
	"Rent":         "Housing",
}

func exportDirs(t *testing.T) map[model.Source]string {
	t.Helper()
	return testutil.NewExportBuilder(t).WithSampleExports().Build()
}

func fixedRates(rates map[string]string) currency.RateProvider {
	return currency.RateProviderFunc(func(_ context.Context, _, _ string, day civil.Date) (decimal.Decimal, error) {
		rate, ok := rates[day.String()]
		if !ok {
			return decimal.Zero, currency.ErrRateNotFound
		}
		return decimal.RequireFromString(rate), nil
	})
}

func newConverter(t *testing.T, provider currency.RateProvider) *currency.Converter {
	t.Helper()
	c, err := currency.NewConverter(provider, currency.WithMarkup(decimal.RequireFromString("1.07")))
	require.NoError(t, err)
	return c
}

// recordingSink keeps the rows it was given.
type recordingSink struct {
	err  error
	rows []model.Transaction
}

func (s *recordingSink) ReplaceTransactions(_ context.Context, txns []model.Transaction) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.rows = append([]model.Transaction(nil), txns...)
	return len(txns), nil
}

type panickingConverter struct{}

func (panickingConverter) Convert(context.Context, []model.Transaction) currency.Report {
	panic("rate service exploded")
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupTestStore(t)

	converter := newConverter(t, fixedRates(map[string]string{
		"2023-05-05": "0.011",
		"2023-03-14": "0.012",
	}))

	p, err := New(Config{Sources: exportDirs(t), Home: "EUR"},
		category.NewResolver(testDictionary), converter, income.NewTagger(civil.Date{}), store)
	require.NoError(t, err)

	report, err := p.Run(ctx)
	require.NoError(t, err)

	assert.False(t, report.Degraded(), "failures: %v", report.Failures)
	assert.GreaterOrEqual(t, report.Duration(), time.Duration(0))
	assert.Equal(t, []civil.Date{{Year: 2023, Month: 3, Day: 14}, {Year: 2023, Month: 5, Day: 5}}, report.Currency.Table.Dates())
	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, 5, report.Written)
	assert.Equal(t, 2, report.Currency.Lookups)
	assert.Equal(t, 2, report.Currency.Converted)
	assert.Equal(t, 1, report.Sources[model.SourceTinkoff].Categories.Excluded)
	assert.Equal(t, map[string]int{income.LabelSalary: 4, income.LabelRealEstate: 1}, report.Income)

	rows, err := store.GetTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	type row struct {
		source   model.Source
		category string
		amount   string
		income   string
	}
	want := []row{
		{model.SourceRevolut, "Groceries", "50", income.LabelSalary},
		{model.SourceRevolut, "Other", "3.53", income.LabelSalary},
		{model.SourceTinkoff, "Groceries", "15.85", income.LabelSalary},
		{model.SourceCash, "Housing", "1500", income.LabelSalary},
		{model.SourceCash, "Other", "35.5", income.LabelRealEstate},
	}
	for i, w := range want {
		assert.Equal(t, w.source, rows[i].Source, "row %d", i)
		assert.Equal(t, w.category, rows[i].Category, "row %d", i)
		assert.True(t, decimal.RequireFromString(w.amount).Equal(rows[i].Amount), "row %d amount %s", i, rows[i].Amount)
		assert.Equal(t, w.income, rows[i].IncomeSource, "row %d", i)
		assert.Equal(t, "EUR", rows[i].Currency, "row %d", i)
		assert.False(t, rows[i].ConversionFailed, "row %d", i)
	}
	assert.True(t, rows[3].IsPositiveTransaction)
	assert.False(t, rows[4].IsPositiveTransaction)

	runs, err := store.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, 5, runs[0].Rows)
}

func TestPipeline_DegradedSourcesAndLookups(t *testing.T) {
	dirs := testutil.NewExportBuilder(t).
		WithExport(model.SourceRevolut, testutil.RevolutSample).
		WithExport(model.SourceCash, testutil.MoneyLoverSample).
		Build()
	dirs[model.SourceCash] = ""

	sink := &recordingSink{}
	p, err := New(Config{Sources: dirs, Home: "EUR"},
		category.NewResolver(testDictionary), newConverter(t, fixedRates(nil)), income.NewTagger(civil.Date{}), sink)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Degraded())
	assert.ErrorIs(t, report.Sources[model.SourceTinkoff].Err, source.ErrNoExport)
	assert.ErrorIs(t, report.Sources[model.SourceCash].Err, common.ErrParseFailure)
	assert.NoError(t, report.Sources[model.SourceRevolut].Err)

	require.Len(t, sink.rows, 2)
	assert.Equal(t, "EUR", sink.rows[0].Currency)
	assert.False(t, sink.rows[0].ConversionFailed)
	assert.Equal(t, "RUB", sink.rows[1].Currency)
	assert.True(t, sink.rows[1].ConversionFailed)
	assert.True(t, decimal.NewFromInt(300).Equal(sink.rows[1].Amount))

	var lookups int
	for _, failure := range report.Failures {
		assert.True(t, common.IsDegraded(failure), "%v", failure)
		if errors.Is(failure, common.ErrLookupFailure) {
			lookups++
		}
	}
	assert.Equal(t, 1, lookups)
	assert.Zero(t, report.StageFailures(), "unreadable sources and missing rates are degraded, not stage errors")
}

func TestPipeline_StagePanicFallsBack(t *testing.T) {
	sink := &recordingSink{}
	p, err := New(Config{Sources: exportDirs(t), Home: "EUR"},
		category.NewResolver(testDictionary), panickingConverter{}, income.NewTagger(civil.Date{}), sink)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	var stageErr *StageError
	require.ErrorAs(t, report.Failures[0], &stageErr)
	assert.Equal(t, "convert", stageErr.Stage)
	assert.ErrorIs(t, report.Failures[0], ErrStageFailure)
	assert.Equal(t, 1, report.StageFailures())

	require.Len(t, sink.rows, 5)
	for _, txn := range sink.rows {
		assert.NotEmpty(t, txn.IncomeSource, "tagging still runs after a failed conversion")
	}
}

func TestPipeline_SinkFailureStopsRun(t *testing.T) {
	sink := &recordingSink{err: errors.New("connection refused")}
	p, err := New(Config{Sources: exportDirs(t), Home: "EUR"},
		category.NewResolver(testDictionary), newConverter(t, fixedRates(nil)), income.NewTagger(civil.Date{}), sink)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, report.Written)
}

func TestPipeline_DryRun(t *testing.T) {
	p, err := New(Config{Sources: exportDirs(t), Home: "EUR", DryRun: true},
		category.NewResolver(testDictionary), newConverter(t, fixedRates(nil)), income.NewTagger(civil.Date{}), nil)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 5, report.Rows)
	assert.Zero(t, report.Written)
}

func TestNew_Validation(t *testing.T) {
	resolver := category.NewResolver(nil)
	converter := newConverter(t, fixedRates(nil))
	tagger := income.NewTagger(civil.Date{})

	_, err := New(Config{}, resolver, converter, tagger, nil)
	assert.ErrorIs(t, err, common.ErrConfigurationFailure)

	_, err = New(Config{DryRun: true}, nil, converter, tagger, nil)
	assert.ErrorIs(t, err, common.ErrConfigurationFailure)
}
