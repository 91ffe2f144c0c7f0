package currency

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/Veraticus/spice-statements/internal/common"
	"github.com/Veraticus/spice-statements/internal/model"
	"github.com/shopspring/decimal"
)

// Defaults for the conversion pass.
const (
	DefaultHome    = "EUR"
	DefaultForeign = "RUB"
)

// DefaultMarkup approximates the card issuer's conversion surcharge.
var DefaultMarkup = decimal.RequireFromString("1.05")

// RateTable holds the marked-up rate for each calendar date looked up in one
// conversion pass.
type RateTable map[civil.Date]decimal.Decimal

// Dates returns the table's dates in ascending order.
func (t RateTable) Dates() []civil.Date {
	dates := make([]civil.Date, 0, len(t))
	for d := range t {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Converter converts foreign-currency rows into the home currency.
type Converter struct {
	provider RateProvider
	markup   decimal.Decimal
	home     string
	foreign  string
}

// Option configures a Converter.
type Option func(*Converter)

// WithHome sets the target currency.
func WithHome(code string) Option {
	return func(c *Converter) { c.home = code }
}

// WithForeign sets the currency that gets converted.
func WithForeign(code string) Option {
	return func(c *Converter) { c.foreign = code }
}

// WithMarkup sets the multiplier applied to every fetched rate.
func WithMarkup(markup decimal.Decimal) Option {
	return func(c *Converter) { c.markup = markup }
}

// NewConverter creates a converter backed by provider.
func NewConverter(provider RateProvider, opts ...Option) (*Converter, error) {
	c := &Converter{
		provider: provider,
		markup:   DefaultMarkup,
		home:     DefaultHome,
		foreign:  DefaultForeign,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.provider == nil:
		return nil, common.NewConfigError("no rate provider")
	case !c.markup.IsPositive():
		return nil, common.NewConfigError("markup must be positive, got %s", c.markup)
	case c.home == "" || c.foreign == "":
		return nil, common.NewConfigError("home and foreign currencies are required")
	case c.home == c.foreign:
		return nil, common.NewConfigError("home and foreign currency are both %s", c.home)
	}

	return c, nil
}

// Home returns the target currency code.
func (c *Converter) Home() string { return c.home }

// Foreign returns the converted currency code.
func (c *Converter) Foreign() string { return c.foreign }

// Report summarizes one conversion pass.
type Report struct {
	Table       RateTable
	Failures    []*common.LookupError
	Lookups     int
	Converted   int
	Failed      int // Foreign rows whose date has no rate
	Unsupported int // Rows in a currency that is neither home nor foreign
}

// FailedDates lists the dates whose lookup failed, in lookup order.
func (r Report) FailedDates() []civil.Date {
	dates := make([]civil.Date, 0, len(r.Failures))
	for _, f := range r.Failures {
		dates = append(dates, civil.DateOf(f.Date))
	}
	return dates
}

// Convert builds the rate table for txns and applies it in place.
func (c *Converter) Convert(ctx context.Context, txns []model.Transaction) Report {
	table, failures := c.BuildRateTable(ctx, txns)
	report := c.Apply(txns, table)
	report.Failures = failures
	report.Lookups = len(table) + len(failures)

	slog.Info("Converted currency",
		"from", c.foreign,
		"to", c.home,
		"lookups", report.Lookups,
		"converted", report.Converted,
		"failed", report.Failed,
		"unsupported", report.Unsupported)

	return report
}

// BuildRateTable performs exactly one provider lookup per distinct calendar
// date among foreign-currency rows. Failed dates are absent from the table
// and reported as lookup errors.
func (c *Converter) BuildRateTable(ctx context.Context, txns []model.Transaction) (RateTable, []*common.LookupError) {
	table := make(RateTable)
	var failures []*common.LookupError

	for _, day := range c.foreignDates(txns) {
		rate, err := c.provider.Rate(ctx, c.foreign, c.home, day)
		if err == nil && !rate.IsPositive() {
			err = fmt.Errorf("%w: %s", ErrInvalidRate, rate)
		}
		if err != nil {
			lookupErr := &common.LookupError{
				Date: day.In(time.UTC),
				From: c.foreign,
				To:   c.home,
				Err:  err,
			}
			common.LogError(lookupErr, "Failed to fetch exchange rate", common.Fields{
				"date": day.String(),
				"from": c.foreign,
				"to":   c.home,
			})
			failures = append(failures, lookupErr)
			continue
		}

		table[day] = rate.Mul(c.markup)
		slog.Debug("Fetched exchange rate",
			"date", day.String(),
			"rate", rate.String(),
			"effective", table[day].String())
	}

	return table, failures
}

// Apply converts foreign rows whose date is in table. Rows without a rate,
// and rows in unsupported currencies, keep their values and are flagged.
func (c *Converter) Apply(txns []model.Transaction, table RateTable) Report {
	report := Report{Table: table}

	for i := range txns {
		txn := &txns[i]
		switch txn.Currency {
		case c.home:
			continue
		case c.foreign:
			rate, ok := table[txn.Day()]
			if !ok {
				txn.ConversionFailed = true
				report.Failed++
				continue
			}
			txn.Amount = txn.Amount.Mul(rate).Round(2)
			txn.Currency = c.home
			txn.ConversionFailed = false
			report.Converted++
		default:
			txn.ConversionFailed = true
			report.Unsupported++
			slog.Warn("Unsupported currency left unconverted",
				"currency", txn.Currency,
				"source", txn.Source,
				"date", txn.Date.Format("2006-01-02"))
		}
	}

	return report
}

func (c *Converter) foreignDates(txns []model.Transaction) []civil.Date {
	seen := make(map[civil.Date]bool)
	var dates []civil.Date
	for i := range txns {
		if txns[i].Currency != c.foreign {
			continue
		}
		day := txns[i].Day()
		if !seen[day] {
			seen[day] = true
			dates = append(dates, day)
		}
	}
	return dates
}
