// Package currency converts foreign-currency transactions into the home
// currency using one historical rate per calendar date.
package currency

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// DefaultRatesURL serves historical reference rates in the Frankfurter format.
const DefaultRatesURL = "https://api.frankfurter.app"

// Provider errors.
var (
	ErrRateNotFound = errors.New("rate not found")
	ErrInvalidRate  = errors.New("invalid rate")
)

// RateProvider returns the rate converting one unit of from into to on day.
type RateProvider interface {
	Rate(ctx context.Context, from, to string, day civil.Date) (decimal.Decimal, error)
}

// RateProviderFunc adapts a function to RateProvider.
type RateProviderFunc func(ctx context.Context, from, to string, day civil.Date) (decimal.Decimal, error)

// Rate implements RateProvider.
func (f RateProviderFunc) Rate(ctx context.Context, from, to string, day civil.Date) (decimal.Decimal, error) {
	return f(ctx, from, to, day)
}

// HTTPRateProvider fetches rates from a Frankfurter-compatible service.
type HTTPRateProvider struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPRateProvider creates a provider for baseURL. A nil client gets a
// 30 second timeout.
func NewHTTPRateProvider(baseURL string, client *http.Client) *HTTPRateProvider {
	if baseURL == "" {
		baseURL = DefaultRatesURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRateProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

type ratesResponse struct {
	Rates map[string]decimal.Decimal `json:"rates"`
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
}

// Rate implements RateProvider.
func (p *HTTPRateProvider) Rate(ctx context.Context, from, to string, day civil.Date) (decimal.Decimal, error) {
	u, err := url.Parse(p.baseURL + "/" + day.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("from", from)
	q.Set("to", to)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch rate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("rates API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}

	rate, ok := payload.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s->%s on %s", ErrRateNotFound, from, to, day)
	}
	return rate, nil
}

// FileRateProvider serves rates from a local CSV file with "date" and "rate"
// columns, for currency pairs public services no longer publish.
type FileRateProvider struct {
	rates map[civil.Date]decimal.Decimal
	from  string
	to    string
}

// LoadFileRateProvider reads the rates for the from->to pair at path.
func LoadFileRateProvider(path, from, to string) (*FileRateProvider, error) {
	f, err := os.Open(path) // #nosec G304 -- rates file is user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open rates file: %w", err)
	}
	defer func() { _ = f.Close() }()

	rates, err := readRates(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates file %s: %w", path, err)
	}

	return &FileRateProvider{rates: rates, from: from, to: to}, nil
}

func readRates(r io.Reader) (map[civil.Date]decimal.Decimal, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}
	dateCol, rateCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			dateCol = i
		case "rate":
			rateCol = i
		}
	}
	if dateCol < 0 || rateCol < 0 {
		return nil, errors.New(`expected "date" and "rate" columns`)
	}

	rates := make(map[civil.Date]decimal.Decimal)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return rates, nil
		}
		if err != nil {
			return nil, err
		}
		if dateCol >= len(row) || rateCol >= len(row) {
			continue
		}

		day, err := civil.ParseDate(strings.TrimSpace(row[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", row[dateCol], err)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(row[rateCol]))
		if err != nil {
			return nil, fmt.Errorf("%w %q on %s", ErrInvalidRate, row[rateCol], day)
		}
		rates[day] = rate
	}
}

// Rate implements RateProvider.
func (p *FileRateProvider) Rate(_ context.Context, from, to string, day civil.Date) (decimal.Decimal, error) {
	if from != p.from || to != p.to {
		return decimal.Zero, fmt.Errorf("%w: file holds %s->%s, asked %s->%s", ErrRateNotFound, p.from, p.to, from, to)
	}
	rate, ok := p.rates[day]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s->%s on %s", ErrRateNotFound, from, to, day)
	}
	return rate, nil
}

// Len returns the number of dates the file covers.
func (p *FileRateProvider) Len() int {
	return len(p.rates)
}
