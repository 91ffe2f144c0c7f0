package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/Veraticus/spice-statements/internal/currency"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
)

// ProgressProvider wraps a rate provider and advances a progress indicator
// after every lookup.
type ProgressProvider struct {
	next   currency.RateProvider
	bar    *progressbar.ProgressBar
	writer io.Writer
	count  int
	mu     sync.Mutex
}

// NewProgressProvider wraps next. The indicator is drawn on writer.
func NewProgressProvider(next currency.RateProvider, writer io.Writer) *ProgressProvider {
	return &ProgressProvider{next: next, writer: writer}
}

// Rate implements currency.RateProvider.
func (p *ProgressProvider) Rate(ctx context.Context, from, to string, day civil.Date) (decimal.Decimal, error) {
	p.mu.Lock()
	if p.bar == nil {
		p.bar = p.newBar()
	}
	p.bar.Describe(fmt.Sprintf("[cyan][bold]Fetching %s→%s rates[reset] %s", from, to, day))
	p.mu.Unlock()

	rate, err := p.next.Rate(ctx, from, to, day)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	if addErr := p.bar.Add(1); addErr != nil {
		slog.Warn("Failed to update progress bar", "error", addErr)
	}
	return rate, err
}

// Finish clears the indicator. Calls after the first, or before any lookup,
// do nothing.
func (p *ProgressProvider) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
	p.bar = nil
}

// Lookups returns how many lookups went through the provider.
func (p *ProgressProvider) Lookups() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *ProgressProvider) newBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
