package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/spice-statements/internal/category"
	"github.com/Veraticus/spice-statements/internal/common"
	"github.com/Veraticus/spice-statements/internal/config"
	"github.com/Veraticus/spice-statements/internal/currency"
	"github.com/Veraticus/spice-statements/internal/storage"
)

// loadDictionary loads the configured dictionary. A dictionary that cannot
// be loaded is logged and replaced by an empty one.
func loadDictionary(cfg *config.Config) category.Dictionary {
	dict, err := category.LoadDictionary(cfg.Dictionary.Path, cfg.Dictionary.Sheet)
	if err != nil {
		common.LogError(err, "Failed to load dictionary, every row will get the default category", common.Fields{
			"path":  cfg.Dictionary.Path,
			"sheet": cfg.Dictionary.Sheet,
		})
		return category.Dictionary{}
	}

	slog.Info("Loaded dictionary", "path", cfg.Dictionary.Path, "entries", len(dict))
	return dict
}

func newResolver(cfg *config.Config, dict category.Dictionary) *category.Resolver {
	return category.NewResolver(dict,
		category.WithQualifiedCategories(cfg.Categories.Qualified...),
		category.WithExcludedKeys(cfg.Categories.Excluded...),
		category.WithDefaultCategory(cfg.Categories.Default),
	)
}

// newRateProvider prefers a local rates file over the HTTP service.
func newRateProvider(cfg *config.Config) (currency.RateProvider, error) {
	if cfg.Currency.RatesFile != "" {
		provider, err := currency.LoadFileRateProvider(cfg.Currency.RatesFile, cfg.Currency.Foreign, cfg.Currency.Home)
		if err != nil {
			return nil, common.NewConfigError("rates file: %v", err)
		}
		slog.Info("Using rates file", "path", cfg.Currency.RatesFile, "dates", provider.Len())
		return provider, nil
	}
	return currency.NewHTTPRateProvider(cfg.Currency.RatesURL, nil), nil
}

func newConverter(cfg *config.Config, provider currency.RateProvider) (*currency.Converter, error) {
	return currency.NewConverter(provider,
		currency.WithHome(cfg.Currency.Home),
		currency.WithForeign(cfg.Currency.Foreign),
		currency.WithMarkup(cfg.Currency.Markup),
	)
}

// openStore connects to the configured sink and brings its schema up to date.
// Missing settings fail before any connection is attempted.
func openStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	store, err := storage.Open(ctx, cfg.Sink)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", store.Target(), err)
	}
	return store, nil
}

func writeLine(w io.Writer, s string) {
	if _, err := fmt.Fprintln(w, s); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}
