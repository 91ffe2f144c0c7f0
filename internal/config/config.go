// Package config turns viper settings into the typed run configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/Veraticus/spice-statements/internal/category"
	"github.com/Veraticus/spice-statements/internal/common"
	"github.com/Veraticus/spice-statements/internal/currency"
	"github.com/Veraticus/spice-statements/internal/income"
	"github.com/Veraticus/spice-statements/internal/model"
	"github.com/Veraticus/spice-statements/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment variable viper reads.
const EnvPrefix = "STATEMENTS"

// Config is the typed view of the run configuration.
type Config struct {
	Sources    map[model.Source]string // Directory holding each source's exports
	Dictionary DictionaryConfig
	Categories CategoriesConfig
	Currency   CurrencyConfig
	Income     IncomeConfig
	Sink       storage.SinkConfig
	Logging    LoggingConfig
}

// DictionaryConfig locates the category dictionary.
type DictionaryConfig struct {
	Path  string
	Sheet string
}

// CategoriesConfig tunes category resolution.
type CategoriesConfig struct {
	Default   string
	Qualified []string
	Excluded  []string
}

// CurrencyConfig drives the conversion pass.
type CurrencyConfig struct {
	Markup    decimal.Decimal
	Home      string
	Foreign   string
	RatesURL  string
	RatesFile string // Optional CSV; takes precedence over RatesURL
}

// IncomeConfig drives income tagging.
type IncomeConfig struct {
	Cutover civil.Date
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// SetDefaults registers the default for every key Load reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sources.revolut", "statements/revolut")
	v.SetDefault("sources.tinkoff", "statements/tinkoff")
	v.SetDefault("sources.cash", "statements/moneylover")

	v.SetDefault("dictionary.path", "statements/transactions_dictionary.xlsx")
	v.SetDefault("dictionary.sheet", category.DefaultSheet)

	v.SetDefault("categories.default", model.DefaultCategory)
	v.SetDefault("categories.qualified", category.DefaultQualifiedCategories)
	v.SetDefault("categories.excluded", category.DefaultExcludedKeys)

	v.SetDefault("currency.home", currency.DefaultHome)
	v.SetDefault("currency.foreign", currency.DefaultForeign)
	v.SetDefault("currency.markup", "1.07")
	v.SetDefault("currency.rates_url", currency.DefaultRatesURL)
	v.SetDefault("currency.rates_file", "")

	v.SetDefault("income.cutover", income.DefaultCutover.String())

	v.SetDefault("sink.driver", storage.DriverPostgres)
	v.SetDefault("sink.path", "statements.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
}

// LoadDotEnv loads variables from a .env file in the working directory, if
// present. Variables already set in the environment win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from v. It follows this precedence for sink
// credentials:
// 1. Viper configuration (from config file or STATEMENTS_ env vars)
// 2. Direct environment variables (PG_*)
// Sink settings are not validated here; the sink validates them before
// connecting.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Sources: map[model.Source]string{
			model.SourceRevolut: ExpandPath(v.GetString("sources.revolut")),
			model.SourceTinkoff: ExpandPath(v.GetString("sources.tinkoff")),
			model.SourceCash:    ExpandPath(v.GetString("sources.cash")),
		},
		Dictionary: DictionaryConfig{
			Path:  ExpandPath(v.GetString("dictionary.path")),
			Sheet: v.GetString("dictionary.sheet"),
		},
		Categories: CategoriesConfig{
			Default:   v.GetString("categories.default"),
			Qualified: v.GetStringSlice("categories.qualified"),
			Excluded:  v.GetStringSlice("categories.excluded"),
		},
		Currency: CurrencyConfig{
			Home:      strings.ToUpper(v.GetString("currency.home")),
			Foreign:   strings.ToUpper(v.GetString("currency.foreign")),
			RatesURL:  v.GetString("currency.rates_url"),
			RatesFile: ExpandPath(v.GetString("currency.rates_file")),
		},
		Sink: storage.SinkConfig{
			Driver:   v.GetString("sink.driver"),
			Path:     ExpandPath(v.GetString("sink.path")),
			User:     v.GetString("sink.user"),
			Password: v.GetString("sink.password"),
			Host:     v.GetString("sink.host"),
			Port:     v.GetString("sink.port"),
			Database: v.GetString("sink.database"),
			SSLMode:  v.GetString("sink.sslmode"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
			File:   ExpandPath(v.GetString("logging.file")),
		},
	}

	markup, err := decimal.NewFromString(strings.TrimSpace(v.GetString("currency.markup")))
	if err != nil {
		return nil, common.NewConfigError("invalid currency.markup %q", v.GetString("currency.markup"))
	}
	cfg.Currency.Markup = markup

	cutover, err := civil.ParseDate(v.GetString("income.cutover"))
	if err != nil {
		return nil, common.NewConfigError("invalid income.cutover %q, want YYYY-MM-DD", v.GetString("income.cutover"))
	}
	cfg.Income.Cutover = cutover

	// Override with direct environment variables if not set
	fallbacks := []struct {
		field *string
		env   string
	}{
		{&cfg.Sink.User, "PG_USER"},
		{&cfg.Sink.Password, "PG_PASS"},
		{&cfg.Sink.Host, "PG_SERV"},
		{&cfg.Sink.Port, "PG_PORT"},
		{&cfg.Sink.Database, "PG_DTBS"},
	}
	for _, fb := range fallbacks {
		if *fb.field == "" {
			*fb.field = os.Getenv(fb.env)
		}
	}

	return cfg, nil
}

// ExpandPath expands a leading ~ and $VAR references in path.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}
