// Package testutil provides test fixtures for statement exports and the
// output database.
//
// Example:
//
//	dirs := testutil.NewExportBuilder(t).
//		WithSampleExports().
//		Build()
//
//	store := testutil.SetupTestStore(t)
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/spice-statements/internal/model"
	"github.com/Veraticus/spice-statements/internal/storage"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Sample exports. Tinkoff and MoneyLover samples are plain UTF-8 here and are
// encoded to their native encodings when written.
const (
	RevolutSample = "Type,Product,Started Date,Completed Date,Description,Amount,Fee,Currency,State,Balance\n" +
		"CARD_PAYMENT,Current,2023-05-02 10:15:00,2023-05-03 09:00:00,Lidl,-50.00,0.00,EUR,COMPLETED,950.00\n" +
		"CARD_PAYMENT,Current,2023-05-05 21:00:00,2023-05-06 09:00:00,Yandex Taxi,-300.00,0.00,RUB,COMPLETED,650.00\n"

	TinkoffSample = `"Дата операции";"Дата платежа";"Статус";"Сумма операции";"Валюта операции";"Категория";"Описание"
"14.03.2023 19:22:10";"15.03.2023";"OK";"-1234,56";"RUB";"Супермаркеты";"Пятёрочка"
"13.03.2023 08:00:00";"13.03.2023";"OK";"5000,00";"RUB";"Переводы";"Перевод между счетами"
"12.03.2023 11:11:11";"12.03.2023";"FAILED";"-99,00";"RUB";"Кафе";"Кофейня"
`

	MoneyLoverSample = "Id\tDate\tCategory\tAmount\tCurrency\tNote\tWallet\n" +
		"1\t03/06/2023\tRent\t1500\tEUR\tdeposit\tCash\n" +
		"2\t04/06/2023\tFood\t-35.5\tEUR\tmarket\tCash\n"
)

// dirNames mirrors the default statements layout.
var dirNames = map[model.Source]string{
	model.SourceRevolut: "revolut",
	model.SourceTinkoff: "tinkoff",
	model.SourceCash:    "moneylover",
}

// ExportBuilder writes source exports into a per-test directory tree.
type ExportBuilder struct {
	t       *testing.T
	exports map[model.Source]string
	root    string
}

// NewExportBuilder creates a builder rooted in t.TempDir().
func NewExportBuilder(t *testing.T) *ExportBuilder {
	t.Helper()
	return &ExportBuilder{
		t:       t,
		root:    t.TempDir(),
		exports: make(map[model.Source]string),
	}
}

// WithExport sets the UTF-8 content of a source's export.
func (b *ExportBuilder) WithExport(src model.Source, content string) *ExportBuilder {
	b.exports[src] = content
	return b
}

// WithSampleExports adds the sample export of every source.
func (b *ExportBuilder) WithSampleExports() *ExportBuilder {
	return b.
		WithExport(model.SourceRevolut, RevolutSample).
		WithExport(model.SourceTinkoff, TinkoffSample).
		WithExport(model.SourceCash, MoneyLoverSample)
}

// Root returns the directory holding the per-source directories.
func (b *ExportBuilder) Root() string {
	return b.root
}

// Build writes the exports in each source's native encoding and returns the
// directory of every source. Sources without an export get an empty
// directory.
func (b *ExportBuilder) Build() map[model.Source]string {
	b.t.Helper()

	dirs := make(map[model.Source]string, len(dirNames))
	for src, name := range dirNames {
		dir := filepath.Join(b.root, name)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			b.t.Fatalf("failed to create %s: %v", dir, err)
		}
		dirs[src] = dir

		content, ok := b.exports[src]
		if !ok {
			continue
		}
		encoded, err := Encode(src, content)
		if err != nil {
			b.t.Fatalf("failed to encode %s export: %v", src, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "export.csv"), []byte(encoded), 0o600); err != nil {
			b.t.Fatalf("failed to write %s export: %v", src, err)
		}
	}
	return dirs
}

// Encode converts UTF-8 content into the encoding src exports use.
func Encode(src model.Source, content string) (string, error) {
	switch src {
	case model.SourceTinkoff:
		return charmap.Windows1251.NewEncoder().String(content)
	case model.SourceCash:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(content)
	default:
		return content, nil
	}
}

// SetupTestStore opens a migrated SQLite store that is closed when the test
// ends.
func SetupTestStore(t *testing.T) *storage.Store {
	t.Helper()

	ctx := context.Background()
	store, err := storage.Open(ctx, storage.SinkConfig{
		Driver: storage.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "statements.db"),
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	return store
}
