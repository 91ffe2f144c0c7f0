// Package source parses the raw exports of each supported source into
// canonical transactions.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Parse errors.
var (
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyExport   = errors.New("export has no header row")
)

// dialect describes how one source writes its export. None of these values
// are detected at runtime.
type dialect struct {
	encoding    encoding.Encoding // nil means UTF-8
	dateLayouts []string
	groupSeps   string // Characters dropped as digit grouping
	delimiter   rune
	decimalSep  rune
	lazyQuotes  bool
}

// record is one data row addressed by column name.
type record struct {
	index  map[string]int
	fields []string
	line   int
}

func (r record) get(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// readRecords decodes the export and calls fn for each data row. Columns
// lists the headers that must be present.
func (d dialect) readRecords(ctx context.Context, r io.Reader, columns []string, fn func(record) error) error {
	if d.encoding != nil {
		r = transform.NewReader(r, d.encoding.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.Comma = d.delimiter
	reader.LazyQuotes = d.lazyQuotes
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return ErrEmptyExport
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	for _, column := range columns {
		if _, ok := index[column]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingColumn, column)
		}
	}

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		fields, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read line %d: %w", line, err)
		}
		if isBlank(fields) {
			continue
		}

		if err := fn(record{index: index, fields: fields, line: line}); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

// parseDate tries each of the dialect's layouts in order.
func (d dialect) parseDate(value string) (time.Time, error) {
	for _, layout := range d.dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
}

// parseAmount parses a signed decimal written with the dialect's decimal
// and grouping separators. Any other separator is rejected rather than
// reinterpreted.
func (d dialect) parseAmount(value string) (decimal.Decimal, error) {
	var b strings.Builder
	seenDecimal := false
	for i, r := range strings.TrimSpace(value) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == d.decimalSep && !seenDecimal:
			seenDecimal = true
			b.WriteRune('.')
		case strings.ContainsRune(d.groupSeps, r):
		case (r == '-' || r == '\u2212') && i == 0:
			b.WriteRune('-')
		case r == '+' && i == 0:
		default:
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
		}
	}

	amount, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	return amount, nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
