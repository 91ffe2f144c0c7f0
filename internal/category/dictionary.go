// Package category assigns categories to transactions from a description
// dictionary.
package category

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the workbook sheet holding the dictionary.
const DefaultSheet = "Dictionary"

// Dictionary column headers.
const (
	descriptionHeader = "Description"
	categoryHeader    = "Category"
)

// ErrInvalidDictionary is returned when the dictionary table lacks its columns.
var ErrInvalidDictionary = errors.New("invalid dictionary")

// Dictionary maps a description to its category. It is read-only once loaded.
type Dictionary map[string]string

// Lookup returns the category for key, if any.
func (d Dictionary) Lookup(key string) (string, bool) {
	category, ok := d[key]
	if !ok || strings.TrimSpace(category) == "" {
		return "", false
	}
	return category, true
}

// LoadDictionary reads a two-column (Description, Category) table from an
// .xlsx workbook sheet or a .csv file.
func LoadDictionary(path, sheet string) (Dictionary, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(path, sheet)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidDictionary, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	return buildDictionary(rows)
}

func readWorkbook(path, sheet string) ([][]string, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path) // #nosec G304 -- dictionary path is user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dictionary: %w", err)
		}
		rows = append(rows, row)
	}
}

func buildDictionary(rows [][]string) (Dictionary, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrInvalidDictionary)
	}

	descCol, catCol := -1, -1
	for i, name := range rows[0] {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case descriptionHeader:
			descCol = i
		case categoryHeader:
			catCol = i
		}
	}
	if descCol < 0 || catCol < 0 {
		return nil, fmt.Errorf("%w: expected %q and %q columns", ErrInvalidDictionary, descriptionHeader, categoryHeader)
	}

	dict := make(Dictionary, len(rows)-1)
	for _, row := range rows[1:] {
		description := cell(row, descCol)
		if description == "" {
			continue
		}
		if existing, dup := dict[description]; dup {
			slog.Warn("Duplicate dictionary entry ignored",
				"description", description,
				"kept", existing,
				"ignored", cell(row, catCol))
			continue
		}
		dict[description] = cell(row, catCol)
	}

	return dict, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
