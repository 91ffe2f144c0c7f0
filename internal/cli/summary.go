package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/spice-statements/internal/model"
	"github.com/Veraticus/spice-statements/internal/pipeline"
	"github.com/Veraticus/spice-statements/internal/storage"
	"github.com/shopspring/decimal"
)

// RenderSummary renders the outcome of a run.
func RenderSummary(report *pipeline.Report) string {
	var lines []string

	for _, src := range model.SourceOrder {
		summary, ok := report.Sources[src]
		if !ok {
			continue
		}
		if summary.Err != nil {
			lines = append(lines, FormatField(string(src), ErrorStyle.Render(ErrorIcon+" "+summary.Err.Error())))
			continue
		}
		value := fmt.Sprintf("%d rows", summary.Rows)
		if excluded := summary.Categories.Excluded; excluded > 0 {
			value += fmt.Sprintf(", %d transfers removed", excluded)
		}
		value += " " + SubtleStyle.Render("("+filepath.Base(summary.Path)+")")
		lines = append(lines, FormatField(string(src), value))
	}

	lines = append(lines, "")

	cur := report.Currency
	conversion := fmt.Sprintf("%d converted, %d lookups", cur.Converted, cur.Lookups)
	if cur.Failed > 0 || cur.Unsupported > 0 {
		conversion += ", " + WarningStyle.Render(fmt.Sprintf("%d unconverted", cur.Failed+cur.Unsupported))
	}
	lines = append(lines, FormatField("Currency", conversion))
	if dates := cur.Table.Dates(); len(dates) > 0 {
		lines = append(lines, FormatField("", SubtleStyle.Render(
			fmt.Sprintf("rates from %s to %s", dates[0], dates[len(dates)-1]))))
	}
	if dates := cur.FailedDates(); len(dates) > 0 {
		failed := make([]string, 0, len(dates))
		for _, d := range dates {
			failed = append(failed, d.String())
		}
		lines = append(lines, FormatField("", SubtleStyle.Render("no rate for "+strings.Join(failed, ", "))))
	}

	if len(report.Income) > 0 {
		labels := make([]string, 0, len(report.Income))
		for label := range report.Income {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		parts := make([]string, 0, len(labels))
		for _, label := range labels {
			name := label
			if name == "" {
				name = "untagged"
			}
			parts = append(parts, fmt.Sprintf("%s %d", name, report.Income[label]))
		}
		lines = append(lines, FormatField("Income", strings.Join(parts, ", ")))
	}

	lines = append(lines, "")

	switch {
	case report.DryRun:
		lines = append(lines, FormatInfo(fmt.Sprintf("Dry run: %d rows ready, nothing written", report.Rows)))
	default:
		lines = append(lines, FormatSuccess(fmt.Sprintf("%d rows written", report.Written)))
	}
	if report.Degraded() {
		msg := fmt.Sprintf("Completed with %d failures, see the log", len(report.Failures))
		if stage := report.StageFailures(); stage > 0 {
			msg += fmt.Sprintf(" (%d stage errors)", stage)
		}
		lines = append(lines, FormatWarning(msg))
	}
	lines = append(lines, SubtleStyle.Render("Finished in "+report.Duration().Round(time.Millisecond).String()))

	title := fmt.Sprintf("%s Statement run %s", LedgerIcon, shortID(report.RunID.String()))
	return RenderBox(title, strings.Join(lines, "\n"))
}

// RateRow is one line of the rates table.
type RateRow struct {
	Err       error
	Rate      decimal.Decimal
	Effective decimal.Decimal
	Date      string
}

// RenderRates renders provider rates with and without markup.
func RenderRates(from, to string, rows []RateRow) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, BoldStyle.Render(fmt.Sprintf("%-12s %-12s %s", "date", "rate", "with markup")))
	for _, row := range rows {
		if row.Err != nil {
			lines = append(lines, fmt.Sprintf("%-12s %s", row.Date, ErrorStyle.Render(row.Err.Error())))
			continue
		}
		lines = append(lines, fmt.Sprintf("%-12s %-12s %s", row.Date, row.Rate.String(), row.Effective.StringFixed(6)))
	}
	return RenderBox(fmt.Sprintf("%s → %s", from, to), strings.Join(lines, "\n"))
}

// RenderRuns renders the run history.
func RenderRuns(runs []storage.Run) string {
	if len(runs) == 0 {
		return FormatInfo("No runs recorded yet")
	}

	lines := make([]string, 0, len(runs))
	for _, run := range runs {
		status := SuccessStyle.Render(SuccessIcon)
		if run.Degraded {
			status = WarningStyle.Render(WarningIcon)
		}
		lines = append(lines, fmt.Sprintf("%s %s  %s  %d rows, %d converted, %d unconverted",
			status,
			shortID(run.ID.String()),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Rows,
			run.Converted,
			run.ConversionFailed))
	}
	return RenderBox("Recent runs", strings.Join(lines, "\n"))
}

// RenderTransactions renders stored rows. Total is the size of the table the
// rows were taken from.
func RenderTransactions(txns []model.Transaction, total int) string {
	if total == 0 {
		return FormatInfo("The transactions table is empty")
	}

	lines := make([]string, 0, len(txns)+1)
	lines = append(lines, BoldStyle.Render(fmt.Sprintf("%-10s  %-8s  %-18s %12s %-4s  %s",
		"date", "source", "category", "amount", "", "income")))
	for i := range txns {
		txn := &txns[i]
		line := fmt.Sprintf("%-10s  %-8s  %-18s %12s %-4s  %s",
			txn.Day(),
			txn.Source,
			truncate(txn.Category, 18),
			txn.SignedAmount().StringFixed(2),
			txn.Currency,
			txn.IncomeSource)
		if txn.ConversionFailed {
			line += " " + WarningStyle.Render(WarningIcon+" unconverted")
		}
		lines = append(lines, line)
	}

	title := fmt.Sprintf("%s %d of %d rows", LedgerIcon, len(txns), total)
	return RenderBox(title, strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
