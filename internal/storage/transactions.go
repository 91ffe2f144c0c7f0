package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-statements/internal/model"
	"github.com/google/uuid"
)

// TableName is the table the unified statement is written to.
const TableName = "transactions"

// ReplaceTransactions drops and recreates the transactions table, inserts
// every row and returns the row count read back after commit.
func (s *Store) ReplaceTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+TableName); err != nil {
		return 0, fmt.Errorf("failed to drop %s: %w", TableName, err)
	}
	if _, err := tx.ExecContext(ctx, createTransactionsTable(s.driver)); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", TableName, err)
	}

	stmt, err := tx.PrepareContext(ctx, rebind(s.driver, `
		INSERT INTO transactions (
			date, amount, currency, category, source,
			is_positive_transaction, income_source, conversion_failed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range transactions {
		txn := &transactions[i]
		if _, err := stmt.ExecContext(ctx,
			txn.Date,
			txn.Amount,
			txn.Currency,
			txn.Category,
			string(txn.Source),
			txn.IsPositiveTransaction,
			txn.IncomeSource,
			txn.ConversionFailed,
		); err != nil {
			return 0, fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	count, err := s.CountTransactions(ctx)
	if err != nil {
		return 0, err
	}

	slog.Info("Wrote unified table",
		"table", TableName,
		"target", s.target,
		"rows", count)

	return count, nil
}

func createTransactionsTable(driver string) string {
	return fmt.Sprintf(`
		CREATE TABLE %s (
			date %s NOT NULL,
			amount NUMERIC NOT NULL,
			currency TEXT NOT NULL,
			category TEXT NOT NULL,
			source TEXT NOT NULL,
			is_positive_transaction BOOLEAN NOT NULL,
			income_source TEXT NOT NULL,
			conversion_failed BOOLEAN NOT NULL
		)`, TableName, timestampType(driver))
}

// CountTransactions returns the number of rows in the transactions table.
func (s *Store) CountTransactions(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+TableName).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// GetTransactions reads the table back in insertion order.
func (s *Store) GetTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	order := "rowid"
	if s.driver == DriverPostgres {
		order = "ctid"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, amount, currency, category, source,
			is_positive_transaction, income_source, conversion_failed
		FROM transactions ORDER BY `+order)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		var (
			txn    model.Transaction
			source string
		)
		if err := rows.Scan(
			&txn.Date,
			&txn.Amount,
			&txn.Currency,
			&txn.Category,
			&source,
			&txn.IsPositiveTransaction,
			&txn.IncomeSource,
			&txn.ConversionFailed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Source = model.Source(source)
		transactions = append(transactions, txn)
	}

	return transactions, rows.Err()
}

// Run is one recorded pipeline execution.
type Run struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	ID               uuid.UUID
	Rows             int
	Converted        int
	ConversionFailed int
	Degraded         bool
}

// RecordRun appends a run to the history table.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run.ID == uuid.Nil {
		return fmt.Errorf("run id is required")
	}

	_, err := s.db.ExecContext(ctx, rebind(s.driver, `
		INSERT INTO runs (id, started_at, finished_at, row_count, converted, conversion_failed, degraded)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), run.ID.String(), run.StartedAt, run.FinishedAt, run.Rows, run.Converted, run.ConversionFailed, run.Degraded)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, `
		SELECT id, started_at, finished_at, row_count, converted, conversion_failed, degraded
		FROM runs ORDER BY started_at DESC LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			run Run
			id  string
		)
		if err := rows.Scan(&id, &run.StartedAt, &run.FinishedAt, &run.Rows, &run.Converted, &run.ConversionFailed, &run.Degraded); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", id, err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
