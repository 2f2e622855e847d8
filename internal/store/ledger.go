package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SpentOn returns the accumulated estimated spend for a UTC day key
// ("2006-01-02"). Missing days read as zero.
func (s *Store) SpentOn(ctx context.Context, day string) (float64, error) {
	var spent float64
	err := s.db.QueryRowContext(ctx,
		"SELECT spent_usd FROM budget_ledger WHERE day = ?", day,
	).Scan(&spent)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read budget ledger: %w", err)
	}
	return spent, nil
}

// AddSpend accumulates estimated cost onto a day's ledger row.
func (s *Store) AddSpend(ctx context.Context, day string, amount float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_ledger (day, spent_usd) VALUES (?, ?)
		 ON CONFLICT(day) DO UPDATE SET spent_usd = spent_usd + excluded.spent_usd`,
		day, amount,
	)
	if err != nil {
		return fmt.Errorf("add spend: %w", err)
	}
	return nil
}
