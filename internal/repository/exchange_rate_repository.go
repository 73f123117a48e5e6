package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/database"
	"gitlab.com/yelinaung/paywatch/internal/models"
)

// ExchangeRateRepository persists daily USD to NPR rate snapshots.
type ExchangeRateRepository struct {
	db database.PGXDB
}

// NewExchangeRateRepository creates a new ExchangeRateRepository.
func NewExchangeRateRepository(db database.PGXDB) *ExchangeRateRepository {
	return &ExchangeRateRepository{db: db}
}

// GetByDate returns the snapshot recorded for date, or ErrNotFound.
func (r *ExchangeRateRepository) GetByDate(ctx context.Context, date time.Time) (*models.ExchangeRateSnapshot, error) {
	snap, err := scanSnapshot(r.db.QueryRow(ctx, `
		SELECT fetch_date, rate FROM exchange_rates WHERE fetch_date = $1
	`, dateOnly(date)))
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rate: %w", err)
	}
	return snap, nil
}

// GetLatest returns the most recent snapshot from any date, or ErrNotFound.
func (r *ExchangeRateRepository) GetLatest(ctx context.Context) (*models.ExchangeRateSnapshot, error) {
	snap, err := scanSnapshot(r.db.QueryRow(ctx, `
		SELECT fetch_date, rate FROM exchange_rates ORDER BY fetch_date DESC LIMIT 1
	`))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest exchange rate: %w", err)
	}
	return snap, nil
}

// Upsert records rate for date. An existing snapshot for that date is overwritten.
func (r *ExchangeRateRepository) Upsert(ctx context.Context, date time.Time, rate decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO exchange_rates (fetch_date, rate, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (fetch_date) DO UPDATE SET rate = EXCLUDED.rate, updated_at = NOW()
	`, dateOnly(date), rate)
	if err != nil {
		return fmt.Errorf("failed to upsert exchange rate: %w", err)
	}
	return nil
}

func scanSnapshot(row pgx.Row) (*models.ExchangeRateSnapshot, error) {
	var snap models.ExchangeRateSnapshot
	err := row.Scan(&snap.FetchDate, &snap.Rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// dateOnly keeps the calendar date of t in its own location, so a DATE
// column receives the local day rather than the UTC one.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
