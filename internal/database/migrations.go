package database

import (
	"context"
	"fmt"
)

// RunMigrations creates the database schema.
// Card balance invariants are enforced by CHECK constraints as well as by the ledger.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS cards (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			card_name TEXT NOT NULL,
			card_type TEXT NOT NULL DEFAULT '',
			last_four_digits TEXT NOT NULL DEFAULT '',
			issuing_bank TEXT NOT NULL DEFAULT '',
			card_color TEXT NOT NULL DEFAULT '#10b981',
			expiry_date TEXT NOT NULL DEFAULT '',
			credit_limit DECIMAL(12, 2) NOT NULL CHECK (credit_limit > 0),
			current_balance DECIMAL(12, 2) NOT NULL DEFAULT 0,
			total_loaded_this_year DECIMAL(12, 2) NOT NULL DEFAULT 0,
			year_started INTEGER NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT cards_balance_range CHECK (current_balance >= 0 AND current_balance <= credit_limit),
			CONSTRAINT cards_yearly_range CHECK (total_loaded_this_year >= 0 AND total_loaded_this_year <= credit_limit)
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			card_id BIGINT NOT NULL REFERENCES cards(id),
			transaction_type TEXT NOT NULL,
			merchant_name TEXT NOT NULL DEFAULT '',
			amount_usd DECIMAL(12, 2) NOT NULL CHECK (amount_usd > 0),
			amount_npr DECIMAL(14, 2) NOT NULL,
			exchange_rate DECIMAL(12, 4) NOT NULL,
			category TEXT NOT NULL DEFAULT 'Others',
			description TEXT NOT NULL DEFAULT '',
			transaction_date DATE NOT NULL DEFAULT CURRENT_DATE,
			is_recurring BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS exchange_rates (
			id SERIAL PRIMARY KEY,
			fetch_date DATE NOT NULL UNIQUE,
			rate DECIMAL(12, 4) NOT NULL CHECK (rate > 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			alert_type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			related_id BIGINT,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS subscriptions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			card_id BIGINT NOT NULL REFERENCES cards(id),
			service_name TEXT NOT NULL,
			category TEXT NOT NULL,
			amount_usd DECIMAL(12, 2) NOT NULL CHECK (amount_usd > 0),
			billing_cycle TEXT NOT NULL,
			next_billing_date DATE NOT NULL,
			trial_end_date DATE,
			status TEXT NOT NULL DEFAULT 'active',
			usage_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_cards_user_id ON cards(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_card_id ON transactions(card_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(transaction_date)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user_id ON alerts(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id ON subscriptions(user_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
