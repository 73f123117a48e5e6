package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/paywatch/internal/database"
	"gitlab.com/yelinaung/paywatch/internal/models"
)

const subscriptionColumns = `s.id, s.user_id, s.card_id, c.card_name, c.last_four_digits, s.service_name,
	s.category, s.amount_usd, s.billing_cycle, s.next_billing_date, s.trial_end_date, s.status,
	s.usage_count, s.created_at`

// SubscriptionRepository handles subscription database operations.
type SubscriptionRepository struct {
	db database.PGXDB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db database.PGXDB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create adds a new subscription and fills in its generated fields.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO subscriptions (user_id, card_id, service_name, category, amount_usd,
			billing_cycle, next_billing_date, trial_end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, usage_count, created_at
	`, sub.UserID, sub.CardID, sub.ServiceName, sub.Category, sub.AmountUSD,
		sub.BillingCycle, sub.NextBillingDate, sub.TrialEndDate, sub.Status,
	).Scan(&sub.ID, &sub.UsageCount, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetByIDAndUser retrieves a subscription owned by userID.
func (r *SubscriptionRepository) GetByIDAndUser(ctx context.Context, id, userID int64) (*models.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions s JOIN cards c ON c.id = s.card_id
		WHERE s.id = $1 AND s.user_id = $2
	`, id, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// ListByUser retrieves a user's subscriptions soonest renewal first.
// An empty status lists every status.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID int64, status string) ([]models.Subscription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions s JOIN cards c ON c.id = s.card_id
		WHERE s.user_id = $1 AND ($2::text = '' OR s.status = $2)
		ORDER BY s.next_billing_date ASC, s.id ASC
	`, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}
	return subs, nil
}

// Update writes a subscription's editable fields.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *models.Subscription) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE subscriptions SET
			service_name = $3, category = $4, amount_usd = $5, billing_cycle = $6,
			next_billing_date = $7, trial_end_date = $8, status = $9, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, sub.ID, sub.UserID, sub.ServiceName, sub.Category, sub.AmountUSD, sub.BillingCycle,
		sub.NextBillingDate, sub.TrialEndDate, sub.Status)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update subscription: %w", ErrNotFound)
	}
	return nil
}

// Cancel marks a subscription owned by userID as cancelled.
func (r *SubscriptionRepository) Cancel(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE subscriptions SET status = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, id, userID, models.SubscriptionStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to cancel subscription: %w", ErrNotFound)
	}
	return nil
}

// IncrementUsage adds one to a subscription's usage counter and returns the new count.
func (r *SubscriptionRepository) IncrementUsage(ctx context.Context, id, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		UPDATE subscriptions SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING usage_count
	`, id, userID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to record subscription usage: %w", ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to record subscription usage: %w", err)
	}
	return count, nil
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.CardID, &sub.CardName, &sub.CardLastFour, &sub.ServiceName,
		&sub.Category, &sub.AmountUSD, &sub.BillingCycle, &sub.NextBillingDate, &sub.TrialEndDate, &sub.Status,
		&sub.UsageCount, &sub.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
