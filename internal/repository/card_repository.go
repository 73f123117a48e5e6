// Package repository implements PostgreSQL persistence for cards, transactions,
// exchange rate snapshots and alerts.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/database"
	"gitlab.com/yelinaung/paywatch/internal/models"
)

var (
	// ErrNotFound is returned when no row matches the lookup (including owner scope).
	ErrNotFound = errors.New("record not found")
	// ErrConditionFailed is returned when a guarded update matched no row
	// because its balance condition no longer held.
	ErrConditionFailed = errors.New("update condition not met")
)

const cardColumns = `id, user_id, card_name, card_type, last_four_digits, issuing_bank, card_color,
	expiry_date, credit_limit, current_balance, total_loaded_this_year, year_started,
	is_active, created_at, updated_at`

// CardRepository handles card database operations.
type CardRepository struct {
	db database.PGXDB
}

// NewCardRepository creates a new CardRepository.
func NewCardRepository(db database.PGXDB) *CardRepository {
	return &CardRepository{db: db}
}

// Create adds a new card and fills in its generated fields.
func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO cards (user_id, card_name, card_type, last_four_digits, issuing_bank, card_color,
			expiry_date, credit_limit, current_balance, total_loaded_this_year, year_started)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, is_active, created_at, updated_at
	`, card.UserID, card.Name, card.CardType, card.LastFour, card.IssuingBank, card.Color,
		card.ExpiryDate, card.CreditLimit, card.CurrentBalance, card.TotalLoadedThisYear, card.YearStarted,
	).Scan(&card.ID, &card.IsActive, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// GetByIDAndUser retrieves a card owned by userID.
func (r *CardRepository) GetByIDAndUser(ctx context.Context, id, userID int64) (*models.Card, error) {
	card, err := scanCard(r.db.QueryRow(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// GetForUpdate retrieves a card owned by userID and locks its row until the
// surrounding transaction ends.
func (r *CardRepository) GetForUpdate(ctx context.Context, id, userID int64) (*models.Card, error) {
	card, err := scanCard(r.db.QueryRow(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, id, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock card: %w", err)
	}
	return card, nil
}

// ListByUser retrieves all active cards for a user, newest first.
func (r *CardRepository) ListByUser(ctx context.Context, userID int64) ([]models.Card, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}
	return cards, nil
}

// Update writes a card's descriptive fields and credit limit. The write is
// refused with ErrConditionFailed when the card is inactive or the new limit
// is below its balance or yearly total.
func (r *CardRepository) Update(ctx context.Context, card *models.Card) (*models.Card, error) {
	updated, err := scanCard(r.db.QueryRow(ctx, `
		UPDATE cards SET
			card_name = $3, card_type = $4, last_four_digits = $5, issuing_bank = $6,
			card_color = $7, expiry_date = $8, credit_limit = $9, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_active = TRUE
			AND current_balance <= $9
			AND total_loaded_this_year <= $9
		RETURNING `+cardColumns,
		card.ID, card.UserID, card.Name, card.CardType, card.LastFour, card.IssuingBank,
		card.Color, card.ExpiryDate, card.CreditLimit))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to update card: %w", ErrConditionFailed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update card: %w", err)
	}
	return updated, nil
}

// Deactivate soft-deletes a card owned by userID.
func (r *CardRepository) Deactivate(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE cards SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_active = TRUE
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to deactivate card: %w", ErrNotFound)
	}
	return nil
}

// ResetYear zeroes the yearly load counter and records the new year.
func (r *CardRepository) ResetYear(ctx context.Context, id int64, year int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE cards SET total_loaded_this_year = 0, year_started = $2, updated_at = NOW()
		WHERE id = $1
	`, id, year)
	if err != nil {
		return fmt.Errorf("failed to reset card year: %w", err)
	}
	return nil
}

// ApplyLoad atomically adds amount to both the balance and the yearly total.
// Returns ErrConditionFailed when either would exceed the credit limit.
func (r *CardRepository) ApplyLoad(ctx context.Context, id int64, amount decimal.Decimal) (*models.Card, error) {
	card, err := scanCard(r.db.QueryRow(ctx, `
		UPDATE cards SET
			current_balance = current_balance + $2,
			total_loaded_this_year = total_loaded_this_year + $2,
			updated_at = NOW()
		WHERE id = $1
			AND current_balance + $2 <= credit_limit
			AND total_loaded_this_year + $2 <= credit_limit
		RETURNING `+cardColumns,
		id, amount))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to load card: %w", ErrConditionFailed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load card: %w", err)
	}
	return card, nil
}

// AdjustBalance atomically adds delta (which may be negative) to the balance.
// Returns ErrConditionFailed when the result would leave [0, credit_limit].
func (r *CardRepository) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (*models.Card, error) {
	card, err := scanCard(r.db.QueryRow(ctx, `
		UPDATE cards SET
			current_balance = current_balance + $2,
			updated_at = NOW()
		WHERE id = $1
			AND current_balance + $2 >= 0
			AND current_balance + $2 <= credit_limit
		RETURNING `+cardColumns,
		id, delta))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to adjust card balance: %w", ErrConditionFailed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust card balance: %w", err)
	}
	return card, nil
}

func scanCard(row pgx.Row) (*models.Card, error) {
	var card models.Card
	err := row.Scan(
		&card.ID, &card.UserID, &card.Name, &card.CardType, &card.LastFour, &card.IssuingBank, &card.Color,
		&card.ExpiryDate, &card.CreditLimit, &card.CurrentBalance, &card.TotalLoadedThisYear, &card.YearStarted,
		&card.IsActive, &card.CreatedAt, &card.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}
