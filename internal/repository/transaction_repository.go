package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/database"
	"gitlab.com/yelinaung/paywatch/internal/models"
)

const transactionColumns = `t.id, t.user_id, t.card_id, c.card_name, t.transaction_type, t.merchant_name,
	t.amount_usd, t.amount_npr, t.exchange_rate, t.category, t.description,
	t.transaction_date, t.is_recurring, t.created_at`

// TransactionRepository handles transaction database operations.
type TransactionRepository struct {
	db database.PGXDB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db database.PGXDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a transaction and fills in its ID and creation time.
func (r *TransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO transactions (user_id, card_id, transaction_type, merchant_name, amount_usd,
			amount_npr, exchange_rate, category, description, transaction_date, is_recurring)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, txn.UserID, txn.CardID, txn.Type, txn.MerchantName, txn.AmountUSD,
		txn.AmountNPR, txn.ExchangeRate, txn.Category, txn.Description, txn.TransactionDate, txn.IsRecurring,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetByIDAndUser retrieves a transaction owned by userID.
func (r *TransactionRepository) GetByIDAndUser(ctx context.Context, id, userID int64) (*models.Transaction, error) {
	txn, err := scanTransaction(r.db.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t JOIN cards c ON c.id = t.card_id
		WHERE t.id = $1 AND t.user_id = $2
	`, id, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListByUser retrieves a user's transactions matching filter, newest first.
func (r *TransactionRepository) ListByUser(
	ctx context.Context,
	userID int64,
	filter models.TransactionFilter,
) ([]models.Transaction, error) {
	where, args := filterClause(userID, filter)
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t JOIN cards c ON c.id = t.card_id
		WHERE `+where+`
		ORDER BY t.transaction_date DESC, t.created_at DESC, t.id DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}

// Delete removes a transaction owned by userID.
func (r *TransactionRepository) Delete(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete transaction: %w", ErrNotFound)
	}
	return nil
}

// CategoryTotal is the sum of one group of transactions.
type CategoryTotal struct {
	Key       string
	AmountUSD decimal.Decimal
	AmountNPR decimal.Decimal
	Count     int
}

// TotalsByCategory sums a user's transactions dated in [from, to] per category.
func (r *TransactionRepository) TotalsByCategory(
	ctx context.Context,
	userID int64,
	from, to time.Time,
) ([]CategoryTotal, error) {
	return r.totals(ctx, "t.category", "t.category", userID, from, to)
}

// TotalsByCard sums a user's transactions dated in [from, to] per card, keyed by card name.
func (r *TransactionRepository) TotalsByCard(
	ctx context.Context,
	userID int64,
	from, to time.Time,
) ([]CategoryTotal, error) {
	return r.totals(ctx, "c.card_name", "c.id, c.card_name", userID, from, to)
}

func (r *TransactionRepository) totals(
	ctx context.Context,
	key, groupBy string,
	userID int64,
	from, to time.Time,
) ([]CategoryTotal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+key+`, COALESCE(SUM(t.amount_usd), 0), COALESCE(SUM(t.amount_npr), 0), COUNT(*)
		FROM transactions t JOIN cards c ON c.id = t.card_id
		WHERE t.user_id = $1 AND t.transaction_date >= $2 AND t.transaction_date <= $3
		GROUP BY `+groupBy+`
		ORDER BY 2 DESC, 1
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Key, &t.AmountUSD, &t.AmountNPR, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating totals: %w", err)
	}
	return totals, nil
}

func filterClause(userID int64, filter models.TransactionFilter) (string, []any) {
	conds := []string{"t.user_id = $1"}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.CardID != 0 {
		add("t.card_id = $%d", filter.CardID)
	}
	if filter.Category != "" {
		add("t.category = $%d", filter.Category)
	}
	if filter.Type != "" {
		add("t.transaction_type = $%d", filter.Type)
	}
	if !filter.From.IsZero() {
		add("t.transaction_date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("t.transaction_date <= $%d", filter.To)
	}
	return strings.Join(conds, " AND "), args
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var txn models.Transaction
	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.CardID, &txn.CardName, &txn.Type, &txn.MerchantName,
		&txn.AmountUSD, &txn.AmountNPR, &txn.ExchangeRate, &txn.Category, &txn.Description,
		&txn.TransactionDate, &txn.IsRecurring, &txn.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
