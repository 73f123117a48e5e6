package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/paywatch/internal/database"
	"gitlab.com/yelinaung/paywatch/internal/models"
)

type txnFixture struct {
	cards *CardRepository
	txns  *TransactionRepository
	card  *models.Card
	ctx   context.Context
}

func setupTransactionTest(t *testing.T) txnFixture {
	t.Helper()

	tx := database.TestTx(t)
	ctx := context.Background()
	cards := NewCardRepository(tx)
	card := newTestCard(1, "1000", "500")
	require.NoError(t, cards.Create(ctx, card))

	return txnFixture{cards: cards, txns: NewTransactionRepository(tx), card: card, ctx: ctx}
}

func (f txnFixture) create(t *testing.T, txnType, category, amount string, date time.Time) *models.Transaction {
	t.Helper()
	usd := decimal.RequireFromString(amount)
	rate := decimal.RequireFromString("133.0")
	txn := &models.Transaction{
		UserID:          f.card.UserID,
		CardID:          f.card.ID,
		Type:            txnType,
		MerchantName:    "Netflix",
		AmountUSD:       usd,
		AmountNPR:       usd.Mul(rate).Round(2),
		ExchangeRate:    rate,
		Category:        category,
		TransactionDate: date,
	}
	require.NoError(t, f.txns.Create(f.ctx, txn))
	return txn
}

func TestTransactionRepository_CreateAndGet(t *testing.T) {
	f := setupTransactionTest(t)
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	txn := f.create(t, models.TransactionTypePurchase, "Streaming", "100", date)
	require.NotZero(t, txn.ID)
	require.False(t, txn.CreatedAt.IsZero())

	got, err := f.txns.GetByIDAndUser(f.ctx, txn.ID, 1)
	require.NoError(t, err)
	require.Equal(t, "Travel Card", got.CardName)
	require.Equal(t, models.TransactionTypePurchase, got.Type)
	require.True(t, decimal.RequireFromString("13300").Equal(got.AmountNPR))
	require.True(t, decimal.RequireFromString("133").Equal(got.ExchangeRate))
	require.Equal(t, date.Format(time.DateOnly), got.TransactionDate.Format(time.DateOnly))

	_, err = f.txns.GetByIDAndUser(f.ctx, txn.ID, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionRepository_ListByUser(t *testing.T) {
	f := setupTransactionTest(t)
	march := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	f.create(t, models.TransactionTypePurchase, "Streaming", "10", march)
	f.create(t, models.TransactionTypeSubscription, "Software & Cloud", "20", april)
	f.create(t, models.TransactionTypeRefund, "Streaming", "5", april)

	tests := []struct {
		name   string
		filter models.TransactionFilter
		want   int
	}{
		{"no filter", models.TransactionFilter{}, 3},
		{"by card", models.TransactionFilter{CardID: f.card.ID}, 3},
		{"by other card", models.TransactionFilter{CardID: f.card.ID + 1000}, 0},
		{"by category", models.TransactionFilter{Category: "Streaming"}, 2},
		{"by type", models.TransactionFilter{Type: models.TransactionTypeRefund}, 1},
		{"from date", models.TransactionFilter{From: april}, 2},
		{"to date", models.TransactionFilter{To: march}, 1},
		{"combined", models.TransactionFilter{Category: "Streaming", From: april}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns, err := f.txns.ListByUser(f.ctx, 1, tt.filter)
			require.NoError(t, err)
			require.Len(t, txns, tt.want)
		})
	}

	t.Run("newest first", func(t *testing.T) {
		txns, err := f.txns.ListByUser(f.ctx, 1, models.TransactionFilter{})
		require.NoError(t, err)
		require.Equal(t, "2026-04-01", txns[0].TransactionDate.Format(time.DateOnly))
		require.Equal(t, "2026-03-01", txns[2].TransactionDate.Format(time.DateOnly))
	})

	t.Run("other owner sees nothing", func(t *testing.T) {
		txns, err := f.txns.ListByUser(f.ctx, 2, models.TransactionFilter{})
		require.NoError(t, err)
		require.Empty(t, txns)
	})
}

func TestTransactionRepository_Delete(t *testing.T) {
	f := setupTransactionTest(t)
	txn := f.create(t, models.TransactionTypePurchase, "Streaming", "10", time.Now().UTC())

	err := f.txns.Delete(f.ctx, txn.ID, 2)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.txns.Delete(f.ctx, txn.ID, 1))

	_, err = f.txns.GetByIDAndUser(f.ctx, txn.ID, 1)
	require.ErrorIs(t, err, ErrNotFound)

	err = f.txns.Delete(f.ctx, txn.ID, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionRepository_Totals(t *testing.T) {
	f := setupTransactionTest(t)
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	f.create(t, models.TransactionTypePurchase, "Streaming", "10", day)
	f.create(t, models.TransactionTypeSubscription, "Streaming", "15", day)
	f.create(t, models.TransactionTypeFee, "Others", "2.50", day)
	f.create(t, models.TransactionTypeRefund, "Streaming", "100", day)
	f.create(t, models.TransactionTypePurchase, "Travel", "999", day.AddDate(0, 1, 0))

	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)

	t.Run("by category excludes out of range", func(t *testing.T) {
		totals, err := f.txns.TotalsByCategory(f.ctx, 1, from, to)
		require.NoError(t, err)
		require.Len(t, totals, 2)
		require.Equal(t, "Streaming", totals[0].Key)
		require.True(t, decimal.NewFromInt(125).Equal(totals[0].AmountUSD))
		require.Equal(t, 3, totals[0].Count)
		require.Equal(t, "Others", totals[1].Key)
		require.True(t, decimal.RequireFromString("332.50").Equal(totals[1].AmountNPR))
	})

	t.Run("by card", func(t *testing.T) {
		totals, err := f.txns.TotalsByCard(f.ctx, 1, from, to)
		require.NoError(t, err)
		require.Len(t, totals, 1)
		require.Equal(t, "Travel Card", totals[0].Key)
		require.True(t, decimal.RequireFromString("127.50").Equal(totals[0].AmountUSD))
		require.Equal(t, 4, totals[0].Count)
	})
}

func TestFilterClause(t *testing.T) {
	t.Parallel()

	where, args := filterClause(5, models.TransactionFilter{})
	require.Equal(t, "t.user_id = $1", where)
	require.Equal(t, []any{int64(5)}, args)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args = filterClause(5, models.TransactionFilter{CardID: 9, Type: "fee", From: from})
	require.Equal(t, "t.user_id = $1 AND t.card_id = $2 AND t.transaction_type = $3 AND t.transaction_date >= $4", where)
	require.Equal(t, []any{int64(5), int64(9), "fee", from}, args)
}
