package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/database"
	"gitlab.com/yelinaung/paywatch/internal/models"
	"gitlab.com/yelinaung/paywatch/internal/repository"
)

// CardStore is the card persistence the engine relies on. Lookups return
// repository.ErrNotFound; guarded updates return repository.ErrConditionFailed.
type CardStore interface {
	Create(ctx context.Context, card *models.Card) error
	GetByIDAndUser(ctx context.Context, id, userID int64) (*models.Card, error)
	GetForUpdate(ctx context.Context, id, userID int64) (*models.Card, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Card, error)
	Update(ctx context.Context, card *models.Card) (*models.Card, error)
	Deactivate(ctx context.Context, id, userID int64) error
	ResetYear(ctx context.Context, id int64, year int) error
	ApplyLoad(ctx context.Context, id int64, amount decimal.Decimal) (*models.Card, error)
	AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (*models.Card, error)
}

// TransactionStore is the transaction persistence the engine relies on.
type TransactionStore interface {
	Create(ctx context.Context, txn *models.Transaction) error
	GetByIDAndUser(ctx context.Context, id, userID int64) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID int64, filter models.TransactionFilter) ([]models.Transaction, error)
	Delete(ctx context.Context, id, userID int64) error
}

// Stores groups the stores bound to one connection or unit of work.
type Stores struct {
	Cards        CardStore
	Transactions TransactionStore
}

// Gateway gives the engine access to persistence. InTx runs fn in a unit of
// work that commits when fn returns nil and rolls back otherwise.
type Gateway interface {
	Stores() Stores
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// PostgresGateway is the Gateway backed by PostgreSQL repositories.
type PostgresGateway struct {
	db database.Conn
}

// NewPostgresGateway creates a gateway over a pool (or, in tests, a transaction).
func NewPostgresGateway(db database.Conn) *PostgresGateway {
	return &PostgresGateway{db: db}
}

// Stores returns stores that run each statement on its own.
func (g *PostgresGateway) Stores() Stores {
	return storesFor(g.db)
}

// InTx runs fn inside a database transaction.
func (g *PostgresGateway) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	return database.WithTx(ctx, g.db, func(tx pgx.Tx) error {
		return fn(ctx, storesFor(tx))
	})
}

func storesFor(db database.PGXDB) Stores {
	return Stores{
		Cards:        repository.NewCardRepository(db),
		Transactions: repository.NewTransactionRepository(db),
	}
}

var _ Gateway = (*PostgresGateway)(nil)
