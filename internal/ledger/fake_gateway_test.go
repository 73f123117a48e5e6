package ledger

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/models"
	"gitlab.com/yelinaung/paywatch/internal/repository"
)

// memGateway is an in-memory Gateway. Units of work are serialized and
// rolled back by restoring a snapshot.
type memGateway struct {
	mu     sync.Mutex
	cards  map[int64]models.Card
	txns   map[int64]models.Transaction
	nextID int64

	// failOn makes the named store method fail once inside a unit of work.
	failOn  string
	commits int
}

var errInjected = errors.New("injected failure")

func newMemGateway() *memGateway {
	return &memGateway{
		cards: make(map[int64]models.Card),
		txns:  make(map[int64]models.Transaction),
	}
}

func (g *memGateway) Stores() Stores {
	return Stores{
		Cards:        &memCards{g: g, locking: true},
		Transactions: &memTxns{g: g, locking: true},
	}
}

func (g *memGateway) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cards := maps.Clone(g.cards)
	txns := maps.Clone(g.txns)
	nextID := g.nextID

	err := fn(ctx, Stores{
		Cards:        &memCards{g: g},
		Transactions: &memTxns{g: g},
	})
	if err != nil {
		g.cards, g.txns, g.nextID = cards, txns, nextID
		return err
	}
	g.commits++
	return nil
}

// seed stores a card directly and returns its ID.
func (g *memGateway) seed(card models.Card) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	card.ID = g.nextID
	if card.UserID == 0 {
		card.UserID = 1
	}
	card.IsActive = true
	g.cards[card.ID] = card
	return card.ID
}

func (g *memGateway) card(id int64) models.Card {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cards[id]
}

func (g *memGateway) txnCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.txns)
}

func (g *memGateway) fail(method string) error {
	if g.failOn == method {
		g.failOn = ""
		return errInjected
	}
	return nil
}

type memCards struct {
	g       *memGateway
	locking bool
}

func (s *memCards) lock() func() {
	if !s.locking {
		return func() {}
	}
	s.g.mu.Lock()
	return s.g.mu.Unlock
}

func (s *memCards) Create(_ context.Context, card *models.Card) error {
	defer s.lock()()
	s.g.nextID++
	card.ID = s.g.nextID
	card.IsActive = true
	card.CreatedAt = time.Now()
	card.UpdatedAt = card.CreatedAt
	s.g.cards[card.ID] = *card
	return nil
}

func (s *memCards) GetByIDAndUser(_ context.Context, id, userID int64) (*models.Card, error) {
	defer s.lock()()
	card, ok := s.g.cards[id]
	if !ok || card.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &card, nil
}

func (s *memCards) GetForUpdate(ctx context.Context, id, userID int64) (*models.Card, error) {
	return s.GetByIDAndUser(ctx, id, userID)
}

func (s *memCards) ListByUser(_ context.Context, userID int64) ([]models.Card, error) {
	defer s.lock()()
	var cards []models.Card
	for _, c := range s.g.cards {
		if c.UserID == userID && c.IsActive {
			cards = append(cards, c)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID > cards[j].ID })
	return cards, nil
}

func (s *memCards) Update(_ context.Context, card *models.Card) (*models.Card, error) {
	defer s.lock()()
	if err := s.g.fail("UpdateCard"); err != nil {
		return nil, err
	}
	stored, ok := s.g.cards[card.ID]
	if !ok || stored.UserID != card.UserID || !stored.IsActive ||
		stored.CurrentBalance.GreaterThan(card.CreditLimit) ||
		stored.TotalLoadedThisYear.GreaterThan(card.CreditLimit) {
		return nil, repository.ErrConditionFailed
	}
	stored.Name = card.Name
	stored.CardType = card.CardType
	stored.LastFour = card.LastFour
	stored.IssuingBank = card.IssuingBank
	stored.Color = card.Color
	stored.ExpiryDate = card.ExpiryDate
	stored.CreditLimit = card.CreditLimit
	s.g.cards[card.ID] = stored
	return &stored, nil
}

func (s *memCards) Deactivate(_ context.Context, id, userID int64) error {
	defer s.lock()()
	card, ok := s.g.cards[id]
	if !ok || card.UserID != userID || !card.IsActive {
		return repository.ErrNotFound
	}
	card.IsActive = false
	s.g.cards[id] = card
	return nil
}

func (s *memCards) ResetYear(_ context.Context, id int64, year int) error {
	defer s.lock()()
	if err := s.g.fail("ResetYear"); err != nil {
		return err
	}
	card := s.g.cards[id]
	card.TotalLoadedThisYear = decimal.Zero
	card.YearStarted = year
	s.g.cards[id] = card
	return nil
}

func (s *memCards) ApplyLoad(_ context.Context, id int64, amount decimal.Decimal) (*models.Card, error) {
	defer s.lock()()
	if err := s.g.fail("ApplyLoad"); err != nil {
		return nil, err
	}
	card := s.g.cards[id]
	balance := card.CurrentBalance.Add(amount)
	total := card.TotalLoadedThisYear.Add(amount)
	if balance.GreaterThan(card.CreditLimit) || total.GreaterThan(card.CreditLimit) {
		return nil, repository.ErrConditionFailed
	}
	card.CurrentBalance = balance
	card.TotalLoadedThisYear = total
	s.g.cards[id] = card
	return &card, nil
}

func (s *memCards) AdjustBalance(_ context.Context, id int64, delta decimal.Decimal) (*models.Card, error) {
	defer s.lock()()
	if err := s.g.fail("AdjustBalance"); err != nil {
		return nil, err
	}
	card := s.g.cards[id]
	balance := card.CurrentBalance.Add(delta)
	if balance.IsNegative() || balance.GreaterThan(card.CreditLimit) {
		return nil, repository.ErrConditionFailed
	}
	card.CurrentBalance = balance
	s.g.cards[id] = card
	return &card, nil
}

type memTxns struct {
	g       *memGateway
	locking bool
}

func (s *memTxns) lock() func() {
	if !s.locking {
		return func() {}
	}
	s.g.mu.Lock()
	return s.g.mu.Unlock
}

func (s *memTxns) Create(_ context.Context, txn *models.Transaction) error {
	defer s.lock()()
	if err := s.g.fail("CreateTransaction"); err != nil {
		return err
	}
	s.g.nextID++
	txn.ID = s.g.nextID
	txn.CreatedAt = time.Now()
	s.g.txns[txn.ID] = *txn
	return nil
}

func (s *memTxns) GetByIDAndUser(_ context.Context, id, userID int64) (*models.Transaction, error) {
	defer s.lock()()
	txn, ok := s.g.txns[id]
	if !ok || txn.UserID != userID {
		return nil, repository.ErrNotFound
	}
	txn.CardName = s.g.cards[txn.CardID].Name
	return &txn, nil
}

func (s *memTxns) ListByUser(_ context.Context, userID int64, filter models.TransactionFilter) ([]models.Transaction, error) {
	defer s.lock()()
	var txns []models.Transaction
	for _, t := range s.g.txns {
		if t.UserID != userID {
			continue
		}
		if filter.CardID != 0 && t.CardID != filter.CardID {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		txns = append(txns, t)
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].ID > txns[j].ID })
	return txns, nil
}

func (s *memTxns) Delete(_ context.Context, id, userID int64) error {
	defer s.lock()()
	txn, ok := s.g.txns[id]
	if !ok || txn.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.g.txns, id)
	return nil
}

var _ Gateway = (*memGateway)(nil)

type fixedRate decimal.Decimal

func (r fixedRate) GetLatestRate(context.Context) decimal.Decimal {
	return decimal.Decimal(r)
}

func rate(s string) fixedRate {
	return fixedRate(decimal.RequireFromString(s))
}

func fixedClock(year int) func() time.Time {
	return func() time.Time {
		return time.Date(year, 6, 15, 12, 0, 0, 0, time.UTC)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
