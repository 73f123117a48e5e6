// Package report summarizes a user's spending over a date range.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/models"
	"gitlab.com/yelinaung/paywatch/internal/repository"
)

// recentTransactions is how many transactions a dashboard shows.
const recentTransactions = 10

// TotalsStore provides grouped transaction totals.
type TotalsStore interface {
	TotalsByCategory(ctx context.Context, userID int64, from, to time.Time) ([]repository.CategoryTotal, error)
	TotalsByCard(ctx context.Context, userID int64, from, to time.Time) ([]repository.CategoryTotal, error)
}

// LedgerReader lists the owner's cards and transactions.
type LedgerReader interface {
	ListCards(ctx context.Context, ownerID int64) ([]models.Card, error)
	ListTransactions(ctx context.Context, ownerID int64, filter models.TransactionFilter) ([]models.Transaction, error)
}

// Breakdown is the total of one category or card.
type Breakdown struct {
	Name      string
	AmountUSD decimal.Decimal
	AmountNPR decimal.Decimal
	Count     int
}

// Summary is a user's spending between From and To inclusive.
// Breakdowns are sorted by USD amount, largest first.
type Summary struct {
	From       time.Time
	To         time.Time
	TotalUSD   decimal.Decimal
	TotalNPR   decimal.Decimal
	Count      int
	ByCategory []Breakdown
	ByCard     []Breakdown
}

// Open-ended ranges are clamped to these dates.
var (
	minDate = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Totals are the balance figures summed over a user's active cards.
type Totals struct {
	BalanceUSD   decimal.Decimal
	LimitUSD     decimal.Decimal
	AvailableUSD decimal.Decimal
	CardCount    int
}

// Dashboard is a user's cards, their totals, the latest transactions and
// the month-to-date spending summary.
type Dashboard struct {
	Cards              []models.Card
	Totals             Totals
	RecentTransactions []models.Transaction
	MonthToDate        *Summary
}

// ErrNoLedger is returned by Dashboard when the service has no ledger.
var ErrNoLedger = errors.New("report service has no ledger")

// Service builds spending summaries.
type Service struct {
	store  TotalsStore
	ledger LedgerReader
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLedger enables Dashboard.
func WithLedger(l LedgerReader) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

// WithClock sets the time source that decides the current month.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a report service.
func NewService(store TotalsStore, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dashboard composes the owner's cards and their totals with the most recent
// transactions and a summary from the first of the month to today.
func (s *Service) Dashboard(ctx context.Context, ownerID int64) (*Dashboard, error) {
	if s.ledger == nil {
		return nil, ErrNoLedger
	}

	cards, err := s.ledger.ListCards(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	txns, err := s.ledger.ListTransactions(ctx, ownerID, models.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	if len(txns) > recentTransactions {
		txns = txns[:recentTransactions]
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	summary, err := s.Summary(ctx, ownerID, monthStart, today)
	if err != nil {
		return nil, err
	}

	totals := Totals{CardCount: len(cards)}
	for _, c := range cards {
		totals.BalanceUSD = totals.BalanceUSD.Add(c.CurrentBalance)
		totals.LimitUSD = totals.LimitUSD.Add(c.CreditLimit)
	}
	totals.AvailableUSD = totals.LimitUSD.Sub(totals.BalanceUSD)

	return &Dashboard{
		Cards:              cards,
		Totals:             totals,
		RecentTransactions: txns,
		MonthToDate:        summary,
	}, nil
}

// Summary totals the owner's transactions dated in [from, to]. A zero bound
// leaves that side of the range open.
func (s *Service) Summary(ctx context.Context, ownerID int64, from, to time.Time) (*Summary, error) {
	if from.IsZero() {
		from = minDate
	}
	if to.IsZero() {
		to = maxDate
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is before %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	byCategory, err := s.store.TotalsByCategory(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	byCard, err := s.store.TotalsByCard(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		From:       from,
		To:         to,
		ByCategory: toBreakdowns(byCategory),
		ByCard:     toBreakdowns(byCard),
	}
	for _, b := range summary.ByCategory {
		summary.TotalUSD = summary.TotalUSD.Add(b.AmountUSD)
		summary.TotalNPR = summary.TotalNPR.Add(b.AmountNPR)
		summary.Count += b.Count
	}
	return summary, nil
}

func toBreakdowns(totals []repository.CategoryTotal) []Breakdown {
	out := make([]Breakdown, 0, len(totals))
	for _, t := range totals {
		out = append(out, Breakdown{
			Name:      t.Key,
			AmountUSD: t.AmountUSD,
			AmountNPR: t.AmountNPR,
			Count:     t.Count,
		})
	}
	return out
}
