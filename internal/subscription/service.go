// Package subscription tracks recurring charges billed to the owner's cards
// and projects their monthly and yearly cost.
package subscription

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/logger"
	"gitlab.com/yelinaung/paywatch/internal/models"
	"gitlab.com/yelinaung/paywatch/internal/repository"
)

var (
	ErrNotFound            = errors.New("subscription not found")
	ErrServiceNameRequired = errors.New("service name is required")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidCycle        = errors.New("invalid billing cycle")
	ErrInvalidStatus       = errors.New("invalid subscription status")
	ErrBillingDateInPast   = errors.New("next billing date cannot be in the past")
	ErrTrialEndInPast      = errors.New("trial end date cannot be in the past")
)

// trialWarningDays is how close a trial end must be to count as ending soon.
const trialWarningDays = 7

// weeksPerMonth converts weekly charges to a monthly figure.
var weeksPerMonth = decimal.RequireFromString("4.33")

// Store persists subscriptions.
type Store interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetByIDAndUser(ctx context.Context, id, userID int64) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID int64, status string) ([]models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
	Cancel(ctx context.Context, id, userID int64) error
	IncrementUsage(ctx context.Context, id, userID int64) (int, error)
}

// CardChecker resolves a card the owner may bill a subscription to.
type CardChecker interface {
	GetCard(ctx context.Context, cardID, ownerID int64) (*models.Card, error)
}

// Service manages subscriptions.
type Service struct {
	store Store
	cards CardChecker
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source used for date validation and countdowns.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a subscription service.
func NewService(store Store, cards CardChecker, opts ...Option) *Service {
	s := &Service{store: store, cards: cards, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInput describes a subscription to add.
type NewInput struct {
	CardID          int64
	ServiceName     string
	Category        string
	AmountUSD       decimal.Decimal
	BillingCycle    string
	NextBillingDate time.Time
	TrialEndDate    *time.Time
}

// UpdateInput changes the non-nil fields of a subscription.
type UpdateInput struct {
	ServiceName     *string
	Category        *string
	AmountUSD       *decimal.Decimal
	BillingCycle    *string
	NextBillingDate *time.Time
	Status          *string
}

// Summary is the projected cost of the owner's live subscriptions.
type Summary struct {
	TotalSubscriptions int
	MonthlyCostUSD     decimal.Decimal
	YearlyCostUSD      decimal.Decimal
	TrialsEndingSoon   []models.Subscription
}

// Add records a subscription on one of the owner's active cards. It starts
// as a trial when a trial end date is given.
func (s *Service) Add(ctx context.Context, ownerID int64, in NewInput) (*models.Subscription, error) {
	today := s.today()
	sub := &models.Subscription{
		UserID:          ownerID,
		CardID:          in.CardID,
		ServiceName:     strings.TrimSpace(in.ServiceName),
		Category:        strings.TrimSpace(in.Category),
		AmountUSD:       in.AmountUSD.Round(2),
		BillingCycle:    in.BillingCycle,
		NextBillingDate: in.NextBillingDate,
		TrialEndDate:    in.TrialEndDate,
		Status:          models.SubscriptionStatusActive,
	}
	if sub.TrialEndDate != nil {
		sub.Status = models.SubscriptionStatusTrial
		if dateOf(*sub.TrialEndDate).Before(today) {
			return nil, ErrTrialEndInPast
		}
	}
	if dateOf(sub.NextBillingDate).Before(today) {
		return nil, ErrBillingDateInPast
	}
	if err := validate(sub); err != nil {
		return nil, err
	}

	card, err := s.cards.GetCard(ctx, in.CardID, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}
	sub.CardName = card.Name
	sub.CardLastFour = card.LastFour

	logger.Log.Info().
		Str("user", logger.HashUserID(ownerID)).
		Int64("subscription_id", sub.ID).
		Str("billing_cycle", sub.BillingCycle).
		Msg("Subscription added")
	return sub, nil
}

// List returns the owner's subscriptions soonest renewal first. An empty
// status lists all of them.
func (s *Service) List(ctx context.Context, ownerID int64, status string) ([]models.Subscription, error) {
	if status != "" && !slices.Contains(models.SubscriptionStatuses, status) {
		return nil, ErrInvalidStatus
	}
	return s.store.ListByUser(ctx, ownerID, status)
}

// Get returns one subscription.
func (s *Service) Get(ctx context.Context, ownerID, subscriptionID int64) (*models.Subscription, error) {
	sub, err := s.store.GetByIDAndUser(ctx, subscriptionID, ownerID)
	if err != nil {
		return nil, lookupError(err)
	}
	return sub, nil
}

// Update applies the non-nil fields of in.
func (s *Service) Update(ctx context.Context, ownerID, subscriptionID int64, in UpdateInput) (*models.Subscription, error) {
	sub, err := s.Get(ctx, ownerID, subscriptionID)
	if err != nil {
		return nil, err
	}

	if in.ServiceName != nil {
		sub.ServiceName = strings.TrimSpace(*in.ServiceName)
	}
	if in.Category != nil {
		sub.Category = strings.TrimSpace(*in.Category)
	}
	if in.AmountUSD != nil {
		sub.AmountUSD = in.AmountUSD.Round(2)
	}
	if in.BillingCycle != nil {
		sub.BillingCycle = *in.BillingCycle
	}
	if in.NextBillingDate != nil {
		if dateOf(*in.NextBillingDate).Before(s.today()) {
			return nil, ErrBillingDateInPast
		}
		sub.NextBillingDate = *in.NextBillingDate
	}
	if in.Status != nil {
		if !slices.Contains(models.SubscriptionStatuses, *in.Status) {
			return nil, ErrInvalidStatus
		}
		sub.Status = *in.Status
	}
	if err := validate(sub); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, lookupError(err)
	}
	return sub, nil
}

// Cancel marks a subscription as cancelled. It stays listed.
func (s *Service) Cancel(ctx context.Context, ownerID, subscriptionID int64) error {
	if err := s.store.Cancel(ctx, subscriptionID, ownerID); err != nil {
		return lookupError(err)
	}
	logger.Log.Info().
		Str("user", logger.HashUserID(ownerID)).
		Int64("subscription_id", subscriptionID).
		Msg("Subscription cancelled")
	return nil
}

// IncrementUsage records one use of the subscribed service and returns the
// new count.
func (s *Service) IncrementUsage(ctx context.Context, ownerID, subscriptionID int64) (int, error) {
	count, err := s.store.IncrementUsage(ctx, subscriptionID, ownerID)
	if err != nil {
		return 0, lookupError(err)
	}
	return count, nil
}

// Summary projects the cost of the owner's active and trial subscriptions.
func (s *Service) Summary(ctx context.Context, ownerID int64) (*Summary, error) {
	subs, err := s.store.ListByUser(ctx, ownerID, "")
	if err != nil {
		return nil, err
	}

	today := s.today()
	out := &Summary{MonthlyCostUSD: decimal.Zero, YearlyCostUSD: decimal.Zero}
	for _, sub := range subs {
		if sub.Status != models.SubscriptionStatusActive && sub.Status != models.SubscriptionStatusTrial {
			continue
		}
		out.TotalSubscriptions++

		monthly, yearly := projectedCost(sub.AmountUSD, sub.BillingCycle)
		out.MonthlyCostUSD = out.MonthlyCostUSD.Add(monthly)
		out.YearlyCostUSD = out.YearlyCostUSD.Add(yearly)

		if days := sub.DaysUntilTrialEnd(today); days != nil && *days <= trialWarningDays {
			out.TrialsEndingSoon = append(out.TrialsEndingSoon, sub)
		}
	}
	out.MonthlyCostUSD = out.MonthlyCostUSD.Round(2)
	out.YearlyCostUSD = out.YearlyCostUSD.Round(2)
	return out, nil
}

func (s *Service) today() time.Time {
	return dateOf(s.now())
}

func projectedCost(amount decimal.Decimal, cycle string) (monthly, yearly decimal.Decimal) {
	switch cycle {
	case models.BillingCycleWeekly:
		return amount.Mul(weeksPerMonth), amount.Mul(decimal.NewFromInt(52))
	case models.BillingCycleQuarterly:
		return amount.Div(decimal.NewFromInt(3)), amount.Mul(decimal.NewFromInt(4))
	case models.BillingCycleYearly:
		return amount.Div(decimal.NewFromInt(12)), amount
	default:
		return amount, amount.Mul(decimal.NewFromInt(12))
	}
}

func validate(sub *models.Subscription) error {
	if sub.ServiceName == "" {
		return ErrServiceNameRequired
	}
	if sub.Category == "" {
		sub.Category = models.DefaultCategory
	}
	if !sub.AmountUSD.IsPositive() {
		return ErrInvalidAmount
	}
	if !slices.Contains(models.BillingCycles, sub.BillingCycle) {
		return ErrInvalidCycle
	}
	return nil
}

func lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
