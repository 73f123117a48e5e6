// Package models defines the domain entities for the card ledger.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency all card balances and limits are kept in.
const BaseCurrency = "USD"

// LocalCurrency is the currency transactions are additionally recorded in.
const LocalCurrency = "NPR"

// DefaultCardColor is used when a card is registered without a color.
const DefaultCardColor = "#10b981"

// DefaultCategory is used when a transaction has no category and none can be suggested.
const DefaultCategory = "Others"

// Transaction types. Every type other than TransactionTypeRefund debits the card.
const (
	TransactionTypePurchase     = "purchase"
	TransactionTypeRefund       = "refund"
	TransactionTypeSubscription = "subscription"
	TransactionTypeWithdrawal   = "withdrawal"
	TransactionTypeFee          = "fee"
)

// TransactionTypes lists the accepted transaction types.
var TransactionTypes = []string{
	TransactionTypePurchase,
	TransactionTypeRefund,
	TransactionTypeSubscription,
	TransactionTypeWithdrawal,
	TransactionTypeFee,
}

// TransactionCategories lists the categories offered for suggestion.
var TransactionCategories = []string{
	"Food & Dining",
	"Groceries",
	"Shopping",
	"Entertainment",
	"Streaming",
	"Software & Cloud",
	"Travel",
	"Transportation",
	"Utilities",
	"Education",
	"Health",
	DefaultCategory,
}

// Subscription statuses.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusTrial     = "trial"
	SubscriptionStatusPaused    = "paused"
	SubscriptionStatusCancelled = "cancelled"
)

// Billing cycles.
const (
	BillingCycleWeekly    = "weekly"
	BillingCycleMonthly   = "monthly"
	BillingCycleQuarterly = "quarterly"
	BillingCycleYearly    = "yearly"
)

// SubscriptionStatuses lists the accepted subscription statuses.
var SubscriptionStatuses = []string{
	SubscriptionStatusActive,
	SubscriptionStatusTrial,
	SubscriptionStatusPaused,
	SubscriptionStatusCancelled,
}

// BillingCycles lists the accepted billing cycles.
var BillingCycles = []string{
	BillingCycleWeekly,
	BillingCycleMonthly,
	BillingCycleQuarterly,
	BillingCycleYearly,
}

// Alert types.
const (
	AlertTypeCreditLimit = "credit_limit"
)

// Card is a prepaid card whose balance is loaded up to its credit limit.
type Card struct {
	ID                  int64
	UserID              int64
	Name                string
	CardType            string
	LastFour            string
	IssuingBank         string
	Color               string
	ExpiryDate          string
	CreditLimit         decimal.Decimal
	CurrentBalance      decimal.Decimal
	TotalLoadedThisYear decimal.Decimal
	YearStarted         int
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Utilization returns the loaded share of the credit limit in percent.
func (c *Card) Utilization() decimal.Decimal {
	if !c.CreditLimit.IsPositive() {
		return decimal.Zero
	}
	return c.CurrentBalance.Div(c.CreditLimit).Mul(decimal.NewFromInt(100)).Round(2)
}

// AvailableCredit returns how much more can be held on the card.
func (c *Card) AvailableCredit() decimal.Decimal {
	return c.CreditLimit.Sub(c.CurrentBalance)
}

// Transaction is a posted card transaction. AmountNPR and ExchangeRate
// are frozen at posting time.
type Transaction struct {
	ID              int64
	UserID          int64
	CardID          int64
	CardName        string
	Type            string
	MerchantName    string
	AmountUSD       decimal.Decimal
	AmountNPR       decimal.Decimal
	ExchangeRate    decimal.Decimal
	Category        string
	Description     string
	TransactionDate time.Time
	IsRecurring     bool
	CreatedAt       time.Time
}

// IsCredit reports whether the transaction adds to the card balance.
func (t *Transaction) IsCredit() bool {
	return t.Type == TransactionTypeRefund
}

// TransactionFilter narrows a transaction listing. Zero values are ignored.
type TransactionFilter struct {
	CardID   int64
	Category string
	Type     string
	From     time.Time
	To       time.Time
}

// ExchangeRateSnapshot is the USD to NPR rate recorded for one calendar date.
type ExchangeRateSnapshot struct {
	FetchDate time.Time
	Rate      decimal.Decimal
}

// Alert is a user-facing notification.
type Alert struct {
	ID        int64
	UserID    int64
	Type      string
	Title     string
	Message   string
	RelatedID *int64
	IsRead    bool
	CreatedAt time.Time
}

// Subscription is a recurring charge billed to one of the owner's cards.
type Subscription struct {
	ID              int64
	UserID          int64
	CardID          int64
	CardName        string
	CardLastFour    string
	ServiceName     string
	Category        string
	AmountUSD       decimal.Decimal
	BillingCycle    string
	NextBillingDate time.Time
	TrialEndDate    *time.Time
	Status          string
	UsageCount      int
	CreatedAt       time.Time
}

// DaysUntilRenewal returns the whole days from today to the next billing
// date, never negative.
func (s *Subscription) DaysUntilRenewal(today time.Time) int {
	return daysUntil(today, s.NextBillingDate)
}

// DaysUntilTrialEnd returns the whole days left in the trial, or nil when
// the subscription has no trial.
func (s *Subscription) DaysUntilTrialEnd(today time.Time) *int {
	if s.TrialEndDate == nil {
		return nil
	}
	d := daysUntil(today, *s.TrialEndDate)
	return &d
}

func daysUntil(today, date time.Time) int {
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return max(0, int(to.Sub(from).Hours()/24))
}
