package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrCardNotFound        = errors.New("card not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrYearlyLimitExceeded = errors.New("yearly limit exceeded")
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
	ErrLimitBelowUsage     = errors.New("credit limit below current usage")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidType         = errors.New("transaction type is required")
)

// LimitKind says which limit a LimitError refers to.
type LimitKind string

const (
	YearlyLimitExceeded LimitKind = "yearly_limit_exceeded"
	CreditLimitExceeded LimitKind = "credit_limit_exceeded"
	LimitBelowUsage     LimitKind = "limit_below_usage"
)

// LimitError reports a rejected load, credit or limit change. Remaining is
// how much more can still be added under the exceeded limit.
type LimitError struct {
	Kind      LimitKind
	Remaining decimal.Decimal
	Limit     decimal.Decimal
	Current   decimal.Decimal
}

func (e *LimitError) Error() string {
	switch e.Kind {
	case YearlyLimitExceeded:
		return fmt.Sprintf("Yearly limit exceeded. You can only load %s more this year (Yearly limit: %s)",
			usd(e.Remaining), usd(e.Limit))
	case LimitBelowUsage:
		return fmt.Sprintf("Credit limit %s is below what the card already holds or has loaded this year (%s)",
			usd(e.Limit), usd(e.Current))
	}
	return fmt.Sprintf("Cannot exceed card limit. You can load maximum %s more (Current: %s, Limit: %s)",
		usd(e.Remaining), usd(e.Current), usd(e.Limit))
}

// Unwrap lets errors.Is match the sentinel for Kind.
func (e *LimitError) Unwrap() error {
	switch e.Kind {
	case YearlyLimitExceeded:
		return ErrYearlyLimitExceeded
	case LimitBelowUsage:
		return ErrLimitBelowUsage
	}
	return ErrCreditLimitExceeded
}

// BalanceError reports a debit larger than the card balance.
type BalanceError struct {
	Balance decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("Insufficient balance on this card. Card balance: %s. Please load this card or use another card.",
		usd(e.Balance))
}

func (e *BalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

func usd(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
