// Package exchange resolves the daily USD to NPR exchange rate.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/models"
)

var (
	errRateMissing            = errors.New("conversion rate missing in response")
	errInvalidNonPositiveRate = errors.New("conversion rate must be positive")
)

// RateProvider fetches the current USD to NPR rate from a remote source.
type RateProvider interface {
	LatestRate(ctx context.Context) (decimal.Decimal, error)
}

// RateStore persists one rate snapshot per calendar date. Lookups with no
// matching row return an error wrapping repository.ErrNotFound.
type RateStore interface {
	GetByDate(ctx context.Context, date time.Time) (*models.ExchangeRateSnapshot, error)
	GetLatest(ctx context.Context) (*models.ExchangeRateSnapshot, error)
	Upsert(ctx context.Context, date time.Time, rate decimal.Decimal) error
}

func validateRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return errInvalidNonPositiveRate
	}
	return nil
}
