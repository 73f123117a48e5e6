package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/models"
	"pgregory.net/rapid"
)

// cents draws a positive amount with two decimal places.
func cents(t *rapid.T, label string, maxCents int64) decimal.Decimal {
	return decimal.New(rapid.Int64Range(1, maxCents).Draw(t, label), -2)
}

func checkCardInvariants(t *rapid.T, c models.Card) {
	if c.CurrentBalance.IsNegative() || c.CurrentBalance.GreaterThan(c.CreditLimit) {
		t.Fatalf("balance %s outside [0, %s]", c.CurrentBalance, c.CreditLimit)
	}
	if c.TotalLoadedThisYear.IsNegative() || c.TotalLoadedThisYear.GreaterThan(c.CreditLimit) {
		t.Fatalf("yearly total %s outside [0, %s]", c.TotalLoadedThisYear, c.CreditLimit)
	}
}

func TestEngine_InvariantsHoldUnderRandomOperations(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		year := 2026
		clock := func() time.Time { return time.Date(year, 3, 1, 0, 0, 0, 0, time.UTC) }

		gw := newMemGateway()
		engine := NewEngine(gw, rate("133.0"), WithClock(clock))

		limit := decimal.New(rapid.Int64Range(100, 500_000).Draw(t, "limit"), -2)
		initial := decimal.New(rapid.Int64Range(0, limit.Shift(2).IntPart()).Draw(t, "initial"), -2)
		c, err := engine.AddCard(ctx, 1, NewCardInput{Name: "Prop", CreditLimit: limit, InitialBalance: initial})
		if err != nil {
			t.Fatalf("add card: %v", err)
		}

		var posted []int64
		maxCents := limit.Shift(2).IntPart() + 100
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch op := rapid.SampledFrom([]string{"load", "purchase", "refund", "delete", "newyear"}).Draw(t, "op"); op {
			case "load":
				_, err = engine.LoadBalance(ctx, c.ID, 1, cents(t, "amount", maxCents))
				if err != nil && !errors.Is(err, ErrYearlyLimitExceeded) && !errors.Is(err, ErrCreditLimitExceeded) {
					t.Fatalf("load: %v", err)
				}
			case "purchase", "refund":
				txn, err := engine.PostTransaction(ctx, PostTransactionInput{
					CardID: c.ID, OwnerID: 1, Type: op, AmountUSD: cents(t, "amount", maxCents),
				})
				switch {
				case err == nil:
					posted = append(posted, txn.ID)
				case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrCreditLimitExceeded):
				default:
					t.Fatalf("post: %v", err)
				}
			case "delete":
				if len(posted) == 0 {
					continue
				}
				idx := rapid.IntRange(0, len(posted)-1).Draw(t, "idx")
				ok, err := engine.DeleteTransaction(ctx, posted[idx], 1)
				switch {
				case ok:
					posted = append(posted[:idx], posted[idx+1:]...)
				case errors.Is(err, ErrInsufficientBalance):
				default:
					t.Fatalf("delete: %v", err)
				}
			case "newyear":
				year++
			}

			checkCardInvariants(t, gw.card(c.ID))
		}
	})
}

func TestEngine_LimitInfoIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		gw := newMemGateway()
		engine := NewEngine(gw, rate("133.0"), WithClock(fixedClock(2026)))

		limit := rapid.Int64Range(1, 10_000).Draw(t, "limit")
		balance := rapid.Int64Range(0, limit).Draw(t, "balance")
		total := rapid.Int64Range(0, limit).Draw(t, "total")
		id := gw.seed(models.Card{
			UserID:              1,
			CreditLimit:         decimal.NewFromInt(limit),
			CurrentBalance:      decimal.NewFromInt(balance),
			TotalLoadedThisYear: decimal.NewFromInt(total),
			YearStarted:         rapid.IntRange(2020, 2026).Draw(t, "year"),
		})
		before := gw.card(id)

		first, err := engine.GetLimitInfo(ctx, id, 1)
		if err != nil {
			t.Fatalf("limit info: %v", err)
		}
		second, err := engine.GetLimitInfo(ctx, id, 1)
		if err != nil {
			t.Fatalf("limit info: %v", err)
		}

		if !first.AvailableToLoad.Equal(second.AvailableToLoad) ||
			!first.RemainingYearlyLimit.Equal(second.RemainingYearlyLimit) {
			t.Fatalf("limit info changed between reads: %+v vs %+v", first, second)
		}
		if gw.card(id) != before {
			t.Fatalf("limit info mutated the card")
		}
		want := decimal.Min(first.RemainingYearlyLimit, first.YearlyLimit.Sub(first.CurrentBalance))
		if !first.AvailableToLoad.Equal(want) {
			t.Fatalf("available %s, want %s", first.AvailableToLoad, want)
		}
	})
}

func TestEngine_RolloverRestoresFullYearlyLimit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		gw := newMemGateway()
		engine := NewEngine(gw, rate("133.0"), WithClock(fixedClock(2026)))

		limit := rapid.Int64Range(2, 10_000).Draw(t, "limit")
		balance := rapid.Int64Range(0, limit-1).Draw(t, "balance")
		id := gw.seed(models.Card{
			UserID:              1,
			CreditLimit:         decimal.NewFromInt(limit),
			CurrentBalance:      decimal.NewFromInt(balance),
			TotalLoadedThisYear: decimal.NewFromInt(rapid.Int64Range(0, limit).Draw(t, "total")),
			YearStarted:         rapid.IntRange(2000, 2025).Draw(t, "year"),
		})

		amount := decimal.NewFromInt(rapid.Int64Range(1, limit-balance).Draw(t, "amount"))
		res, err := engine.LoadBalance(ctx, id, 1, amount)
		if err != nil {
			t.Fatalf("load after rollover: %v", err)
		}
		if want := decimal.NewFromInt(limit).Sub(amount); !res.RemainingYearlyLimit.Equal(want) {
			t.Fatalf("remaining %s, want %s", res.RemainingYearlyLimit, want)
		}
		if stored := gw.card(id); stored.YearStarted != 2026 {
			t.Fatalf("year_started %d, want 2026", stored.YearStarted)
		}
	})
}
