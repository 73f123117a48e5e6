// Package ledger keeps card balances and yearly load totals consistent with
// the transactions posted against them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/logger"
	"gitlab.com/yelinaung/paywatch/internal/models"
	"gitlab.com/yelinaung/paywatch/internal/repository"
)

// ErrCardNameRequired is returned by AddCard when the card has no name.
var ErrCardNameRequired = errors.New("card name is required")

// rateScale matches the precision exchange rates are stored with, so the
// frozen rate always reproduces AmountNPR.
const rateScale = 4

// RateSource supplies the USD to NPR rate used when posting transactions.
type RateSource interface {
	GetLatestRate(ctx context.Context) decimal.Decimal
}

// Observer is told about a card's state after a committed balance change.
type Observer interface {
	CardUpdated(ctx context.Context, card *models.Card) error
}

// CategorySuggester picks a category for a merchant from the given list.
type CategorySuggester interface {
	SuggestCategory(ctx context.Context, merchant string, categories []string) (string, error)
}

// Engine implements the card ledger operations.
type Engine struct {
	gateway   Gateway
	rates     RateSource
	now       func() time.Time
	observers []Observer
	suggester CategorySuggester
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for year rollover and default transaction
// dates. The returned time's location decides the calendar year.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithObserver registers an observer for committed balance changes.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithCategorySuggester sets the suggester used for uncategorized transactions.
func WithCategorySuggester(s CategorySuggester) Option {
	return func(e *Engine) {
		e.suggester = s
	}
}

// NewEngine creates a ledger engine.
func NewEngine(gateway Gateway, rates RateSource, opts ...Option) *Engine {
	e := &Engine{
		gateway: gateway,
		rates:   rates,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadResult is the outcome of a successful load.
type LoadResult struct {
	NewBalance           decimal.Decimal
	RemainingYearlyLimit decimal.Decimal
}

// LimitInfo describes how much more a card can be loaded.
type LimitInfo struct {
	YearlyLimit          decimal.Decimal
	TotalLoadedThisYear  decimal.Decimal
	RemainingYearlyLimit decimal.Decimal
	CurrentBalance       decimal.Decimal
	AvailableToLoad      decimal.Decimal
}

// NewCardInput holds the fields of a card being registered.
type NewCardInput struct {
	Name           string
	CardType       string
	LastFour       string
	IssuingBank    string
	Color          string
	ExpiryDate     string
	CreditLimit    decimal.Decimal
	InitialBalance decimal.Decimal
}

// UpdateCardInput holds the card fields being changed. Nil fields are kept.
type UpdateCardInput struct {
	Name        *string
	CardType    *string
	LastFour    *string
	IssuingBank *string
	Color       *string
	ExpiryDate  *string
	CreditLimit *decimal.Decimal
}

// PostTransactionInput holds the fields of a transaction being posted.
type PostTransactionInput struct {
	CardID          int64
	OwnerID         int64
	Type            string
	AmountUSD       decimal.Decimal
	MerchantName    string
	Category        string
	Description     string
	TransactionDate time.Time
	IsRecurring     bool
}

// AddCard registers a card. The initial balance counts as loaded this year.
func (e *Engine) AddCard(ctx context.Context, ownerID int64, in NewCardInput) (*models.Card, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrCardNameRequired
	}
	limit := in.CreditLimit.Round(2)
	balance := in.InitialBalance.Round(2)
	if !limit.IsPositive() || balance.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if balance.GreaterThan(limit) {
		return nil, &LimitError{Kind: CreditLimitExceeded, Remaining: limit, Limit: limit, Current: decimal.Zero}
	}

	color := in.Color
	if color == "" {
		color = models.DefaultCardColor
	}
	card := &models.Card{
		UserID:              ownerID,
		Name:                name,
		CardType:            in.CardType,
		LastFour:            in.LastFour,
		IssuingBank:         in.IssuingBank,
		Color:               color,
		ExpiryDate:          in.ExpiryDate,
		CreditLimit:         limit,
		CurrentBalance:      balance,
		TotalLoadedThisYear: balance,
		YearStarted:         e.now().Year(),
	}
	if err := e.gateway.Stores().Cards.Create(ctx, card); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("user", logger.HashUserID(ownerID)).
		Int64("card_id", card.ID).
		Msg("Card added")
	return card, nil
}

// GetCard returns an active card owned by ownerID.
func (e *Engine) GetCard(ctx context.Context, cardID, ownerID int64) (*models.Card, error) {
	card, err := e.gateway.Stores().Cards.GetByIDAndUser(ctx, cardID, ownerID)
	if err != nil {
		return nil, cardLookupError(err)
	}
	if !card.IsActive {
		return nil, ErrCardNotFound
	}
	return card, nil
}

// ListCards returns the owner's active cards.
func (e *Engine) ListCards(ctx context.Context, ownerID int64) ([]models.Card, error) {
	return e.gateway.Stores().Cards.ListByUser(ctx, ownerID)
}

// DeactivateCard soft-deletes a card. Its transactions are kept.
func (e *Engine) DeactivateCard(ctx context.Context, cardID, ownerID int64) error {
	if err := e.gateway.Stores().Cards.Deactivate(ctx, cardID, ownerID); err != nil {
		return cardLookupError(err)
	}
	return nil
}

// UpdateCard changes a card's details. A new credit limit must still cover
// the balance and the stored yearly total, stale or not, so both stay within
// the limit.
func (e *Engine) UpdateCard(ctx context.Context, cardID, ownerID int64, in UpdateCardInput) (*models.Card, error) {
	var updated *models.Card
	err := e.gateway.InTx(ctx, func(ctx context.Context, s Stores) error {
		card, err := lockActiveCard(ctx, s.Cards, cardID, ownerID)
		if err != nil {
			return err
		}
		if err := applyCardUpdate(card, in); err != nil {
			return err
		}
		if err := checkLimitCoversUsage(card); err != nil {
			return err
		}

		updated, err = s.Cards.Update(ctx, card)
		if errors.Is(err, repository.ErrConditionFailed) {
			return limitBelowUsageError(card)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("user", logger.HashUserID(ownerID)).
		Int64("card_id", cardID).
		Msg("Card updated")

	e.notify(ctx, updated)
	return updated, nil
}

func applyCardUpdate(card *models.Card, in UpdateCardInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return ErrCardNameRequired
		}
		card.Name = name
	}
	if in.CardType != nil {
		card.CardType = *in.CardType
	}
	if in.LastFour != nil {
		card.LastFour = *in.LastFour
	}
	if in.IssuingBank != nil {
		card.IssuingBank = *in.IssuingBank
	}
	if in.Color != nil && *in.Color != "" {
		card.Color = *in.Color
	}
	if in.ExpiryDate != nil {
		card.ExpiryDate = *in.ExpiryDate
	}
	if in.CreditLimit != nil {
		limit := in.CreditLimit.Round(2)
		if !limit.IsPositive() {
			return ErrInvalidAmount
		}
		card.CreditLimit = limit
	}
	return nil
}

func checkLimitCoversUsage(card *models.Card) error {
	if card.CurrentBalance.GreaterThan(card.CreditLimit) || card.TotalLoadedThisYear.GreaterThan(card.CreditLimit) {
		return limitBelowUsageError(card)
	}
	return nil
}

func limitBelowUsageError(card *models.Card) *LimitError {
	return &LimitError{
		Kind:      LimitBelowUsage,
		Remaining: decimal.Zero,
		Limit:     card.CreditLimit,
		Current:   decimal.Max(card.CurrentBalance, card.TotalLoadedThisYear),
	}
}

// LoadBalance adds amount to a card's balance and yearly total. The yearly
// limit is checked before the credit limit. A stale yearly counter is reset
// in the same unit of work, so the reset only persists with a successful load.
func (e *Engine) LoadBalance(ctx context.Context, cardID, ownerID int64, amount decimal.Decimal) (*LoadResult, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	year := e.now().Year()

	var updated *models.Card
	err := e.gateway.InTx(ctx, func(ctx context.Context, s Stores) error {
		card, err := lockActiveCard(ctx, s.Cards, cardID, ownerID)
		if err != nil {
			return err
		}

		if card.YearStarted < year {
			if err := s.Cards.ResetYear(ctx, card.ID, year); err != nil {
				return err
			}
			card.TotalLoadedThisYear = decimal.Zero
			card.YearStarted = year
		}

		if err := checkLoad(card, amount); err != nil {
			return err
		}

		updated, err = s.Cards.ApplyLoad(ctx, card.ID, amount)
		if errors.Is(err, repository.ErrConditionFailed) {
			return creditLimitError(card)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("user", logger.HashUserID(ownerID)).
		Int64("card_id", cardID).
		Str("amount", amount.String()).
		Msg("Card loaded")

	e.notify(ctx, updated)
	return &LoadResult{
		NewBalance:           updated.CurrentBalance,
		RemainingYearlyLimit: updated.CreditLimit.Sub(updated.TotalLoadedThisYear),
	}, nil
}

// GetLimitInfo reports a card's load headroom. A stale yearly counter is
// shown as reset but not written.
func (e *Engine) GetLimitInfo(ctx context.Context, cardID, ownerID int64) (*LimitInfo, error) {
	card, err := e.GetCard(ctx, cardID, ownerID)
	if err != nil {
		return nil, err
	}

	total := card.TotalLoadedThisYear
	if card.YearStarted < e.now().Year() {
		total = decimal.Zero
	}
	remaining := card.CreditLimit.Sub(total)

	return &LimitInfo{
		YearlyLimit:          card.CreditLimit,
		TotalLoadedThisYear:  total,
		RemainingYearlyLimit: remaining,
		CurrentBalance:       card.CurrentBalance,
		AvailableToLoad:      decimal.Min(remaining, card.AvailableCredit()),
	}, nil
}

// PostTransaction records a transaction and moves the card balance with it.
// Refunds credit the card; every other type debits it.
func (e *Engine) PostTransaction(ctx context.Context, in PostTransactionInput) (*models.Transaction, error) {
	amount := in.AmountUSD.Round(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	txnType := strings.ToLower(strings.TrimSpace(in.Type))
	if txnType == "" {
		return nil, ErrInvalidType
	}

	date := in.TransactionDate
	if date.IsZero() {
		date = e.now()
	}
	y, m, d := date.Date()
	date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	// Remote calls happen before the card row is locked.
	category := e.categorize(ctx, in.MerchantName, in.Category)
	rate := e.rates.GetLatestRate(ctx).Round(rateScale)

	txn := &models.Transaction{
		UserID:          in.OwnerID,
		CardID:          in.CardID,
		Type:            txnType,
		MerchantName:    strings.TrimSpace(in.MerchantName),
		AmountUSD:       amount,
		AmountNPR:       amount.Mul(rate).Round(2),
		ExchangeRate:    rate,
		Category:        category,
		Description:     in.Description,
		TransactionDate: date,
		IsRecurring:     in.IsRecurring,
	}

	var updated *models.Card
	err := e.gateway.InTx(ctx, func(ctx context.Context, s Stores) error {
		card, err := lockActiveCard(ctx, s.Cards, in.CardID, in.OwnerID)
		if err != nil {
			return err
		}

		delta := amount.Neg()
		if txn.IsCredit() {
			if card.CurrentBalance.Add(amount).GreaterThan(card.CreditLimit) {
				return creditLimitError(card)
			}
			delta = amount
		} else if amount.GreaterThan(card.CurrentBalance) {
			return &BalanceError{Balance: card.CurrentBalance}
		}

		if err := s.Transactions.Create(ctx, txn); err != nil {
			return err
		}
		updated, err = s.Cards.AdjustBalance(ctx, card.ID, delta)
		if errors.Is(err, repository.ErrConditionFailed) {
			if txn.IsCredit() {
				return creditLimitError(card)
			}
			return &BalanceError{Balance: card.CurrentBalance}
		}
		if err != nil {
			return err
		}
		txn.CardName = card.Name
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("user", logger.HashUserID(in.OwnerID)).
		Int64("card_id", in.CardID).
		Int64("transaction_id", txn.ID).
		Str("type", txnType).
		Str("amount", amount.String()).
		Msg("Transaction posted")

	e.notify(ctx, updated)
	return txn, nil
}

// DeleteTransaction removes a transaction and subtracts its amount from the
// card balance. The amount is subtracted for every type, refunds included.
// A subtraction that would make the balance negative rolls everything back.
// The card may have been deactivated since; its balance is still corrected.
func (e *Engine) DeleteTransaction(ctx context.Context, transactionID, ownerID int64) (bool, error) {
	err := e.gateway.InTx(ctx, func(ctx context.Context, s Stores) error {
		txn, err := s.Transactions.GetByIDAndUser(ctx, transactionID, ownerID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTransactionNotFound
		}
		if err != nil {
			return err
		}

		card, err := s.Cards.GetForUpdate(ctx, txn.CardID, ownerID)
		if err != nil {
			return cardLookupError(err)
		}
		if txn.AmountUSD.GreaterThan(card.CurrentBalance) {
			return &BalanceError{Balance: card.CurrentBalance}
		}

		if err := s.Transactions.Delete(ctx, txn.ID, ownerID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}
		_, err = s.Cards.AdjustBalance(ctx, card.ID, txn.AmountUSD.Neg())
		if errors.Is(err, repository.ErrConditionFailed) {
			return &BalanceError{Balance: card.CurrentBalance}
		}
		return err
	})
	if err != nil {
		return false, err
	}

	logger.Log.Info().
		Str("user", logger.HashUserID(ownerID)).
		Int64("transaction_id", transactionID).
		Msg("Transaction deleted")
	return true, nil
}

// GetTransaction returns a transaction owned by ownerID.
func (e *Engine) GetTransaction(ctx context.Context, transactionID, ownerID int64) (*models.Transaction, error) {
	txn, err := e.gateway.Stores().Transactions.GetByIDAndUser(ctx, transactionID, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ListTransactions returns the owner's transactions matching filter.
func (e *Engine) ListTransactions(
	ctx context.Context,
	ownerID int64,
	filter models.TransactionFilter,
) ([]models.Transaction, error) {
	return e.gateway.Stores().Transactions.ListByUser(ctx, ownerID, filter)
}

func (e *Engine) categorize(ctx context.Context, merchant, category string) string {
	if category = strings.TrimSpace(category); category != "" {
		return category
	}
	if e.suggester == nil || strings.TrimSpace(merchant) == "" {
		return models.DefaultCategory
	}

	suggested, err := e.suggester.SuggestCategory(ctx, merchant, models.TransactionCategories)
	if err != nil {
		logger.Log.Warn().Err(err).
			Str("merchant", logger.SanitizeText(merchant)).
			Msg("Category suggestion failed, using default")
		return models.DefaultCategory
	}
	if suggested == "" {
		return models.DefaultCategory
	}
	return suggested
}

func (e *Engine) notify(ctx context.Context, card *models.Card) {
	if card == nil {
		return
	}
	for _, o := range e.observers {
		if err := o.CardUpdated(ctx, card); err != nil {
			logger.Log.Warn().Err(err).Int64("card_id", card.ID).Msg("Card observer failed")
		}
	}
}

func lockActiveCard(ctx context.Context, cards CardStore, cardID, ownerID int64) (*models.Card, error) {
	card, err := cards.GetForUpdate(ctx, cardID, ownerID)
	if err != nil {
		return nil, cardLookupError(err)
	}
	if !card.IsActive {
		return nil, ErrCardNotFound
	}
	return card, nil
}

func checkLoad(card *models.Card, amount decimal.Decimal) error {
	if card.TotalLoadedThisYear.Add(amount).GreaterThan(card.CreditLimit) {
		return &LimitError{
			Kind:      YearlyLimitExceeded,
			Remaining: card.CreditLimit.Sub(card.TotalLoadedThisYear),
			Limit:     card.CreditLimit,
			Current:   card.TotalLoadedThisYear,
		}
	}
	if card.CurrentBalance.Add(amount).GreaterThan(card.CreditLimit) {
		return creditLimitError(card)
	}
	return nil
}

func creditLimitError(card *models.Card) *LimitError {
	return &LimitError{
		Kind:      CreditLimitExceeded,
		Remaining: card.AvailableCredit(),
		Limit:     card.CreditLimit,
		Current:   card.CurrentBalance,
	}
}

func cardLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrCardNotFound
	}
	return fmt.Errorf("card lookup: %w", err)
}
