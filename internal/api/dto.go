package api

import (
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/ledger"
	"gitlab.com/yelinaung/paywatch/internal/models"
	"gitlab.com/yelinaung/paywatch/internal/report"
	"gitlab.com/yelinaung/paywatch/internal/subscription"
)

type cardDTO struct {
	ID                  int64           `json:"id"`
	Name                string          `json:"card_name"`
	CardType            string          `json:"card_type"`
	LastFour            string          `json:"last_four_digits"`
	IssuingBank         string          `json:"issuing_bank"`
	Color               string          `json:"card_color"`
	ExpiryDate          string          `json:"expiry_date"`
	CreditLimit         decimal.Decimal `json:"credit_limit"`
	CurrentBalance      decimal.Decimal `json:"current_balance"`
	TotalLoadedThisYear decimal.Decimal `json:"total_loaded_this_year"`
	YearStarted         int             `json:"year_started"`
	Utilization         decimal.Decimal `json:"utilization"`
	AvailableCredit     decimal.Decimal `json:"available_credit"`
	IsActive            bool            `json:"is_active"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func toCardDTO(c *models.Card) cardDTO {
	return cardDTO{
		ID:                  c.ID,
		Name:                c.Name,
		CardType:            c.CardType,
		LastFour:            c.LastFour,
		IssuingBank:         c.IssuingBank,
		Color:               c.Color,
		ExpiryDate:          c.ExpiryDate,
		CreditLimit:         c.CreditLimit,
		CurrentBalance:      c.CurrentBalance,
		TotalLoadedThisYear: c.TotalLoadedThisYear,
		YearStarted:         c.YearStarted,
		Utilization:         c.Utilization(),
		AvailableCredit:     c.AvailableCredit(),
		IsActive:            c.IsActive,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

type transactionDTO struct {
	ID              int64           `json:"id"`
	CardID          int64           `json:"card_id"`
	CardName        string          `json:"card_name"`
	Type            string          `json:"transaction_type"`
	MerchantName    string          `json:"merchant_name"`
	AmountUSD       decimal.Decimal `json:"amount_usd"`
	AmountNPR       decimal.Decimal `json:"amount_npr"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	TransactionDate string          `json:"transaction_date"`
	IsRecurring     bool            `json:"is_recurring"`
	CreatedAt       time.Time       `json:"created_at"`
}

func toTransactionDTO(t *models.Transaction) transactionDTO {
	return transactionDTO{
		ID:              t.ID,
		CardID:          t.CardID,
		CardName:        t.CardName,
		Type:            t.Type,
		MerchantName:    t.MerchantName,
		AmountUSD:       t.AmountUSD,
		AmountNPR:       t.AmountNPR,
		ExchangeRate:    t.ExchangeRate,
		Category:        t.Category,
		Description:     t.Description,
		TransactionDate: t.TransactionDate.Format(time.DateOnly),
		IsRecurring:     t.IsRecurring,
		CreatedAt:       t.CreatedAt,
	}
}

type limitInfoDTO struct {
	YearlyLimit          decimal.Decimal `json:"yearly_limit"`
	TotalLoadedThisYear  decimal.Decimal `json:"total_loaded_this_year"`
	RemainingYearlyLimit decimal.Decimal `json:"remaining_yearly_limit"`
	CurrentBalance       decimal.Decimal `json:"current_balance"`
	AvailableToLoad      decimal.Decimal `json:"available_to_load"`
}

func toLimitInfoDTO(l *ledger.LimitInfo) limitInfoDTO {
	return limitInfoDTO(*l)
}

type breakdownDTO struct {
	Name      string          `json:"name"`
	AmountUSD decimal.Decimal `json:"total_usd"`
	AmountNPR decimal.Decimal `json:"total_npr"`
	Count     int             `json:"count"`
}

type summaryDTO struct {
	StartDate  string          `json:"start_date"`
	EndDate    string          `json:"end_date"`
	TotalUSD   decimal.Decimal `json:"total_usd"`
	TotalNPR   decimal.Decimal `json:"total_npr"`
	Count      int             `json:"transaction_count"`
	ByCategory []breakdownDTO  `json:"by_category"`
	ByCard     []breakdownDTO  `json:"by_card"`
}

func toSummaryDTO(s *report.Summary) summaryDTO {
	convert := func(in []report.Breakdown) []breakdownDTO {
		out := make([]breakdownDTO, 0, len(in))
		for _, b := range in {
			out = append(out, breakdownDTO(b))
		}
		return out
	}
	return summaryDTO{
		StartDate:  s.From.Format(time.DateOnly),
		EndDate:    s.To.Format(time.DateOnly),
		TotalUSD:   s.TotalUSD,
		TotalNPR:   s.TotalNPR,
		Count:      s.Count,
		ByCategory: convert(s.ByCategory),
		ByCard:     convert(s.ByCard),
	}
}

type alertDTO struct {
	ID        int64     `json:"id"`
	Type      string    `json:"alert_type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	RelatedID *int64    `json:"related_id"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func toAlertDTO(a *models.Alert) alertDTO {
	return alertDTO{
		ID:        a.ID,
		Type:      a.Type,
		Title:     a.Title,
		Message:   a.Message,
		RelatedID: a.RelatedID,
		IsRead:    a.IsRead,
		CreatedAt: a.CreatedAt,
	}
}

type subscriptionDTO struct {
	ID                int64           `json:"id"`
	CardID            int64           `json:"card_id"`
	CardName          string          `json:"card_name"`
	CardLastFour      string          `json:"last_four_digits"`
	ServiceName       string          `json:"service_name"`
	Category          string          `json:"category"`
	AmountUSD         decimal.Decimal `json:"amount_usd"`
	BillingCycle      string          `json:"billing_cycle"`
	NextBillingDate   string          `json:"next_billing_date"`
	TrialEndDate      *string         `json:"trial_end_date"`
	Status            string          `json:"status"`
	UsageCount        int             `json:"usage_count"`
	DaysUntilRenewal  int             `json:"days_until_renewal"`
	DaysUntilTrialEnd *int            `json:"days_until_trial_end"`
	CreatedAt         time.Time       `json:"created_at"`
}

func toSubscriptionDTO(sub *models.Subscription, today time.Time) subscriptionDTO {
	dto := subscriptionDTO{
		ID:                sub.ID,
		CardID:            sub.CardID,
		CardName:          sub.CardName,
		CardLastFour:      sub.CardLastFour,
		ServiceName:       sub.ServiceName,
		Category:          sub.Category,
		AmountUSD:         sub.AmountUSD,
		BillingCycle:      sub.BillingCycle,
		NextBillingDate:   sub.NextBillingDate.Format(time.DateOnly),
		Status:            sub.Status,
		UsageCount:        sub.UsageCount,
		DaysUntilRenewal:  sub.DaysUntilRenewal(today),
		DaysUntilTrialEnd: sub.DaysUntilTrialEnd(today),
		CreatedAt:         sub.CreatedAt,
	}
	if sub.TrialEndDate != nil {
		end := sub.TrialEndDate.Format(time.DateOnly)
		dto.TrialEndDate = &end
	}
	return dto
}

func toSubscriptionDTOs(subs []models.Subscription, today time.Time) []subscriptionDTO {
	out := make([]subscriptionDTO, 0, len(subs))
	for i := range subs {
		out = append(out, toSubscriptionDTO(&subs[i], today))
	}
	return out
}

type subscriptionSummaryDTO struct {
	TotalSubscriptions int               `json:"total_subscriptions"`
	MonthlyCostUSD     decimal.Decimal   `json:"monthly_cost_usd"`
	YearlyCostUSD      decimal.Decimal   `json:"yearly_cost_usd"`
	TrialsEndingSoon   int               `json:"trials_ending_soon"`
	TrialDetails       []subscriptionDTO `json:"trial_details"`
}

func toSubscriptionSummaryDTO(s *subscription.Summary, today time.Time) subscriptionSummaryDTO {
	return subscriptionSummaryDTO{
		TotalSubscriptions: s.TotalSubscriptions,
		MonthlyCostUSD:     s.MonthlyCostUSD,
		YearlyCostUSD:      s.YearlyCostUSD,
		TrialsEndingSoon:   len(s.TrialsEndingSoon),
		TrialDetails:       toSubscriptionDTOs(s.TrialsEndingSoon, today),
	}
}

type totalsDTO struct {
	BalanceUSD   decimal.Decimal `json:"total_balance_usd"`
	LimitUSD     decimal.Decimal `json:"total_limit_usd"`
	AvailableUSD decimal.Decimal `json:"total_available_usd"`
	CardCount    int             `json:"card_count"`
}

type dashboardDTO struct {
	Cards               []cardDTO              `json:"cards"`
	RecentTransactions  []transactionDTO       `json:"recent_transactions"`
	SpendingSummary     summaryDTO             `json:"spending_summary"`
	ActiveSubscriptions []subscriptionDTO      `json:"active_subscriptions"`
	SubscriptionSummary subscriptionSummaryDTO `json:"subscription_summary"`
	Totals              totalsDTO              `json:"totals"`
}

type addCardRequest struct {
	Name           string          `json:"card_name"`
	CardType       string          `json:"card_type"`
	LastFour       string          `json:"last_four_digits"`
	IssuingBank    string          `json:"issuing_bank"`
	Color          string          `json:"card_color"`
	ExpiryDate     string          `json:"expiry_date"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	InitialBalance decimal.Decimal `json:"current_balance"`
}

type updateCardRequest struct {
	Name        *string          `json:"card_name"`
	CardType    *string          `json:"card_type"`
	LastFour    *string          `json:"last_four_digits"`
	IssuingBank *string          `json:"issuing_bank"`
	Color       *string          `json:"card_color"`
	ExpiryDate  *string          `json:"expiry_date"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
}

type loadRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type postTransactionRequest struct {
	CardID          int64           `json:"card_id"`
	Type            string          `json:"transaction_type"`
	MerchantName    string          `json:"merchant_name"`
	AmountUSD       decimal.Decimal `json:"amount_usd"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	TransactionDate string          `json:"transaction_date"`
	IsRecurring     bool            `json:"is_recurring"`
}

type addSubscriptionRequest struct {
	CardID          int64           `json:"card_id"`
	ServiceName     string          `json:"service_name"`
	Category        string          `json:"category"`
	AmountUSD       decimal.Decimal `json:"amount_usd"`
	BillingCycle    string          `json:"billing_cycle"`
	NextBillingDate string          `json:"next_billing_date"`
	TrialEndDate    string          `json:"trial_end_date"`
}

type updateSubscriptionRequest struct {
	ServiceName     *string          `json:"service_name"`
	Category        *string          `json:"category"`
	AmountUSD       *decimal.Decimal `json:"amount_usd"`
	BillingCycle    *string          `json:"billing_cycle"`
	NextBillingDate *string          `json:"next_billing_date"`
	Status          *string          `json:"status"`
}
