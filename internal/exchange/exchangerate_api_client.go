package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/paywatch/internal/models"
)

var errMissingAPIKey = errors.New("exchange rate API key is not configured")

// ExchangeRateAPIClient is a client for the ExchangeRate-API v6 latest endpoint.
type ExchangeRateAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type exchangeRateAPIResponse struct {
	Result          string                 `json:"result"`
	ErrorType       string                 `json:"error-type"`
	BaseCode        string                 `json:"base_code"`
	ConversionRates map[string]json.Number `json:"conversion_rates"`
}

// NewExchangeRateAPIClient creates an ExchangeRate-API client.
func NewExchangeRateAPIClient(baseURL, apiKey string, timeout time.Duration) *ExchangeRateAPIClient {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = "https://v6.exchangerate-api.com/v6"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ExchangeRateAPIClient{
		baseURL: trimmed,
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// LatestRate returns how many NPR one USD buys right now.
func (c *ExchangeRateAPIClient) LatestRate(ctx context.Context) (decimal.Decimal, error) {
	if c.apiKey == "" {
		return decimal.Zero, errMissingAPIKey
	}

	endpoint := fmt.Sprintf("%s/%s/latest/%s", c.baseURL, url.PathEscape(c.apiKey), models.BaseCurrency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create rate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to request exchange rate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("exchange API returned status %d", resp.StatusCode)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var payload exchangeRateAPIResponse
	if err := decoder.Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode rate response: %w", err)
	}
	if payload.Result != "" && payload.Result != "success" {
		return decimal.Zero, fmt.Errorf("exchange API returned %s: %s", payload.Result, payload.ErrorType)
	}

	rateStr, ok := payload.ConversionRates[models.LocalCurrency]
	if !ok {
		return decimal.Zero, errRateMissing
	}

	rate, err := decimal.NewFromString(rateStr.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse conversion rate: %w", err)
	}
	if err := validateRate(rate); err != nil {
		return decimal.Zero, err
	}

	return rate, nil
}
