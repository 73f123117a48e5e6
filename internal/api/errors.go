package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/yelinaung/paywatch/internal/ledger"
	"gitlab.com/yelinaung/paywatch/internal/logger"
	"gitlab.com/yelinaung/paywatch/internal/repository"
	"gitlab.com/yelinaung/paywatch/internal/subscription"
)

// writeError maps domain errors to responses. Anything unrecognized is
// logged and hidden behind a generic 500.
func writeError(c *gin.Context, err error) {
	var limitErr *ledger.LimitError
	var balanceErr *ledger.BalanceError

	switch {
	case errors.Is(err, ledger.ErrCardNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Card not found"})
	case errors.Is(err, ledger.ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
	case errors.Is(err, subscription.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.As(err, &limitErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     limitErr.Error(),
			"kind":      string(limitErr.Kind),
			"remaining": limitErr.Remaining,
		})
	case errors.As(err, &balanceErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   balanceErr.Error(),
			"kind":    "insufficient_balance",
			"balance": balanceErr.Balance,
		})
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidType),
		errors.Is(err, ledger.ErrCardNameRequired),
		errors.Is(err, subscription.ErrServiceNameRequired),
		errors.Is(err, subscription.ErrInvalidAmount),
		errors.Is(err, subscription.ErrInvalidCycle),
		errors.Is(err, subscription.ErrInvalidStatus),
		errors.Is(err, subscription.ErrBillingDateInPast),
		errors.Is(err, subscription.ErrTrialEndInPast):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Log.Error().Err(err).
			Str("route", c.FullPath()).
			Str("request_id", c.GetString(ctxRequestID)).
			Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
