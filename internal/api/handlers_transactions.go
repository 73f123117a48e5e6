package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/yelinaung/paywatch/internal/ledger"
	"gitlab.com/yelinaung/paywatch/internal/models"
	"gitlab.com/yelinaung/paywatch/internal/report"
)

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(value), time.UTC)
}

// parseRange reads start_date and end_date. Either may be absent.
func parseRange(c *gin.Context) (from, to time.Time, ok bool) {
	var err error
	if v := c.Query("start_date"); v != "" {
		if from, err = parseDate(v); err != nil {
			badRequest(c, "start_date must be YYYY-MM-DD")
			return from, to, false
		}
	}
	if v := c.Query("end_date"); v != "" {
		if to, err = parseDate(v); err != nil {
			badRequest(c, "end_date must be YYYY-MM-DD")
			return from, to, false
		}
	}
	return from, to, true
}

func parseFilter(c *gin.Context) (models.TransactionFilter, bool) {
	var filter models.TransactionFilter
	if v := c.Query("card_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "card_id must be a positive integer")
			return filter, false
		}
		filter.CardID = id
	}
	filter.Category = strings.TrimSpace(c.Query("category"))
	filter.Type = strings.ToLower(strings.TrimSpace(c.Query("transaction_type")))

	from, to, ok := parseRange(c)
	filter.From, filter.To = from, to
	return filter, ok
}

func (s *Server) listTransactions(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	txns, err := s.ledger.ListTransactions(c.Request.Context(), getUserID(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]transactionDTO, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionDTO(&txns[i]))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

func (s *Server) getTransaction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	txn, err := s.ledger.GetTransaction(c.Request.Context(), id, getUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": toTransactionDTO(txn)})
}

func (s *Server) postTransaction(c *gin.Context) {
	var body postTransactionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid json")
		return
	}
	switch {
	case body.CardID <= 0:
		badRequest(c, "card_id is required")
		return
	case strings.TrimSpace(body.Type) == "":
		badRequest(c, "transaction_type is required")
		return
	case strings.TrimSpace(body.MerchantName) == "":
		badRequest(c, "merchant_name is required")
		return
	}

	var date time.Time
	if body.TransactionDate != "" {
		var err error
		if date, err = parseDate(body.TransactionDate); err != nil {
			badRequest(c, "transaction_date must be YYYY-MM-DD")
			return
		}
		today := s.cfg.Now().In(s.cfg.Location).Format(time.DateOnly)
		if date.Format(time.DateOnly) > today {
			badRequest(c, "Transaction date cannot be in future")
			return
		}
	}

	txn, err := s.ledger.PostTransaction(c.Request.Context(), ledger.PostTransactionInput{
		CardID:          body.CardID,
		OwnerID:         getUserID(c),
		Type:            body.Type,
		AmountUSD:       body.AmountUSD,
		MerchantName:    strings.TrimSpace(body.MerchantName),
		Category:        body.Category,
		Description:     body.Description,
		TransactionDate: date,
		IsRecurring:     body.IsRecurring,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Transaction added successfully",
		"transaction": toTransactionDTO(txn),
	})
}

func (s *Server) deleteTransaction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := s.ledger.DeleteTransaction(c.Request.Context(), id, getUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}

func (s *Server) summary(c *gin.Context) (*report.Summary, bool) {
	from, to, ok := parseRange(c)
	if !ok {
		return nil, false
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		badRequest(c, "end_date must not be before start_date")
		return nil, false
	}
	summary, err := s.reports.Summary(c.Request.Context(), getUserID(c), from, to)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return summary, true
}

func (s *Server) getSummary(c *gin.Context) {
	summary, ok := s.summary(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": toSummaryDTO(summary)})
}

func (s *Server) getSummaryChart(c *gin.Context) {
	summary, ok := s.summary(c)
	if !ok {
		return
	}
	if len(summary.ByCategory) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No transactions in this period"})
		return
	}
	png, err := report.GenerateCategoryChart(summary, "Spending by category (USD)")
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) exportTransactions(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	txns, err := s.ledger.ListTransactions(c.Request.Context(), getUserID(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := report.TransactionsCSV(txns)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="transactions.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}
