package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"gitlab.com/yelinaung/paywatch/internal/models"
)

// TransactionsCSV exports transactions with both currency amounts.
func TransactionsCSV(txns []models.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"ID", "Date", "Card", "Type", "Merchant", "Category", "Amount USD", "Amount NPR", "Rate", "Recurring"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range txns {
		t := &txns[i]
		row := []string{
			strconv.FormatInt(t.ID, 10),
			t.TransactionDate.Format(time.DateOnly),
			t.CardName,
			t.Type,
			t.MerchantName,
			t.Category,
			t.AmountUSD.StringFixed(2),
			t.AmountNPR.StringFixed(2),
			t.ExchangeRate.StringFixed(4),
			strconv.FormatBool(t.IsRecurring),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}
