package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestGenerateCategoryChart(t *testing.T) {
	t.Parallel()

	t.Run("renders png", func(t *testing.T) {
		t.Parallel()
		summary := &Summary{ByCategory: []Breakdown{
			{Name: "Streaming", AmountUSD: decimal.RequireFromString("25.00")},
			{Name: "Software & Cloud", AmountUSD: decimal.RequireFromString("12.75")},
		}}

		buf, err := GenerateCategoryChart(summary, "Spending by category")
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(buf), 4)
		// PNG magic bytes
		require.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, buf[:4])
	})

	t.Run("empty summary", func(t *testing.T) {
		t.Parallel()
		_, err := GenerateCategoryChart(&Summary{}, "Empty")
		require.Error(t, err)

		_, err = GenerateCategoryChart(nil, "Nil")
		require.Error(t, err)
	})
}
