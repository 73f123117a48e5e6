package report

import (
	"fmt"

	"github.com/go-analyze/charts"
)

// GenerateCategoryChart renders the summary's category breakdown as a pie
// chart and returns the PNG bytes.
func GenerateCategoryChart(summary *Summary, title string) ([]byte, error) {
	if summary == nil || len(summary.ByCategory) == 0 {
		return nil, fmt.Errorf("no transactions to chart")
	}

	values := make([]float64, 0, len(summary.ByCategory))
	names := make([]string, 0, len(summary.ByCategory))
	for _, b := range summary.ByCategory {
		names = append(names, b.Name)
		values = append(values, b.AmountUSD.InexactFloat64())
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: title,
		}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}
