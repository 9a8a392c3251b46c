package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmounts parses a comma separated list of decimal amounts.
func parseAmounts(val string) ([]decimal.Decimal, error) {
	var amounts []decimal.Decimal
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		amount, err := decimal.NewFromString(part)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", part, err)
		}
		amounts = append(amounts, amount)
	}
	return amounts, nil
}

// parseReportFormat validates a report format flag.
func parseReportFormat(val string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(val))
	switch format {
	case "xlsx", "pdf":
		return format, nil
	}
	return "", fmt.Errorf("unsupported format %q (want xlsx or pdf)", val)
}
