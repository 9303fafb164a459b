package arb

import (
	"fmt"
	"strings"

	"triflow/models"
)

var legMarkers = [3]string{"🟢", "🟡", "🔴"}

// FormatOpportunity renders the HTML notification for an opportunity.
func FormatOpportunity(opp models.Opportunity, ready bool) string {
	lines := make([]string, 0, 8)
	for i, q := range opp.Legs {
		lines = append(lines, fmt.Sprintf("%s %d. %s - %.6f (%s), filled $%.2f, available $%.2f",
			legMarkers[i], i+1, q.Leg.Symbol.Key(), q.Estimate.AvgPrice,
			q.Leg.Direction.BookSide(), q.Estimate.FilledNotional, q.Estimate.ScannedLiquidity))
	}
	readiness := "NO"
	if ready {
		readiness = "YES"
	}
	lines = append(lines,
		"",
		fmt.Sprintf("💰 Pure profit: %.2f %s", opp.PureProfit(), opp.Triangle.Base),
		fmt.Sprintf("📈 Spread: %.2f%%", opp.ProfitPercent),
		fmt.Sprintf("💧 Min liquidity per leg: $%.2f", opp.MinLiquidity),
		fmt.Sprintf("⚙️ Ready to trade: %s", readiness),
	)
	return strings.Join(lines, "\n")
}
