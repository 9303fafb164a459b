package arb

import "triflow/models"

// EstimateExecution walks levels (best price first) until target quote-currency
// notional is filled, taking a fractional volume from the level that crosses
// the target. ScannedLiquidity sums the full notional of every level walked.
// The estimate is incomplete, with no average price, when the levels cannot
// fill the target or nothing was filled.
func EstimateExecution(levels []models.OrderBookLevel, target float64) models.ExecutionEstimate {
	var est models.ExecutionEstimate
	if target <= 0 {
		return est
	}

	reached := false
	for _, lvl := range levels {
		if lvl.Price <= 0 || lvl.Volume <= 0 {
			continue
		}
		notional := lvl.Notional()
		est.ScannedLiquidity += notional
		if est.FilledNotional+notional >= target {
			remain := target - est.FilledNotional
			est.FilledBase += remain / lvl.Price
			est.FilledNotional = target
			reached = true
			break
		}
		est.FilledBase += lvl.Volume
		est.FilledNotional += notional
	}

	if !reached || est.FilledBase <= 0 {
		return est
	}
	est.AvgPrice = est.FilledNotional / est.FilledBase
	est.Complete = true
	return est
}
