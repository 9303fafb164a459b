package arb

import "errors"

var (
	// ErrFetch wraps a failed order book or balance request.
	ErrFetch = errors.New("market data fetch failed")
	// ErrDepthInsufficient means a leg's book could not fill the target notional.
	ErrDepthInsufficient = errors.New("order book depth insufficient")
)
