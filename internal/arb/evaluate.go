package arb

import (
	"context"
	"fmt"
	"math"
	"time"

	"triflow/internal/metrics"
	"triflow/logger"
	"triflow/models"
)

// Outcome classifies one triangle evaluation.
type Outcome string

const (
	OutcomeOpportunity Outcome = metrics.OutcomeOpportunity
	OutcomeDepth       Outcome = metrics.OutcomeDepth
	OutcomeFetchFailed Outcome = metrics.OutcomeFetchFailed
	OutcomeBelowBand   Outcome = metrics.OutcomeBelowBand
	OutcomeAboveBand   Outcome = metrics.OutcomeAboveBand
	OutcomeDegenerate  Outcome = metrics.OutcomeDegenerate
)

// BookSource fetches a fresh order book snapshot.
type BookSource interface {
	FetchOrderBook(ctx context.Context, symbol models.Symbol) (models.OrderBook, error)
}

// Params are the strategy knobs applied to every triangle.
type Params struct {
	CommissionRate   float64
	MinProfitPercent float64
	MaxProfitPercent float64
	TargetNotional   float64
}

// Evaluation is the result of pricing one triangle. Opportunity is set only
// when Outcome is OutcomeOpportunity.
type Evaluation struct {
	Outcome       Outcome
	ProfitPercent float64
	Opportunity   *models.Opportunity
}

// Evaluator prices triangles leg by leg against live order books.
type Evaluator struct {
	books  BookSource
	params Params
	now    func() time.Time
	log    *logger.Entry
}

func NewEvaluator(books BookSource, params Params) *Evaluator {
	return &Evaluator{
		books:  books,
		params: params,
		now:    time.Now,
		log:    logger.GetLogger().WithComponent("evaluator"),
	}
}

// Multiplier is the net conversion rate of a leg: the currency acquired per
// unit of currency spent, after commission.
func Multiplier(direction models.LegDirection, avgPrice, commission float64) float64 {
	rate := avgPrice
	if direction == models.Forward {
		rate = 1 / avgPrice
	}
	return rate * (1 - commission)
}

// Evaluate fetches the three books in leg order and stops at the first leg
// that fails. A fetch failure returns an error wrapping ErrFetch; a shallow
// book or out-of-band yield is reported through Outcome with a nil error.
func (e *Evaluator) Evaluate(ctx context.Context, tri models.Triangle) (Evaluation, error) {
	var quotes [3]models.LegQuote
	yield := 1.0
	minLiquidity := math.Inf(1)

	for i, leg := range tri.Legs {
		book, err := e.books.FetchOrderBook(ctx, leg.Symbol)
		if err != nil {
			return Evaluation{Outcome: OutcomeFetchFailed}, fmt.Errorf("%w: %s leg %d %s: %w", ErrFetch, tri.Route(), i+1, leg.Symbol, err)
		}

		est := EstimateExecution(leg.Direction.Levels(book), e.params.TargetNotional)
		if !est.Complete {
			if e.log.DebugEnabled() {
				e.log.WithFields(logger.Fields{
					"route":     tri.Route(),
					"leg":       i + 1,
					"symbol":    leg.Symbol.Key(),
					"book_side": leg.Direction.BookSide(),
					"scanned":   est.ScannedLiquidity,
				}).WithError(ErrDepthInsufficient).Debug("leg skipped")
			}
			return Evaluation{Outcome: OutcomeDepth}, nil
		}

		mult := Multiplier(leg.Direction, est.AvgPrice, e.params.CommissionRate)
		quotes[i] = models.LegQuote{Leg: leg, Estimate: est, Multiplier: mult}
		yield *= mult
		minLiquidity = math.Min(minLiquidity, est.ScannedLiquidity)
	}

	if math.IsNaN(yield) || math.IsInf(yield, 0) {
		return Evaluation{Outcome: OutcomeDegenerate}, nil
	}

	profit := (yield - 1) * 100
	switch {
	case profit < e.params.MinProfitPercent:
		return Evaluation{Outcome: OutcomeBelowBand, ProfitPercent: profit}, nil
	case profit > e.params.MaxProfitPercent:
		return Evaluation{Outcome: OutcomeAboveBand, ProfitPercent: profit}, nil
	}

	opp := &models.Opportunity{
		RouteID:       RouteID(tri),
		Triangle:      tri,
		Legs:          quotes,
		Yield:         yield,
		ProfitPercent: profit,
		MinLiquidity:  models.Round2(minLiquidity),
		Target:        e.params.TargetNotional,
		DetectedAt:    e.now().UTC(),
	}
	return Evaluation{Outcome: OutcomeOpportunity, ProfitPercent: profit, Opportunity: opp}, nil
}
