package arb

import (
	"context"
	"fmt"

	"triflow/logger"
	"triflow/models"
)

// GateDecision is the outcome of presenting a ready opportunity to the gate.
type GateDecision string

const (
	GateExecuted            GateDecision = "executed"
	GateInsufficientBalance GateDecision = "insufficient_balance"
	GateFetchFailed         GateDecision = "fetch_failed"
	GateExecutionFailed     GateDecision = "execution_failed"
)

// BalanceSource reports available balances keyed by currency code.
type BalanceSource interface {
	FetchBalances(ctx context.Context) (map[string]float64, error)
}

// Executor carries out (or simulates) a trade for an opportunity.
type Executor interface {
	Execute(ctx context.Context, opp models.Opportunity) (models.Execution, error)
}

// GateResult records what the gate did with one opportunity.
type GateResult struct {
	Decision  GateDecision
	Available float64
	Execution *models.Execution
	Err       error
}

// Gatekeeper checks the base-currency balance against the target notional
// before handing an opportunity to the executor.
type Gatekeeper struct {
	balances BalanceSource
	executor Executor
	log      *logger.Entry
}

func NewGatekeeper(balances BalanceSource, executor Executor) *Gatekeeper {
	return &Gatekeeper{
		balances: balances,
		executor: executor,
		log:      logger.GetLogger().WithComponent("gate"),
	}
}

// Gate never returns an error; failures are reported in the result so one
// route cannot disturb the rest of the tick.
func (g *Gatekeeper) Gate(ctx context.Context, opp models.Opportunity) GateResult {
	route := opp.Triangle.Route()
	base := opp.Triangle.Base

	balances, err := g.balances.FetchBalances(ctx)
	if err != nil {
		err = fmt.Errorf("%w: balances: %w", ErrFetch, err)
		g.log.WithError(err).WithFields(logger.Fields{"route": route}).Debug("balance check failed")
		return GateResult{Decision: GateFetchFailed, Err: err}
	}

	available := balances[base]
	if available < opp.Target {
		g.log.WithFields(logger.Fields{
			"route":     route,
			"currency":  base,
			"available": available,
			"required":  opp.Target,
		}).Info("insufficient balance, skipping execution")
		return GateResult{Decision: GateInsufficientBalance, Available: available}
	}

	exec, err := g.executor.Execute(ctx, opp)
	if err != nil {
		g.log.WithError(err).WithFields(logger.Fields{"route": route}).Warn("execution failed")
		return GateResult{Decision: GateExecutionFailed, Available: available, Err: err}
	}
	logger.IncrementExecution()
	g.log.WithFields(logger.Fields{
		"route":        route,
		"execution_id": exec.ID,
		"simulated":    exec.Simulated,
		"profit_pct":   fmt.Sprintf("%.4f", opp.ProfitPercent),
	}).Info("execution completed")
	return GateResult{Decision: GateExecuted, Available: available, Execution: &exec}
}
