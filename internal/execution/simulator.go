// Package execution carries out trades for gated opportunities. Only a
// simulated executor exists: it waits, reports and records success.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"triflow/logger"
	"triflow/models"
)

// Notifier receives the execution report.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Simulator pretends to trade an opportunity after a fixed delay.
type Simulator struct {
	delay    time.Duration
	notifier Notifier
	now      func() time.Time
	log      *logger.Entry
}

func NewSimulator(delay time.Duration, notifier Notifier) *Simulator {
	return &Simulator{
		delay:    delay,
		notifier: notifier,
		now:      time.Now,
		log:      logger.GetLogger().WithComponent("simulator"),
	}
}

// Execute waits for the configured delay, or until ctx is done, then sends a
// report and returns a successful simulated execution.
func (s *Simulator) Execute(ctx context.Context, opp models.Opportunity) (models.Execution, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.Execution{}, fmt.Errorf("simulate %s: %w", opp.Triangle.Route(), ctx.Err())
		case <-timer.C:
		}
	}

	exec := models.Execution{
		ID:            uuid.NewString(),
		Route:         opp.Triangle.Route(),
		ProfitPercent: opp.ProfitPercent,
		Simulated:     true,
		Success:       true,
		ExecutedAt:    s.now().UTC(),
	}
	s.notifier.Notify(ctx, FormatExecution(exec))
	s.log.WithFields(logger.Fields{"route": exec.Route, "execution_id": exec.ID}).Debug("simulated trade")
	return exec, nil
}

// FormatExecution renders the HTML execution report.
func FormatExecution(exec models.Execution) string {
	title := "Trade"
	if exec.Simulated {
		title = "Simulated trade"
	}
	return fmt.Sprintf("🤖 <b>%s</b>\nRoute: %s\nProfit: %.2f%%", title, exec.Route, exec.ProfitPercent)
}
