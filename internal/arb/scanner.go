package arb

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"triflow/internal/debounce"
	"triflow/internal/metrics"
	"triflow/logger"
	"triflow/models"
)

// Notifier delivers human-readable messages. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// AuditSink appends one audit record per accepted opportunity.
type AuditSink interface {
	Record(ctx context.Context, rec models.AuditRecord) error
}

// Publisher streams accepted opportunities to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, opp models.Opportunity, ready bool)
}

// ScannerConfig wires a Scanner. Publisher and Metrics may be nil.
type ScannerConfig struct {
	Triangles   []models.Triangle
	Evaluator   *Evaluator
	Cache       debounce.Cache
	Gate        *Gatekeeper
	Notifier    Notifier
	Audit       AuditSink
	Publisher   Publisher
	Metrics     *metrics.Recorder
	Interval    time.Duration
	Concurrency int
}

// Scanner evaluates every triangle once per tick and routes accepted
// opportunities through audit, notification, debounce and the gate.
type Scanner struct {
	cfg ScannerConfig
	log *logger.Entry
}

func NewScanner(cfg ScannerConfig) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Scanner{cfg: cfg, log: logger.GetLogger().WithComponent("scanner")}
}

// Run ticks until ctx is cancelled. Cancellation is a normal stop and
// returns nil.
func (s *Scanner) Run(ctx context.Context) error {
	s.log.WithFields(logger.Fields{
		"triangles":   len(s.cfg.Triangles),
		"interval":    s.cfg.Interval.String(),
		"concurrency": s.cfg.Concurrency,
	}).Info("scanner started")

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scanner stopped")
			return nil
		case <-timer.C:
		}

		found := s.Tick(ctx)
		if ctx.Err() == nil {
			s.log.WithFields(logger.Fields{"opportunities": found}).Debug("tick complete")
		}
		timer.Reset(s.cfg.Interval)
	}
}

// Tick evaluates all triangles in parallel, bounded by Concurrency, and
// waits for every task before returning the number of opportunities found.
func (s *Scanner) Tick(ctx context.Context) int {
	start := time.Now()

	if n, err := s.cfg.Cache.Sweep(ctx, time.Now()); err != nil {
		s.log.WithError(err).Warn("debounce sweep failed")
	} else if n > 0 {
		s.log.WithFields(logger.Fields{"expired": n}).Debug("debounce entries expired")
	}

	results := make([]bool, len(s.cfg.Triangles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, tri := range s.cfg.Triangles {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = s.check(gctx, tri)
			return nil
		})
	}
	_ = g.Wait()

	found := 0
	for _, ok := range results {
		if ok {
			found++
		}
	}

	elapsed := time.Since(start)
	logger.IncrementScanTick(len(s.cfg.Triangles))
	s.cfg.Metrics.ObserveTick(elapsed)
	logger.LogPerformanceEntry(s.log, "scanner", "tick", elapsed, logger.Fields{
		"triangles":     len(s.cfg.Triangles),
		"opportunities": found,
	})
	return found
}

// check runs one triangle through the pipeline and reports whether it
// produced an opportunity.
func (s *Scanner) check(ctx context.Context, tri models.Triangle) bool {
	if ctx.Err() != nil {
		return false
	}

	eval, err := s.cfg.Evaluator.Evaluate(ctx, tri)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.cfg.Metrics.Evaluation(string(eval.Outcome))
		s.cfg.Metrics.FetchFailure("orderbook")
		logger.IncrementFetchFailure()
		s.log.WithError(err).Debug("triangle evaluation dropped")
		return false
	}
	s.cfg.Metrics.Evaluation(string(eval.Outcome))
	if eval.Opportunity == nil {
		return false
	}

	opp := *eval.Opportunity
	logger.IncrementOpportunity()

	if err := s.cfg.Audit.Record(ctx, models.NewAuditRecord(opp)); err != nil {
		s.log.WithError(err).WithFields(logger.Fields{"route": opp.Triangle.Route()}).Warn("audit write failed")
	}

	decision, err := s.cfg.Cache.Observe(ctx, opp.RouteID, opp.DetectedAt)
	if err != nil {
		s.log.WithError(err).WithFields(logger.Fields{"route": opp.Triangle.Route()}).Warn("debounce lookup failed")
		decision = debounce.Decision{}
	}

	if s.cfg.Publisher != nil {
		s.cfg.Publisher.Publish(ctx, opp, decision.Ready)
	}
	s.cfg.Notifier.Notify(ctx, FormatOpportunity(opp, decision.Ready))

	if !decision.Ready {
		return true
	}

	result := s.cfg.Gate.Gate(ctx, opp)
	s.cfg.Metrics.GateDecision(string(result.Decision))
	if result.Decision == GateFetchFailed && !errors.Is(ctx.Err(), context.Canceled) {
		s.cfg.Metrics.FetchFailure("wallet")
		logger.IncrementFetchFailure()
	}
	if result.Decision != GateExecuted {
		return true
	}
	if err := s.cfg.Cache.MarkFired(ctx, opp.RouteID, opp.DetectedAt); err != nil {
		s.log.WithError(err).WithFields(logger.Fields{"route": opp.Triangle.Route()}).Warn("failed to mark route fired")
	}
	return true
}
