// Package metrics registers the scan-loop counters:
//
//	#triflow_scan_ticks_total
//	#triflow_tick_duration_seconds
//	#triflow_evaluations_total{outcome}
//	#triflow_fetch_failures_total{endpoint}
//	#triflow_opportunities_total
//	#triflow_gate_decisions_total{decision}
//	#triflow_notify_failures_total
//	#go_* and process_* system metrics
//
// and exposes them on /metrics using the Prometheus HTTP handler.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"triflow/logger"
)

// Evaluation outcomes.
const (
	OutcomeOpportunity = "opportunity"
	OutcomeDepth       = "depth_insufficient"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeBelowBand   = "below_band"
	OutcomeAboveBand   = "above_band"
	OutcomeDegenerate  = "degenerate"
)

// Recorder owns a registry so tests and multiple instances do not collide
// on the global one.
type Recorder struct {
	registry       *prometheus.Registry
	ticks          prometheus.Counter
	tickDuration   prometheus.Histogram
	evaluations    *prometheus.CounterVec
	fetchFailures  *prometheus.CounterVec
	opportunities  prometheus.Counter
	gateDecisions  *prometheus.CounterVec
	notifyFailures prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triflow_scan_ticks_total",
			Help: "Number of completed scan ticks",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triflow_tick_duration_seconds",
			Help:    "Wall time spent evaluating all triangles in one tick",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triflow_evaluations_total",
			Help: "Triangle evaluations by outcome",
		}, []string{"outcome"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triflow_fetch_failures_total",
			Help: "Failed market-data calls by endpoint",
		}, []string{"endpoint"}),
		opportunities: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triflow_opportunities_total",
			Help: "Triangles that passed the profit band",
		}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triflow_gate_decisions_total",
			Help: "Execution gate decisions",
		}, []string{"decision"}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triflow_notify_failures_total",
			Help: "Notifications that could not be delivered",
		}),
	}
	r.registry.MustRegister(
		r.ticks, r.tickDuration, r.evaluations, r.fetchFailures,
		r.opportunities, r.gateDecisions, r.notifyFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// The methods below accept a nil receiver so components can run without metrics.

func (r *Recorder) ObserveTick(d time.Duration) {
	if r == nil {
		return
	}
	r.ticks.Inc()
	r.tickDuration.Observe(d.Seconds())
}

func (r *Recorder) Evaluation(outcome string) {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOpportunity {
		r.opportunities.Inc()
	}
}

func (r *Recorder) FetchFailure(endpoint string) {
	if r == nil {
		return
	}
	r.fetchFailures.WithLabelValues(endpoint).Inc()
}

func (r *Recorder) GateDecision(decision string) {
	if r == nil {
		return
	}
	r.gateDecisions.WithLabelValues(decision).Inc()
}

func (r *Recorder) NotifyFailure() {
	if r == nil {
		return
	}
	r.notifyFailures.Inc()
}

// Handler serves the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on listen until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, listen string) {
	log := logger.GetLogger().WithComponent("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(logger.Fields{"listen": listen}).Info("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Warn("metrics server stopped")
	}
}
