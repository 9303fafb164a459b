package logger

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	warnCount      int64
	errorCount     int64
	scanTicks      int64
	evaluations    int64
	opportunities  int64
	executions     int64
	fetchFailures  int64
	notifyFailures int64
)

func recordWarn(string)  { atomic.AddInt64(&warnCount, 1) }
func recordError(string) { atomic.AddInt64(&errorCount, 1) }

// IncrementScanTick counts a completed scan tick and the triangles it evaluated.
func IncrementScanTick(evaluated int) {
	atomic.AddInt64(&scanTicks, 1)
	atomic.AddInt64(&evaluations, int64(evaluated))
}

func IncrementOpportunity()   { atomic.AddInt64(&opportunities, 1) }
func IncrementExecution()     { atomic.AddInt64(&executions, 1) }
func IncrementFetchFailure()  { atomic.AddInt64(&fetchFailures, 1) }
func IncrementNotifyFailure() { atomic.AddInt64(&notifyFailures, 1) }

// StartReport begins periodic logging of host and scan statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func reportFields() Fields {
	return Fields{
		"warns":           atomic.LoadInt64(&warnCount),
		"errors":          atomic.LoadInt64(&errorCount),
		"scan_ticks":      atomic.LoadInt64(&scanTicks),
		"evaluations":     atomic.LoadInt64(&evaluations),
		"opportunities":   atomic.LoadInt64(&opportunities),
		"executions":      atomic.LoadInt64(&executions),
		"fetch_failures":  atomic.LoadInt64(&fetchFailures),
		"notify_failures": atomic.LoadInt64(&notifyFailures),
		"goroutines":      runtime.NumGoroutine(),
	}
}

func logReport(ctx context.Context, log *Log) {
	fields := reportFields()

	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	memMB := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memMB = float64(vm.Used) / 1024 / 1024
	}
	fields["cpu_percent"] = cpuPct
	fields["memory_mb"] = int64(memMB)

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	counter := func(name, key string) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(fields[key].(int64))),
		}
	}
	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(memMB)},
		counter("ScanTicks", "scan_ticks"),
		counter("Evaluations", "evaluations"),
		counter("Opportunities", "opportunities"),
		counter("Executions", "executions"),
		counter("FetchFailures", "fetch_failures"),
		counter("NotifyFailures", "notify_failures"),
	}
	publishMetrics(ctx, data)
}
