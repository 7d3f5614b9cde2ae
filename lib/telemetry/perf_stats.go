package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type perfGauges struct {
	cpu        metric.Float64Gauge
	memory     metric.Int64Gauge
	goroutines metric.Int64Gauge
}

// InstrumentPerfStats records cpu, memory and goroutine gauges every `interval` until ctx
// is cancelled. It must be called after Setup so the gauges use the installed provider.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	meter := otel.Meter("testudot/perf_stats")
	var gauges perfGauges
	var err error
	gauges.cpu, err = meter.Float64Gauge("cpu_usage")
	if err != nil {
		slog.Warn("create perf gauge", "err", err)
		return
	}
	gauges.memory, err = meter.Int64Gauge("allocated_mb")
	if err != nil {
		slog.Warn("create perf gauge", "err", err)
		return
	}
	gauges.goroutines, err = meter.Int64Gauge("goroutine_count")
	if err != nil {
		slog.Warn("create perf gauge", "err", err)
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var memStats runtime.MemStats
		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)

				// percent over the last interval, non-blocking
				usage, err := cpu.PercentWithContext(ctx, 0, false)
				if err == nil && len(usage) > 0 {
					gauges.cpu.Record(ctx, usage[0])
				}
				gauges.memory.Record(ctx, int64(memStats.Alloc/1_000_000))
				gauges.goroutines.Record(ctx, int64(runtime.NumGoroutine()))
			case <-ctx.Done():
				return
			}
		}
	}()
}
