package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"testudot/internal/components/assert"
	"testudot/internal/components/chrono"
	"testudot/internal/components/telemetry"
)

const (
	report_daemon_skip  = "daemon.skip"
	report_daemon_watch = "daemon.watch"
	report_daemon_cron  = "daemon.cron"
)

// MappingWatcher calls onChange whenever subscriptions change, until ctx is cancelled.
type MappingWatcher interface {
	Watch(ctx context.Context, debounce time.Duration, onChange func()) error
}

type DaemonOptions struct {
	// Interval between cycles, defaults to 15 minutes. Ignored when Cron is set.
	Interval time.Duration
	// Cron is a standard cron expression evaluated in America/New_York.
	Cron string
	// Term returns the term to monitor, it is called at the start of every cycle.
	Term func() string
	// Watcher triggers an extra cycle when subscriptions change, optional.
	Watcher MappingWatcher
	// WatchDebounce defaults to 2 seconds.
	WatchDebounce time.Duration
	// OnReport is called with the report of every finished cycle, optional.
	OnReport func(Report)
}

// Daemon runs a cycle over every tracked course on startup and then on a schedule.
// Cycles never overlap, a trigger that arrives while a cycle is running is dropped.
type Daemon struct {
	monitor Monitor
	cron    chrono.CronAPI
	opts    DaemonOptions
	tel     telemetry.API

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewDaemon creates a daemon, `cron` is only used when opts.Cron is set and may be nil
// otherwise.
func NewDaemon(monitor Monitor, cron chrono.CronAPI, opts DaemonOptions, tel telemetry.API) *Daemon {
	assert.NotNil(opts.Term)
	assert.NotNil(tel)
	if opts.Cron != "" {
		assert.NotNil(cron)
	}
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.WatchDebounce <= 0 {
		opts.WatchDebounce = 2 * time.Second
	}

	return &Daemon{
		monitor: monitor,
		cron:    cron,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("daemon", tel),
	}
}

// Trigger starts a cycle in the background unless one is already running, it reports
// whether a cycle was started.
func (d *Daemon) Trigger(ctx context.Context, reason string) bool {
	if ctx.Err() != nil {
		return false
	}
	if !d.running.CompareAndSwap(false, true) {
		d.tel.ReportWarning(
			report_daemon_skip,
			fmt.Errorf("previous cycle is still running, skipping cycle triggered by %s", reason),
		)
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.running.Store(false)

		term := d.opts.Term()
		d.tel.ReportDebug(
			fmt.Sprintf("starting cycle (%s)", reason),
			telemetry.KV{Key: "term", Value: term},
		)
		report := d.monitor.RunAll(ctx, term)
		if d.opts.OnReport != nil {
			d.opts.OnReport(report)
		}
	}()
	return true
}

// Run blocks until ctx is cancelled and the cycle in flight, if any, has finished.
func (d *Daemon) Run(ctx context.Context) error {
	d.Trigger(ctx, "startup")

	var tick <-chan time.Time
	if d.opts.Cron != "" {
		err := d.cron.Cron(d.opts.Cron, func() {
			d.Trigger(ctx, "cron")
		})
		if err != nil {
			d.tel.ReportBroken(report_daemon_cron, err, d.opts.Cron)
			d.wg.Wait()
			return fmt.Errorf("schedule %q: %w", d.opts.Cron, err)
		}
	} else {
		ticker := time.NewTicker(d.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	if d.opts.Watcher != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			err := d.opts.Watcher.Watch(ctx, d.opts.WatchDebounce, func() {
				d.Trigger(ctx, "subscription change")
			})
			if err != nil {
				d.tel.ReportWarning(report_daemon_watch, err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			if d.opts.Cron != "" {
				d.cron.Stop()
			}
			d.wg.Wait()
			return nil
		case <-tick:
			d.Trigger(ctx, "interval")
		}
	}
}
