// Package monitor runs monitoring cycles: for every tracked course it loads the previous
// snapshot, scrapes the current one, notifies subscribers of what changed and saves the
// current snapshot.
package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"testudot/internal/components/assert"
	"testudot/internal/components/chrono"
	"testudot/internal/components/telemetry"
	"testudot/internal/diff"
	"testudot/internal/sections"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_monitor_load     = "monitor.load"
	report_monitor_fetch    = "monitor.fetch"
	report_monitor_dispatch = "monitor.dispatch"
	report_monitor_save     = "monitor.save"
	report_monitor_panic    = "monitor.panic"
	report_monitor_mappings = "monitor.mappings"

	report_monitor_courses  = "monitor.courses"
	report_monitor_changes  = "monitor.changes"
	report_monitor_failures = "monitor.failures"
)

type Fetcher interface {
	Fetch(ctx context.Context, courseName, termID string) (sections.Snapshot, error)
}

// Limiter is implemented by fetchers that throttle their requests. Wait runs before the
// fetch timeout starts, so courses queued behind the limit are not timed out.
type Limiter interface {
	Wait(ctx context.Context) error
}

type Store interface {
	Load(ctx context.Context, course string) (sections.Snapshot, error)
	Save(ctx context.Context, course string, snapshot sections.Snapshot) error
}

type Dispatcher interface {
	Send(ctx context.Context, events []sections.Event, courseName string) error
}

type MappingSource interface {
	AllMappings() (map[string][]string, error)
}

type Options struct {
	// FetchTimeout bounds a single course's fetch, it defaults to 30 seconds. Time spent
	// waiting on a Limiter is not counted.
	FetchTimeout time.Duration
}

type Monitor struct {
	fetcher      Fetcher
	store        Store
	dispatcher   Dispatcher
	mappings     MappingSource
	time         chrono.TimeAPI
	tel          telemetry.API
	tracer       trace.Tracer
	fetchTimeout time.Duration
}

func NewMonitor(
	fetcher Fetcher,
	store Store,
	dispatcher Dispatcher,
	mappings MappingSource,
	clock chrono.TimeAPI,
	tel telemetry.API,
	opts Options,
) Monitor {
	assert.NotNil(fetcher)
	assert.NotNil(store)
	assert.NotNil(dispatcher)
	assert.NotNil(mappings)
	assert.NotNil(clock)
	assert.NotNil(tel)

	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}

	return Monitor{
		fetcher:      fetcher,
		store:        store,
		dispatcher:   dispatcher,
		mappings:     mappings,
		time:         clock,
		tel:          telemetry.NewScopedAPI("monitor", tel),
		tracer:       otel.Tracer("testudot/monitor"),
		fetchTimeout: opts.FetchTimeout,
	}
}

// dedupeCourses normalizes course names and drops empty and repeated ones, keeping the
// order they were first seen in.
func dedupeCourses(courses []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range courses {
		c = sections.NormalizeCourse(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// TrackedCourses is the distinct set of courses anyone is subscribed to.
func (m Monitor) TrackedCourses() ([]string, error) {
	mappings, err := m.mappings.AllMappings()
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}

	var all []string
	for _, courses := range mappings {
		all = append(all, courses...)
	}
	out := dedupeCourses(all)
	slices.Sort(out)
	return out, nil
}

// RunAll runs a cycle over every tracked course.
func (m Monitor) RunAll(ctx context.Context, termID string) Report {
	courses, err := m.TrackedCourses()
	if err != nil {
		m.tel.ReportBroken(report_monitor_mappings, err)
	}
	if len(courses) == 0 {
		m.tel.ReportDebug("no courses to monitor")
	}
	return m.RunCycle(ctx, termID, courses)
}

// RunCycle processes every course concurrently and waits for all of them. It never fails,
// the report contains an outcome for every distinct course.
func (m Monitor) RunCycle(ctx context.Context, termID string, courses []string) Report {
	courses = dedupeCourses(courses)

	report := Report{
		ID:       uuid.NewString(),
		Term:     termID,
		Start:    m.time.Now(),
		Outcomes: make([]Outcome, len(courses)),
	}

	ctx, span := m.tracer.Start(ctx, "monitor.cycle", trace.WithAttributes(
		attribute.String("cycle.id", report.ID),
		attribute.String("term", termID),
		attribute.Int("courses", len(courses)),
	))
	defer span.End()

	wg := sync.WaitGroup{}
	for i, course := range courses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// each goroutine owns its own slot
			report.Outcomes[i] = m.runCourse(ctx, termID, course)
		}()
	}
	wg.Wait()

	slices.SortFunc(report.Outcomes, func(a, b Outcome) int {
		return strings.Compare(a.Course, b.Course)
	})
	report.End = m.time.Now()

	failures := len(report.Failed())
	m.tel.ReportCount(report_monitor_courses, int64(len(courses)))
	m.tel.ReportCount(report_monitor_changes, int64(report.TotalEvents()))
	m.tel.ReportCount(report_monitor_failures, int64(failures))
	if failures > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d courses failed", failures, len(courses)))
	}

	return report
}

func (m Monitor) runCourse(ctx context.Context, termID, course string) (outcome Outcome) {
	start := time.Now()
	outcome = Outcome{Course: course, Stage: StageIdle}

	ctx, span := m.tracer.Start(ctx, "monitor.course", trace.WithAttributes(
		attribute.String("course", course),
	))
	defer span.End()

	defer func() {
		outcome.Duration = time.Since(start)

		r := recover()
		if r == nil {
			return
		}
		err := &PanicError{Course: course, Value: r, Stack: debug.Stack()}
		outcome.Err = err
		m.tel.ReportBroken(
			report_monitor_panic,
			err,
			telemetry.KV{Key: "stage", Value: outcome.Stage.String()},
			telemetry.KV{Key: "stack", Value: string(err.Stack)},
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "panic")
	}()

	outcome.Stage = StageLoading
	previous, err := m.store.Load(ctx, course)
	if err != nil {
		err = &StoreReadError{Course: course, Err: err}
		outcome.Warnings = append(outcome.Warnings, err)
		m.tel.ReportWarning(report_monitor_load, err)
		previous = sections.Snapshot{}
	}

	outcome.Stage = StageFetching
	current, err := m.fetch(ctx, course, termID)
	if err != nil {
		outcome.Err = err
		m.tel.ReportBroken(report_monitor_fetch, err, telemetry.KV{Key: "course", Value: course})
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return outcome
	}

	outcome.Stage = StageDiffing
	outcome.Events = diff.Compute(previous, current)
	outcome.Summary = diff.Summarize(outcome.Events)
	span.SetAttributes(attribute.Int("changes", len(outcome.Events)))

	if len(outcome.Events) > 0 {
		m.tel.ReportDebug(
			fmt.Sprintf("changes detected in %s: %s", course, outcome.Summary),
			telemetry.KV{Key: "term", Value: termID},
		)

		outcome.Stage = StageNotifying
		err = m.dispatcher.Send(ctx, outcome.Events, course)
		if err != nil {
			err = &DispatchError{Course: course, Err: err}
			outcome.Warnings = append(outcome.Warnings, err)
			m.tel.ReportWarning(report_monitor_dispatch, err)
		}
	}

	outcome.Stage = StagePersisting
	err = m.store.Save(ctx, course, current)
	if err != nil {
		err = &StoreWriteError{Course: course, Err: err}
		outcome.Warnings = append(outcome.Warnings, err)
		m.tel.ReportWarning(report_monitor_save, err)
	}

	outcome.Stage = StageDone
	return outcome
}

func (m Monitor) fetch(ctx context.Context, course, termID string) (sections.Snapshot, error) {
	if limiter, ok := m.fetcher.(Limiter); ok {
		err := limiter.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: wait for rate limit: %w", course, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	snapshot, err := m.fetcher.Fetch(ctx, course, termID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		snapshot = sections.Snapshot{}
	}
	return snapshot, nil
}
