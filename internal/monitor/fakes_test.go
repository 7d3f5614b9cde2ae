package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"testudot/internal/components/chrono"
	"testudot/internal/components/telemetry"
	"testudot/internal/sections"

	"golang.org/x/time/rate"
)

var testNow = time.Date(2026, time.October, 18, 12, 0, 0, 0, chrono.Eastern())

func section(course, id string, open int) sections.Section {
	return sections.Section{
		CourseName:  course,
		SectionID:   id,
		Instructor:  "Staff",
		TotalSeats:  30,
		OpenSeats:   open,
		CompositeID: sections.CompositeID(course, id),
	}
}

type fakeFetcher struct {
	mutex  sync.Mutex
	data   map[string]sections.Snapshot
	errs   map[string]error
	calls  map[string]int
	before func(ctx context.Context, course string) error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		data:  map[string]sections.Snapshot{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) set(course string, snapshot sections.Snapshot) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.data[course] = snapshot
}

func (f *fakeFetcher) fail(course string, err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.errs[course] = err
}

func (f *fakeFetcher) Fetch(ctx context.Context, course, termID string) (sections.Snapshot, error) {
	f.mutex.Lock()
	f.calls[course]++
	before := f.before
	f.mutex.Unlock()

	if before != nil {
		err := before(ctx, course)
		if err != nil {
			return nil, err
		}
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.errs[course]; err != nil {
		return nil, err
	}
	return append(sections.Snapshot(nil), f.data[course]...), nil
}

// throttledFetcher is a fakeFetcher behind a rate limit, like the testudo client.
type throttledFetcher struct {
	*fakeFetcher
	limiter *rate.Limiter
}

func (f throttledFetcher) Wait(ctx context.Context) error {
	return f.limiter.Wait(ctx)
}

type memStore struct {
	mutex    sync.Mutex
	data     map[string]sections.Snapshot
	loadErrs map[string]error
	saveErrs map[string]error
	saves    int
}

func newMemStore() *memStore {
	return &memStore{
		data:     map[string]sections.Snapshot{},
		loadErrs: map[string]error{},
		saveErrs: map[string]error{},
	}
}

func (s *memStore) Load(ctx context.Context, course string) (sections.Snapshot, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.loadErrs[course]; err != nil {
		return nil, err
	}
	return append(sections.Snapshot{}, s.data[course]...), nil
}

func (s *memStore) Save(ctx context.Context, course string, snapshot sections.Snapshot) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.saveErrs[course]; err != nil {
		return err
	}
	s.saves++
	s.data[course] = append(sections.Snapshot{}, snapshot...)
	return nil
}

func (s *memStore) get(course string) sections.Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.data[course]
}

type dispatchCall struct {
	Course string
	Events []sections.Event
}

type fakeDispatcher struct {
	mutex sync.Mutex
	calls []dispatchCall
	err   error
}

func (d *fakeDispatcher) Send(ctx context.Context, events []sections.Event, course string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.calls = append(d.calls, dispatchCall{Course: course, Events: events})
	return d.err
}

func (d *fakeDispatcher) count() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.calls)
}

type staticMappings map[string][]string

func (m staticMappings) AllMappings() (map[string][]string, error) {
	return m, nil
}

type brokenMappings struct{}

func (brokenMappings) AllMappings() (map[string][]string, error) {
	return nil, fmt.Errorf("permission denied")
}

type harness struct {
	fetcher    *fakeFetcher
	store      *memStore
	dispatcher *fakeDispatcher
	tel        *telemetry.Recorder
	monitor    Monitor
}

func newHarness(mappings MappingSource, opts Options) harness {
	h := harness{
		fetcher:    newFakeFetcher(),
		store:      newMemStore(),
		dispatcher: &fakeDispatcher{},
		tel:        telemetry.NewRecorder(),
	}
	if mappings == nil {
		mappings = staticMappings{}
	}
	h.monitor = NewMonitor(
		h.fetcher,
		h.store,
		h.dispatcher,
		mappings,
		chrono.FixedTime(testNow),
		h.tel,
		opts,
	)
	return h
}
