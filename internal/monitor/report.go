package monitor

import (
	"encoding/json"
	"time"

	"testudot/internal/diff"
	"testudot/internal/sections"
)

// Stage is a step of the pipeline a course goes through every cycle.
type Stage int

const (
	StageIdle Stage = iota
	StageLoading
	StageFetching
	StageDiffing
	StageNotifying
	StagePersisting
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageLoading:
		return "loading"
	case StageFetching:
		return "fetching"
	case StageDiffing:
		return "diffing"
	case StageNotifying:
		return "notifying"
	case StagePersisting:
		return "persisting"
	case StageDone:
		return "done"
	}
	return "unknown"
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is what happened to one course during a cycle.
type Outcome struct {
	Course string
	// Stage is StageDone when the course went through the whole pipeline, otherwise it is
	// the stage the course failed in.
	Stage   Stage
	Events  []sections.Event
	Summary diff.Summary
	// Err is the failure that stopped the course, it is nil for courses that completed.
	Err error
	// Warnings are the recoverable failures the course ran into.
	Warnings []error
	Duration time.Duration
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Notified reports whether a notification was attempted for the course.
func (o Outcome) Notified() bool {
	return o.Succeeded() && len(o.Events) > 0
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	type outcomeJSON struct {
		Course     string           `json:"course"`
		Stage      Stage            `json:"stage"`
		Succeeded  bool             `json:"succeeded"`
		Summary    diff.Summary     `json:"summary"`
		Events     []sections.Event `json:"events"`
		Error      string           `json:"error,omitempty"`
		Warnings   []string         `json:"warnings,omitempty"`
		DurationMs int64            `json:"duration_ms"`
	}

	out := outcomeJSON{
		Course:     o.Course,
		Stage:      o.Stage,
		Succeeded:  o.Succeeded(),
		Summary:    o.Summary,
		Events:     o.Events,
		DurationMs: o.Duration.Milliseconds(),
	}
	if out.Events == nil {
		out.Events = []sections.Event{}
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	for _, w := range o.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	return json.Marshal(out)
}

// Report is the result of a monitoring cycle, it holds an outcome for every course in the
// cycle sorted by course name.
type Report struct {
	ID       string    `json:"id"`
	Term     string    `json:"term"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Outcomes []Outcome `json:"outcomes"`
}

func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// Changed returns the outcomes of courses where a change was detected.
func (r Report) Changed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if len(o.Events) > 0 {
			out = append(out, o)
		}
	}
	return out
}

func (r Report) TotalEvents() int {
	total := 0
	for _, o := range r.Outcomes {
		total += len(o.Events)
	}
	return total
}

func (r Report) Outcome(course string) (Outcome, bool) {
	course = sections.NormalizeCourse(course)
	for _, o := range r.Outcomes {
		if o.Course == course {
			return o, true
		}
	}
	return Outcome{}, false
}
