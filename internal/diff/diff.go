// Package diff classifies what changed between two snapshots of a course.
package diff

import (
	"fmt"
	"strings"

	"testudot/internal/sections"
)

// Compute returns the change events between previous and current.
//
// Sections are matched by SectionID alone. Events for sections of current come first in
// the order of current, followed by removals in the order of previous. A section id yields
// at most one event, an existence change always wins over a seat change.
//
// When a snapshot holds duplicate ids, only the first occurrence is considered.
func Compute(previous, current sections.Snapshot) []sections.Event {
	prevByID := index(previous)
	curByID := index(current)

	var events []sections.Event
	seen := make(map[string]struct{}, len(current))
	for _, cur := range current {
		if _, dup := seen[cur.SectionID]; dup {
			continue
		}
		seen[cur.SectionID] = struct{}{}

		prev, ok := prevByID[cur.SectionID]
		if !ok {
			events = append(events, sections.NewSectionEvent(cur))
			continue
		}
		if prev.OpenSeats != cur.OpenSeats {
			events = append(events, sections.SeatsChangedEvent(
				cur.SectionID,
				cur.Instructor,
				prev.OpenSeats,
				cur.OpenSeats,
			))
		}
	}

	for _, prev := range previous {
		if _, ok := curByID[prev.SectionID]; ok {
			continue
		}
		if _, dup := seen[prev.SectionID]; dup {
			continue
		}
		seen[prev.SectionID] = struct{}{}
		if prev.Removed {
			continue
		}
		events = append(events, sections.SectionRemovedEvent(prev))
	}

	return events
}

func index(snapshot sections.Snapshot) map[string]sections.Section {
	out := make(map[string]sections.Section, len(snapshot))
	for _, s := range snapshot {
		if _, exists := out[s.SectionID]; exists {
			continue
		}
		out[s.SectionID] = s
	}
	return out
}

// Summary is the number of events of each kind.
type Summary struct {
	New     int `json:"new"`
	Changed int `json:"changed"`
	Removed int `json:"removed"`
}

func Summarize(events []sections.Event) Summary {
	var s Summary
	for _, e := range events {
		switch e.Kind {
		case sections.KindNewSection:
			s.New++
		case sections.KindSeatsChanged:
			s.Changed++
		case sections.KindSectionRemoved:
			s.Removed++
		}
	}
	return s
}

func (s Summary) Total() int {
	return s.New + s.Changed + s.Removed
}

func (s Summary) String() string {
	if s.Total() == 0 {
		return "no changes"
	}
	var parts []string
	if s.New > 0 {
		parts = append(parts, fmt.Sprintf("%d new", s.New))
	}
	if s.Changed > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", s.Changed))
	}
	if s.Removed > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", s.Removed))
	}
	return strings.Join(parts, ", ")
}
