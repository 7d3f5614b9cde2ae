package sections

import (
	"encoding/json"
	"fmt"
)

type Kind int

const (
	KindNewSection Kind = iota + 1
	KindSeatsChanged
	KindSectionRemoved
)

func (k Kind) String() string {
	switch k {
	case KindNewSection:
		return "new_section"
	case KindSeatsChanged:
		return "seats_changed"
	case KindSectionRemoved:
		return "section_removed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "new_section":
		*k = KindNewSection
	case "seats_changed":
		*k = KindSeatsChanged
	case "section_removed":
		*k = KindSectionRemoved
	default:
		return fmt.Errorf("unknown change kind %q", string(text))
	}
	return nil
}

// Event is a single change between two snapshots of a course.
//
// Which fields are meaningful depends on Kind:
//   - KindNewSection: Section.
//   - KindSeatsChanged: SectionID, Instructor, From, To.
//   - KindSectionRemoved: SectionID, CourseName, CompositeID.
type Event struct {
	Kind Kind `json:"type"`

	Section *Section `json:"data,omitempty"`

	SectionID   string `json:"sectionId,omitempty"`
	CourseName  string `json:"courseName,omitempty"`
	CompositeID string `json:"custom_course_id,omitempty"`
	Instructor  string `json:"instructor,omitempty"`
	From        int    `json:"from"`
	To          int    `json:"to"`
}

func NewSectionEvent(section Section) Event {
	return Event{
		Kind:      KindNewSection,
		Section:   &section,
		SectionID: section.SectionID,
	}
}

func SeatsChangedEvent(sectionID, instructor string, from, to int) Event {
	return Event{
		Kind:       KindSeatsChanged,
		SectionID:  sectionID,
		Instructor: instructor,
		From:       from,
		To:         to,
	}
}

func SectionRemovedEvent(section Section) Event {
	return Event{
		Kind:        KindSectionRemoved,
		SectionID:   section.SectionID,
		CourseName:  section.CourseName,
		CompositeID: section.CompositeID,
	}
}

// Delta is the change in open seats, it is only meaningful for KindSeatsChanged.
func (e Event) Delta() int {
	return e.To - e.From
}

func (e Event) String() string {
	switch e.Kind {
	case KindNewSection:
		return fmt.Sprintf("new section %s", e.SectionID)
	case KindSeatsChanged:
		return fmt.Sprintf("seats changed for section %s: %d -> %d", e.SectionID, e.From, e.To)
	case KindSectionRemoved:
		return fmt.Sprintf("section removed: %s", e.SectionID)
	}
	return e.Kind.String()
}

// MarshalJSON drops the seat fields for kinds that do not use them.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	if e.Kind == KindSeatsChanged {
		return json.Marshal(plain(e))
	}
	return json.Marshal(struct {
		plain
		From *int `json:"from,omitempty"`
		To   *int `json:"to,omitempty"`
	}{plain: plain(e)})
}
