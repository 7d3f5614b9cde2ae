// Package sections holds the records the monitor moves around: the sections of a course
// as they were scraped and the change events computed between two scrapes.
package sections

import (
	"strings"
	"time"
)

type ClassTime struct {
	Days      string `json:"days"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Section is a single registration unit of a course at a point in time.
//
// JSON names follow the state files written by earlier versions of the monitor so old
// state still loads.
type Section struct {
	CourseName    string      `json:"course_name"`
	SectionID     string      `json:"section_id"`
	Instructor    string      `json:"instructor"`
	TotalSeats    int         `json:"total_seats"`
	OpenSeats     int         `json:"open_seats"`
	WaitlistCount int         `json:"waitlist_count"`
	ClassTimes    []ClassTime `json:"class_times"`
	CompositeID   string      `json:"custom_course_id"`
	LastUpdated   *time.Time  `json:"last_updated,omitempty"`

	// Removed is reserved for keeping sections around in state after they disappear.
	// Nothing sets it yet, state is always replaced wholesale.
	Removed bool `json:"removed,omitempty"`
}

// CompositeID is the identifier used to correlate a section across systems
// (ex. email templates), it is never used to match sections between snapshots.
func CompositeID(courseName, sectionID string) string {
	return courseName + "-" + sectionID
}

// Snapshot is every section observed for one course at one instant.
type Snapshot []Section

// IDs returns the section ids in snapshot order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s))
	for i, section := range s {
		ids[i] = section.SectionID
	}
	return ids
}

// NormalizeCourse upper-cases and trims a course name so "cmsc216 " and "CMSC216"
// resolve to the same storage key.
func NormalizeCourse(course string) string {
	return strings.ToUpper(strings.TrimSpace(course))
}
