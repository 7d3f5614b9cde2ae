package testudo

import (
	"fmt"
	"strconv"
	"time"
)

const (
	SemesterSpring = "01"
	SemesterFall   = "08"
)

// CurrentTerm guesses the term students are registering for at `now`.
//
// From October on registration is for the coming spring, through February it is still
// for the spring of the current year, the rest of the year it is for the fall.
func CurrentTerm(now time.Time) string {
	year := now.Year()
	month := now.Month()

	switch {
	case month >= time.October:
		return fmt.Sprintf("%d%s", year+1, SemesterSpring)
	case month <= time.February:
		return fmt.Sprintf("%d%s", year, SemesterSpring)
	}
	return fmt.Sprintf("%d%s", year, SemesterFall)
}

type Term struct {
	Year     int
	Semester string
}

func (t Term) ID() string {
	return fmt.Sprintf("%d%s", t.Year, t.Semester)
}

// Label is the human readable name of the term, ex. "Spring 2026".
func (t Term) Label() string {
	switch t.Semester {
	case SemesterSpring:
		return fmt.Sprintf("Spring %d", t.Year)
	case SemesterFall:
		return fmt.Sprintf("Fall %d", t.Year)
	}
	return t.ID()
}

// ParseTerm validates a term id of the form `{year}{semester}`, a four digit year followed
// by a two digit semester code.
func ParseTerm(id string) (Term, error) {
	if len(id) != 6 {
		return Term{}, fmt.Errorf("term id %q: expected 6 characters like 202601", id)
	}
	year, err := strconv.Atoi(id[:4])
	if err != nil || year < 1900 {
		return Term{}, fmt.Errorf("term id %q: invalid year", id)
	}
	semester := id[4:]
	if semester != SemesterSpring && semester != SemesterFall {
		return Term{}, fmt.Errorf("term id %q: unknown semester code %q", id, semester)
	}
	return Term{Year: year, Semester: semester}, nil
}
