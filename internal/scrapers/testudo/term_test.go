package testudo

import (
	"testing"
	"time"

	"testudot/internal/components/chrono"

	"github.com/stretchr/testify/require"
)

func TestCurrentTerm(t *testing.T) {
	tz := chrono.Eastern()

	testCases := []struct {
		now      time.Time
		expected string
	}{
		{now: time.Date(2025, time.January, 10, 0, 0, 0, 0, tz), expected: "202501"},
		{now: time.Date(2025, time.February, 28, 23, 0, 0, 0, tz), expected: "202501"},
		{now: time.Date(2025, time.March, 1, 0, 0, 0, 0, tz), expected: "202508"},
		{now: time.Date(2025, time.September, 30, 0, 0, 0, 0, tz), expected: "202508"},
		{now: time.Date(2025, time.October, 1, 0, 0, 0, 0, tz), expected: "202601"},
		{now: time.Date(2025, time.December, 31, 0, 0, 0, 0, tz), expected: "202601"},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, CurrentTerm(test.now), test.now.String())
	}
}

func TestParseTerm(t *testing.T) {
	term, err := ParseTerm("202601")
	require.NoError(t, err)
	require.Equal(t, Term{Year: 2026, Semester: SemesterSpring}, term)
	require.Equal(t, "Spring 2026", term.Label())
	require.Equal(t, "202601", term.ID())

	term, err = ParseTerm("202508")
	require.NoError(t, err)
	require.Equal(t, "Fall 2025", term.Label())

	for _, bad := range []string{"", "2026", "202605", "20260101", "abcd01"} {
		_, err := ParseTerm(bad)
		require.Error(t, err, bad)
	}

	// semester codes are always two digits
	_, err = ParseTerm("20261")
	require.ErrorContains(t, err, "expected 6 characters")
}
