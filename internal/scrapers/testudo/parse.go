package testudo

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"testudot/internal/sections"
	"testudot/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// seatCount reads a counter, a missing or empty element counts as 0.
func seatCount(s *goquery.Selection, selector string) (int, error) {
	text := htmlutil.FirstText(s, selector)
	if text == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", selector, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s: negative count %d", selector, n)
	}
	return n, nil
}

func parseSections(body []byte, courseName string, now time.Time) (sections.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	snapshot := sections.Snapshot{}
	var parseErr error
	doc.Find(".section").EachWithBreak(func(i int, s *goquery.Selection) bool {
		section, err := parseSection(s, courseName, now)
		if err != nil {
			parseErr = fmt.Errorf("section %d: %w", i, err)
			return false
		}
		snapshot = append(snapshot, section)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return snapshot, nil
}

func parseSection(s *goquery.Selection, courseName string, now time.Time) (sections.Section, error) {
	sectionID := htmlutil.FirstText(s, ".section-id")

	totalSeats, err := seatCount(s, ".total-seats-count")
	if err != nil {
		return sections.Section{}, err
	}
	openSeats, err := seatCount(s, ".open-seats-count")
	if err != nil {
		return sections.Section{}, err
	}
	waitlist, err := seatCount(s, ".waitlist-count")
	if err != nil {
		return sections.Section{}, err
	}

	classTimes := []sections.ClassTime{}
	s.Find(".section-day-time-group").Each(func(_ int, group *goquery.Selection) {
		classTimes = append(classTimes, sections.ClassTime{
			Days:      htmlutil.FirstText(group, ".section-days"),
			StartTime: htmlutil.FirstText(group, ".class-start-time"),
			EndTime:   htmlutil.FirstText(group, ".class-end-time"),
		})
	})

	return sections.Section{
		CourseName:    courseName,
		SectionID:     sectionID,
		Instructor:    htmlutil.FirstText(s, ".section-instructor"),
		TotalSeats:    totalSeats,
		OpenSeats:     openSeats,
		WaitlistCount: waitlist,
		ClassTimes:    classTimes,
		CompositeID:   sections.CompositeID(courseName, sectionID),
		LastUpdated:   &now,
	}, nil
}
