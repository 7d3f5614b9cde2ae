package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"testudot/internal/sections"
)

//go:embed digest.html.tmpl
var digestHTML string

//go:embed digest.txt.tmpl
var digestText string

var (
	htmlDigest = htmltemplate.Must(htmltemplate.New("digest.html").Parse(digestHTML))
	textDigest = texttemplate.Must(texttemplate.New("digest.txt").Parse(digestText))
)

type digestBlock struct {
	SectionID  string
	Badge      string
	BadgeStyle htmltemplate.CSS
	Instructor string
	Detail     string
	Times      []string
}

type digestView struct {
	Course string
	Blocks []digestBlock
}

const (
	badgeNew     htmltemplate.CSS = "background-color: #e6fffa; color: #234e52;"
	badgeChanged htmltemplate.CSS = "background-color: #fffaf0; color: #7b341e;"
	badgeRemoved htmltemplate.CSS = "background-color: #fff5f5; color: #742a2a;"
)

// SeatsText describes the seats of a section, ex. "3 / 30 seats available · 2 waitlisted".
func SeatsText(s sections.Section) string {
	text := fmt.Sprintf("%d / %d seats available", s.OpenSeats, s.TotalSeats)
	if s.WaitlistCount > 0 {
		text += fmt.Sprintf(" · %d waitlisted", s.WaitlistCount)
	}
	return text
}

// DeltaText describes a change in open seats, ex. "3 new seats (now 5 available)".
func DeltaText(e sections.Event) string {
	d := e.Delta()
	if d > 0 {
		return fmt.Sprintf("%d new seats (now %d available)", d, e.To)
	}
	return fmt.Sprintf("%d seats fewer (now %d available)", -d, e.To)
}

func classTimeText(t sections.ClassTime) string {
	span := t.StartTime
	if t.EndTime != "" {
		span = fmt.Sprintf("%s - %s", t.StartTime, t.EndTime)
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s", t.Days, span))
}

func buildView(course string, events []sections.Event) digestView {
	view := digestView{Course: sections.NormalizeCourse(course)}
	for _, e := range events {
		switch e.Kind {
		case sections.KindNewSection:
			block := digestBlock{
				SectionID:  e.SectionID,
				Badge:      "New Section",
				BadgeStyle: badgeNew,
			}
			if e.Section != nil {
				block.Instructor = e.Section.Instructor
				block.Detail = SeatsText(*e.Section)
				for _, t := range e.Section.ClassTimes {
					if text := classTimeText(t); text != "" {
						block.Times = append(block.Times, text)
					}
				}
			}
			view.Blocks = append(view.Blocks, block)
		case sections.KindSeatsChanged:
			view.Blocks = append(view.Blocks, digestBlock{
				SectionID:  e.SectionID,
				Badge:      "Seats Changed",
				BadgeStyle: badgeChanged,
				Instructor: e.Instructor,
				Detail:     DeltaText(e),
			})
		case sections.KindSectionRemoved:
			view.Blocks = append(view.Blocks, digestBlock{
				SectionID:  e.SectionID,
				Badge:      "Removed",
				BadgeStyle: badgeRemoved,
			})
		}
	}
	return view
}

// Subject is the subject line of the digest sent for a course.
func Subject(course string) string {
	return fmt.Sprintf("changes detected in %s sections", strings.ToLower(sections.NormalizeCourse(course)))
}

// RenderDigest renders the html and plain text bodies of the email sent for a course.
func RenderDigest(course string, events []sections.Event) (html string, text string, err error) {
	view := buildView(course, events)

	var htmlOut bytes.Buffer
	err = htmlDigest.Execute(&htmlOut, view)
	if err != nil {
		return "", "", fmt.Errorf("render html digest: %w", err)
	}

	var textOut bytes.Buffer
	err = textDigest.Execute(&textOut, view)
	if err != nil {
		return "", "", fmt.Errorf("render text digest: %w", err)
	}

	return htmlOut.String(), textOut.String(), nil
}
