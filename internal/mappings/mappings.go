// Package mappings keeps track of which recipients are subscribed to which courses.
package mappings

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/mail"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"testudot/internal/components/assert"
	"testudot/internal/components/telemetry"
	"testudot/internal/sections"
	"testudot/lib/osutil"

	"github.com/antzucaro/matchr"
)

const report_file_write = "file.write"

const DefaultPath = "user-course-map.json"

// File is a mapping source backed by a JSON object of recipient email to course list.
type File struct {
	path  string
	mutex sync.Mutex
	tel   telemetry.API
}

func NewFile(path string, tel telemetry.API) *File {
	assert.NotNil(tel)
	if path == "" {
		path = DefaultPath
	}
	return &File{
		path: path,
		tel:  telemetry.NewScopedAPI("mappings", tel),
	}
}

func (f *File) Path() string {
	return f.path
}

func (f *File) read() (map[string][]string, error) {
	buff, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	out := map[string][]string{}
	err = json.Unmarshal(buff, &out)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return out, nil
}

func (f *File) write(mappings map[string][]string) error {
	buff, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	return osutil.WriteFileAtomic(f.path, buff, 0644)
}

// AllMappings returns every recipient and their courses. A missing file means there are
// no subscriptions, an unreadable or corrupt file is an error.
func (f *File) AllMappings() (map[string][]string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.read()
}

// Courses is the sorted union of every subscribed course.
func (f *File) Courses() ([]string, error) {
	mappings, err := f.AllMappings()
	if err != nil {
		return nil, err
	}
	return Courses(mappings), nil
}

// RecipientsFor returns the sorted recipients subscribed to a course.
func (f *File) RecipientsFor(course string) ([]string, error) {
	mappings, err := f.AllMappings()
	if err != nil {
		return nil, err
	}

	course = sections.NormalizeCourse(course)
	var recipients []string
	for email, courses := range mappings {
		for _, c := range courses {
			if sections.NormalizeCourse(c) == course {
				recipients = append(recipients, email)
				break
			}
		}
	}
	slices.Sort(recipients)
	return recipients, nil
}

func Courses(mappings map[string][]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, courses := range mappings {
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
	}
	slices.Sort(out)
	return out
}

// NormalizeEmail lower-cases and validates an email address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", fmt.Errorf("invalid email %q: %w", email, err)
	}
	if addr.Address != email {
		return "", fmt.Errorf("invalid email %q: expected a bare address", email)
	}
	return email, nil
}

// SplitCourses accepts courses separated by commas, whitespace or both.
func SplitCourses(args ...string) []string {
	var out []string
	for _, arg := range args {
		for _, field := range strings.FieldsFunc(arg, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		}) {
			out = append(out, field)
		}
	}
	return out
}

// Add subscribes a recipient to courses, courses the recipient already has are skipped.
// It returns the recipient's full course list.
func (f *File) Add(email string, courses []string) ([]string, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	mappings, err := f.read()
	if err != nil {
		return nil, err
	}

	existing := mappings[email]
	for _, course := range courses {
		course = sections.NormalizeCourse(course)
		if course == "" || slices.Contains(existing, course) {
			continue
		}
		existing = append(existing, course)
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("no courses given for %s", email)
	}
	mappings[email] = existing

	err = f.write(mappings)
	if err != nil {
		f.tel.ReportBroken(report_file_write, err)
		return nil, fmt.Errorf("save mappings: %w", err)
	}
	return existing, nil
}

// Remove unsubscribes a recipient from every course, it reports whether the recipient
// was subscribed at all.
func (f *File) Remove(email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	f.mutex.Lock()
	defer f.mutex.Unlock()

	mappings, err := f.read()
	if err != nil {
		return false, err
	}
	if _, ok := mappings[email]; !ok {
		return false, nil
	}
	delete(mappings, email)

	err = f.write(mappings)
	if err != nil {
		f.tel.ReportBroken(report_file_write, err)
		return false, fmt.Errorf("save mappings: %w", err)
	}
	return true, nil
}

// Suggest returns the subscribed recipient most similar to email, if any is similar enough.
func (f *File) Suggest(email string) (string, bool) {
	mappings, err := f.AllMappings()
	if err != nil {
		return "", false
	}

	email = strings.ToLower(strings.TrimSpace(email))
	best := ""
	bestScore := 0.0
	for _, candidate := range slices.Sorted(maps.Keys(mappings)) {
		similarity := matchr.JaroWinkler(email, candidate, false)
		if similarity > bestScore {
			best = candidate
			bestScore = similarity
		}
	}
	if bestScore < 0.85 {
		return "", false
	}
	return best, true
}
