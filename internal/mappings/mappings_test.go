package mappings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"testudot/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func newTestFile(t *testing.T) (*File, *telemetry.Recorder) {
	tel := telemetry.NewRecorder()
	return NewFile(filepath.Join(t.TempDir(), "user-course-map.json"), tel), tel
}

func TestAddAndRemove(t *testing.T) {
	f, _ := newTestFile(t)

	all, err := f.AllMappings()
	require.NoError(t, err)
	require.Empty(t, all)

	courses, err := f.Add(" Alice@Terpmail.umd.edu ", []string{"cmsc216 ", "MATH140"})
	require.NoError(t, err)
	require.Equal(t, []string{"CMSC216", "MATH140"}, courses)

	courses, err = f.Add("alice@terpmail.umd.edu", []string{"math140", "CMSC330"})
	require.NoError(t, err)
	require.Equal(t, []string{"CMSC216", "MATH140", "CMSC330"}, courses)

	_, err = f.Add("bob@umd.edu", []string{"cmsc330"})
	require.NoError(t, err)

	all, err = f.AllMappings()
	require.NoError(t, err)
	require.Equal(t, map[string][]string{
		"alice@terpmail.umd.edu": {"CMSC216", "MATH140", "CMSC330"},
		"bob@umd.edu":            {"CMSC330"},
	}, all)

	union, err := f.Courses()
	require.NoError(t, err)
	require.Equal(t, []string{"CMSC216", "CMSC330", "MATH140"}, union)

	recipients, err := f.RecipientsFor("cmsc330")
	require.NoError(t, err)
	require.Equal(t, []string{"alice@terpmail.umd.edu", "bob@umd.edu"}, recipients)

	removed, err := f.Remove("BOB@umd.edu")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = f.Remove("bob@umd.edu")
	require.NoError(t, err)
	require.False(t, removed)

	recipients, err = f.RecipientsFor("CMSC330")
	require.NoError(t, err)
	require.Equal(t, []string{"alice@terpmail.umd.edu"}, recipients)
}

func TestAddRejectsBadInput(t *testing.T) {
	f, _ := newTestFile(t)

	_, err := f.Add("not an email", []string{"CMSC216"})
	require.Error(t, err)

	_, err = f.Add("Alice <alice@umd.edu>", []string{"CMSC216"})
	require.Error(t, err)

	_, err = f.Add("alice@umd.edu", []string{" ", ""})
	require.Error(t, err)

	_, err = os.Stat(f.Path())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCorruptFile(t *testing.T) {
	f, _ := newTestFile(t)
	require.NoError(t, os.WriteFile(f.Path(), []byte("{not json"), 0644))

	_, err := f.AllMappings()
	require.ErrorContains(t, err, "decode")

	_, err = f.Courses()
	require.Error(t, err)
	_, err = f.RecipientsFor("CMSC216")
	require.Error(t, err)

	_, err = f.Add("alice@umd.edu", []string{"CMSC216"})
	require.Error(t, err)
}

func TestSuggest(t *testing.T) {
	f, _ := newTestFile(t)
	_, err := f.Add("alice.smith@terpmail.umd.edu", []string{"CMSC216"})
	require.NoError(t, err)
	_, err = f.Add("zed@umd.edu", []string{"CMSC216"})
	require.NoError(t, err)

	suggestion, ok := f.Suggest("alice.smit@terpmail.umd.edu")
	require.True(t, ok)
	require.Equal(t, "alice.smith@terpmail.umd.edu", suggestion)

	_, ok = f.Suggest("qqqq")
	require.False(t, ok)
}

func TestSplitCourses(t *testing.T) {
	require.Equal(
		t,
		[]string{"CMSC216", "math140", "CMSC330", "ENGL101"},
		SplitCourses("CMSC216,math140", "CMSC330 , ENGL101"),
	)
}

func TestWatch(t *testing.T) {
	f, _ := newTestFile(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	changed := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- f.Watch(ctx, 50*time.Millisecond, func() {
			changed <- struct{}{}
		})
	}()

	// give the watcher time to register before writing
	time.Sleep(200 * time.Millisecond)

	_, err := f.Add("alice@umd.edu", []string{"CMSC216"})
	require.NoError(t, err)
	_, err = f.Add("alice@umd.edu", []string{"MATH140"})
	require.NoError(t, err)

	select {
	case <-changed:
	case <-ctx.Done():
		t.Fatal("watch did not report the change")
	}

	cancel()
	require.NoError(t, <-done)
}
