package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"testudot/internal/sections"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testSnapshot() sections.Snapshot {
	updated := time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)
	return sections.Snapshot{
		{
			CourseName:    "CMSC216",
			SectionID:     "0101",
			Instructor:    "Larry Herman",
			TotalSeats:    36,
			OpenSeats:     2,
			WaitlistCount: 0,
			ClassTimes: []sections.ClassTime{
				{Days: "MWF", StartTime: "9:00am", EndTime: "9:50am"},
			},
			CompositeID: "CMSC216-0101",
			LastUpdated: &updated,
		},
		{
			CourseName:  "CMSC216",
			SectionID:   "0201",
			TotalSeats:  40,
			ClassTimes:  []sections.ClassTime{},
			CompositeID: "CMSC216-0201",
		},
	}
}

func testBackend(t *testing.T, backend Backend) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	{
		snapshot, err := backend.Load(ctx, "CMSC216")
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		require.Len(t, snapshot, 0)
	}
	{
		err := backend.Save(ctx, "cmsc216", testSnapshot())
		require.NoError(t, err)

		snapshot, err := backend.Load(ctx, "CMSC216")
		require.NoError(t, err)
		diff := cmp.Diff(testSnapshot(), snapshot)
		if diff != "" {
			t.Fatal("snapshot did not round trip", diff)
		}
	}
	{
		err := backend.Save(ctx, "CMSC216", testSnapshot()[:1])
		require.NoError(t, err)

		snapshot, err := backend.Load(ctx, "CMSC216")
		require.NoError(t, err)
		require.Equal(t, []string{"0101"}, snapshot.IDs())

		other, err := backend.Load(ctx, "MATH140")
		require.NoError(t, err)
		require.Len(t, other, 0)
	}
	{
		err := backend.Save(ctx, "CMSC216", nil)
		require.NoError(t, err)

		snapshot, err := backend.Load(ctx, "CMSC216")
		require.NoError(t, err)
		require.Len(t, snapshot, 0)
	}
}

func TestJSONFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	backend, err := NewJSONFile(dir)
	require.NoError(t, err)
	defer backend.Close()

	testBackend(t, backend)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "sections-CMSC216.json", entries[0].Name())
}

func TestJSONFileCorrupt(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "sections-CMSC216.json"), []byte(`[{"section_id": `), 0644)
	require.NoError(t, err)

	backend, err := NewJSONFile(dir)
	require.NoError(t, err)

	_, err = backend.Load(context.Background(), "CMSC216")
	require.Error(t, err)
}

func TestJSONFileLegacyState(t *testing.T) {
	dir := t.TempDir()
	legacy := `[
  {
    "course_name": "MATH140",
    "section_id": "0111",
    "instructor": "Staff",
    "total_seats": 30,
    "open_seats": 4,
    "waitlist_count": 1,
    "class_times": [{"days": "TuTh", "startTime": "11:00am", "endTime": "12:15pm"}],
    "custom_course_id": "MATH140-0111"
  }
]`
	err := os.WriteFile(filepath.Join(dir, "sections-MATH140.json"), []byte(legacy), 0644)
	require.NoError(t, err)

	backend, err := NewJSONFile(dir)
	require.NoError(t, err)

	snapshot, err := backend.Load(context.Background(), "math140")
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	require.Equal(t, 4, snapshot[0].OpenSeats)
	require.Equal(t, "TuTh", snapshot[0].ClassTimes[0].Days)
	require.Nil(t, snapshot[0].LastUpdated)
}

func TestSQL(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	backend, err := NewSQL(db)
	require.NoError(t, err)
	defer backend.Close()

	testBackend(t, backend)

	var key string
	err = db.QueryRow("select course from snapshots").Scan(&key)
	require.NoError(t, err)
	require.Equal(t, "testudot:state:CMSC216", key)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	backend, err := Open(Config{Mode: ModeLocal, StateDir: dir})
	require.NoError(t, err)
	require.IsType(t, JSONFile{}, backend)

	backend, err = Open(Config{Mode: ModeSQLite, SQLitePath: filepath.Join(dir, "db", "state.db")})
	require.NoError(t, err)
	require.IsType(t, SQL{}, backend)
	require.NoError(t, backend.Close())

	_, err = Open(Config{Mode: ModeRemote})
	require.Error(t, err)

	_, err = Open(Config{Mode: "carrier-pigeon"})
	require.Error(t, err)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("redis")
	require.NoError(t, err)
	require.Equal(t, ModeRemote, mode)

	mode, err = ParseMode("sqlite")
	require.NoError(t, err)
	require.Equal(t, ModeSQLite, mode)

	_, err = ParseMode("s3")
	require.Error(t, err)
}
