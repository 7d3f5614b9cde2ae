// Package store persists the last snapshot seen for every course.
package store

import (
	"context"
	"fmt"
	"io"

	"testudot/internal/sections"
)

type Mode string

const (
	// ModeLocal keeps one JSON file per course in a state directory.
	ModeLocal Mode = "local"
	// ModeSQLite keeps snapshots in a local sqlite database.
	ModeSQLite Mode = "sqlite"
	// ModeRemote keeps snapshots in a remote libsql database.
	ModeRemote Mode = "remote"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeLocal, ModeSQLite, ModeRemote:
		return Mode(value), nil
	case "redis":
		// earlier releases called the remote store "redis"
		return ModeRemote, nil
	}
	return "", fmt.Errorf("unknown persistence mode %q (expected local, sqlite or remote)", value)
}

// Backend is a snapshot store, implementations are safe for concurrent use as long as
// concurrent calls use distinct courses.
type Backend interface {
	// Load returns the stored snapshot of a course, a course that was never saved has an
	// empty snapshot and no error.
	Load(ctx context.Context, course string) (sections.Snapshot, error)
	// Save replaces the stored snapshot of a course.
	Save(ctx context.Context, course string, snapshot sections.Snapshot) error
	io.Closer
}

type Config struct {
	Mode Mode

	// StateDir is used by ModeLocal.
	StateDir string
	// SQLitePath is used by ModeSQLite.
	SQLitePath string
	// RemoteURL and AuthToken are used by ModeRemote.
	RemoteURL string
	AuthToken string
}

// Open creates the backend selected by cfg.Mode, the caller owns the result and must
// close it.
func Open(cfg Config) (Backend, error) {
	switch cfg.Mode {
	case ModeLocal, "":
		return NewJSONFile(cfg.StateDir)
	case ModeSQLite:
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQL(db)
	case ModeRemote:
		db, err := OpenRemote(cfg.RemoteURL, cfg.AuthToken)
		if err != nil {
			return nil, err
		}
		return NewSQL(db)
	}
	return nil, fmt.Errorf("open store: unknown mode %q", cfg.Mode)
}

// Key is the name a course's snapshot is stored under.
func Key(course string) string {
	return "testudot:state:" + sections.NormalizeCourse(course)
}
