package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"testudot/internal/sections"

	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

// OpenSQLite opens (creating if needed) a local sqlite database, ":memory:" is accepted.
func OpenSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, wrapOpenDB(fmt.Errorf("a path was not specified"))
	}
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}

	return db, nil
}

// OpenRemote opens a remote libsql database, ex. `libsql://<db>.turso.io`.
func OpenRemote(dbUrl, authToken string) (*sql.DB, error) {
	if dbUrl == "" {
		return nil, wrapOpenDB(fmt.Errorf("remote persistence needs LIBSQL_URL to be set"))
	}

	values := url.Values{}
	if authToken != "" {
		values.Add("authToken", authToken)
	}
	dsn := dbUrl
	if len(values) > 0 {
		dsn = dbUrl + "?" + values.Encode()
	}

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	return db, nil
}

// SQL stores snapshots as JSON documents in a `snapshots` table keyed by Key(course).
type SQL struct {
	db *sql.DB
}

// NewSQL creates the snapshots table if it does not exist yet.
func NewSQL(db *sql.DB) (SQL, error) {
	_, err := db.Exec(Schema)
	if err != nil {
		return SQL{}, fmt.Errorf("apply schema: %w", err)
	}
	return SQL{db: db}, nil
}

func (s SQL) Load(ctx context.Context, course string) (sections.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(
		ctx,
		"select data from snapshots where course = ?",
		Key(course),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return sections.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", course, err)
	}

	var snapshot sections.Snapshot
	err = json.Unmarshal([]byte(data), &snapshot)
	if err != nil {
		return nil, fmt.Errorf("load %s: decode: %w", course, err)
	}
	if snapshot == nil {
		snapshot = sections.Snapshot{}
	}
	return snapshot, nil
}

func (s SQL) Save(ctx context.Context, course string, snapshot sections.Snapshot) error {
	if snapshot == nil {
		snapshot = sections.Snapshot{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("save %s: encode: %w", course, err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`insert into snapshots(course, data, updated_at) values (?, ?, ?)
		on conflict(course) do update set data = excluded.data, updated_at = excluded.updated_at`,
		Key(course),
		string(data),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", course, err)
	}
	return nil
}

func (s SQL) Close() error {
	return s.db.Close()
}
