package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"testudot/internal/sections"
	"testudot/lib/osutil"
)

// JSONFile stores every course in its own `sections-<COURSE>.json` file.
type JSONFile struct {
	dir string
}

func NewJSONFile(dir string) (JSONFile, error) {
	if dir == "" {
		dir = "state"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return JSONFile{}, fmt.Errorf("resolve state dir: %w", err)
	}
	return JSONFile{dir: abs}, nil
}

func (s JSONFile) Dir() string {
	return s.dir
}

func (s JSONFile) path(course string) string {
	return filepath.Join(s.dir, fmt.Sprintf("sections-%s.json", sections.NormalizeCourse(course)))
}

func (s JSONFile) Load(ctx context.Context, course string) (sections.Snapshot, error) {
	buff, err := os.ReadFile(s.path(course))
	if errors.Is(err, os.ErrNotExist) {
		return sections.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", course, err)
	}

	var snapshot sections.Snapshot
	err = json.Unmarshal(buff, &snapshot)
	if err != nil {
		return nil, fmt.Errorf("load %s: decode %s: %w", course, filepath.Base(s.path(course)), err)
	}
	if snapshot == nil {
		snapshot = sections.Snapshot{}
	}
	return snapshot, nil
}

func (s JSONFile) Save(ctx context.Context, course string, snapshot sections.Snapshot) error {
	if snapshot == nil {
		snapshot = sections.Snapshot{}
	}
	buff, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("save %s: encode: %w", course, err)
	}

	err = os.MkdirAll(s.dir, 0755)
	if err != nil {
		return fmt.Errorf("save %s: %w", course, err)
	}
	err = osutil.WriteFileAtomic(s.path(course), buff, 0644)
	if err != nil {
		return fmt.Errorf("save %s: %w", course, err)
	}
	return nil
}

func (JSONFile) Close() error {
	return nil
}
