package osutil

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic writes to a temporary file next to `path` and renames it over `path`,
// readers never observe a partially written file.
func WriteFileAtomic(path string, contents []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(contents)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Chmod(perm)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// FindUp looks for `name` in the working directory and every parent of it, it returns
// the first path that exists or os.ErrNotExist.
func FindUp(name string) (string, error) {
	current, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(current, name)
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", os.ErrNotExist
		}
		current = parent
	}
}
