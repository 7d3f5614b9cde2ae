package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"testudot/lib/osutil"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalName returns the name of the override file of `name`,
// `testudot.json5` -> `testudot.local.json5`.
func LocalName(name string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s.local%s", strings.TrimSuffix(name, ext), ext)
}

func readJSON5[T any](path string, out *T) (bool, error) {
	buff, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(buff) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(buff, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig reads a json5 configuration file, merging in the fields set in
// its local override (see LocalName). It returns os.ErrNotExist when neither
// file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T

	foundDefault, err := readJSON5(name, &out)
	if err != nil {
		return out, err
	}

	var override T
	localPath := LocalName(name)
	foundLocal, err := readJSON5(localPath, &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Debug("merging config with local overrides", "local", localPath)
	}

	if !foundDefault && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively is ReadConfig but it searches the working directory and
// its parents for the configuration file.
func ReadRecursively[T any](name string) (T, error) {
	path, err := osutil.FindUp(name)
	if err != nil {
		var out T
		return out, err
	}
	return ReadConfig[T](path)
}
