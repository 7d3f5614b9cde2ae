package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"testudot/lib/osutil"
)

// SettingsFile holds the settings changed through `testudot config`.
const SettingsFile = ".testudot"

// Settings are persisted user choices, they are plain JSON so older tools can read
// them.
type Settings struct {
	PersistenceMode string `json:"persistence_mode,omitempty"`
	APIKey          string `json:"api_key,omitempty"`
}

// ReadSettings returns empty settings when the file does not exist.
func ReadSettings(path string) (Settings, error) {
	var out Settings
	buff, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(buff, &out)
	if err != nil {
		return Settings{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

// WriteSettings sets the non-empty fields of `settings` in the file at path, other keys
// already in the file are kept.
func WriteSettings(path string, settings Settings) error {
	existing := map[string]any{}
	buff, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if len(buff) > 0 {
		// an unreadable file is replaced
		_ = json.Unmarshal(buff, &existing)
	}

	if settings.PersistenceMode != "" {
		existing["persistence_mode"] = settings.PersistenceMode
	}
	if settings.APIKey != "" {
		existing["api_key"] = settings.APIKey
	}

	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return err
	}
	return osutil.WriteFileAtomic(path, append(out, '\n'), 0600)
}
