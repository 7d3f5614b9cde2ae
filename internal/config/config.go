// Package config resolves the runtime configuration from the environment, the
// `.testudot` settings file and the optional `testudot.json5` config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"testudot/internal/mappings"
	"testudot/internal/notify"
	"testudot/internal/scrapers/testudo"
	"testudot/internal/store"
	"testudot/lib/configutil"
)

// ConfigFile is the optional json5 config file, `testudot.local.json5` overrides it.
const ConfigFile = "testudot.json5"

// File is the shape of ConfigFile, every field is optional.
type File struct {
	StateDir     string `json:"state_dir"`
	SQLitePath   string `json:"sqlite_path"`
	MappingsPath string `json:"mappings_path"`

	Monitor struct {
		IntervalMinutes     int    `json:"interval_minutes"`
		Cron                string `json:"cron"`
		FetchTimeoutSeconds int    `json:"fetch_timeout_seconds"`
	} `json:"monitor"`

	Testudo struct {
		BaseURL           string  `json:"base_url"`
		RequestsPerSecond float64 `json:"requests_per_second"`
		CloudflareBypass  bool    `json:"cloudflare_bypass"`
	} `json:"testudo"`

	Email struct {
		From           string  `json:"from"`
		SMTPHost       string  `json:"smtp_host"`
		SMTPPort       int     `json:"smtp_port"`
		APIEndpoint    string  `json:"api_endpoint"`
		SendsPerSecond float64 `json:"sends_per_second"`
	} `json:"email"`
}

// Env looks up an environment variable, os.LookupEnv in production.
type Env func(key string) (string, bool)

// MapEnv is an Env backed by a map.
func MapEnv(values map[string]string) Env {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func (e Env) get(keys ...string) string {
	for _, k := range keys {
		v, ok := e(k)
		v = strings.TrimSpace(v)
		if ok && v != "" {
			return v
		}
	}
	return ""
}

type Config struct {
	// IsServer is set when running as a hosted API, it forces the remote store.
	IsServer bool
	Store    store.Config

	MappingsPath string

	Testudo testudo.Options

	Interval     time.Duration
	Cron         string
	FetchTimeout time.Duration

	From           string
	SendsPerSecond float64
	SMTP           notify.SMTPConfig
	EmailAPI       notify.APIConfig

	// APIKey protects the HTTP API when set.
	APIKey string
}

// Resolve computes the configuration. The persistence mode is, from lowest to highest
// priority: local, the PERSISTENCE_MODE variable, the settings file, and finally remote
// whenever IS_SERVER=true or VERCEL is set.
func Resolve(env Env, settings Settings, file File) (Config, error) {
	cfg := Config{
		MappingsPath: file.MappingsPath,
		Testudo: testudo.Options{
			BaseURL:           file.Testudo.BaseURL,
			RequestsPerSecond: file.Testudo.RequestsPerSecond,
			CloudflareBypass:  file.Testudo.CloudflareBypass,
		},
		Interval:       time.Duration(file.Monitor.IntervalMinutes) * time.Minute,
		Cron:           file.Monitor.Cron,
		FetchTimeout:   time.Duration(file.Monitor.FetchTimeoutSeconds) * time.Second,
		SendsPerSecond: file.Email.SendsPerSecond,
	}
	if cfg.MappingsPath == "" {
		cfg.MappingsPath = mappings.DefaultPath
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}

	mode := store.ModeLocal
	if value := env.get("PERSISTENCE_MODE"); value != "" {
		parsed, err := store.ParseMode(strings.ToLower(value))
		if err != nil {
			return Config{}, fmt.Errorf("PERSISTENCE_MODE: %w", err)
		}
		mode = parsed
	}
	if settings.PersistenceMode != "" {
		parsed, err := store.ParseMode(strings.ToLower(settings.PersistenceMode))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", SettingsFile, err)
		}
		mode = parsed
	}

	_, vercel := env("VERCEL")
	cfg.IsServer = vercel || env.get("IS_SERVER") == "true"
	if cfg.IsServer {
		mode = store.ModeRemote
	}

	cfg.Store = store.Config{
		Mode:       mode,
		StateDir:   file.StateDir,
		SQLitePath: file.SQLitePath,
		RemoteURL:  env.get("LIBSQL_URL", "REDIS_URL"),
		AuthToken:  env.get("LIBSQL_AUTH_TOKEN", "REDIS_TOKEN"),
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "testudot.db"
	}

	cfg.SMTP = notify.SMTPConfig{
		Host:     file.Email.SMTPHost,
		Port:     file.Email.SMTPPort,
		Username: env.get("EMAIL_USER"),
		Password: env.get("EMAIL_PASS"),
	}
	if cfg.SMTP.Port == 465 {
		cfg.SMTP.ImplicitTLS = true
	}
	cfg.EmailAPI = notify.APIConfig{
		Endpoint: file.Email.APIEndpoint,
		APIKey:   env.get("EMAIL_API_KEY"),
	}
	cfg.From = env.get("EMAIL_FROM")
	if cfg.From == "" {
		cfg.From = file.Email.From
	}
	if cfg.From == "" {
		cfg.From = cfg.SMTP.Username
	}

	cfg.APIKey = env.get("API_KEY")
	if cfg.APIKey == "" {
		cfg.APIKey = settings.APIKey
	}

	return cfg, nil
}

// Load reads the settings and config files from dir and resolves them against the
// process environment.
func Load(dir string) (Config, error) {
	file, err := configutil.ReadConfig[File](filepath.Join(dir, ConfigFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	settings, err := ReadSettings(filepath.Join(dir, SettingsFile))
	if err != nil {
		// a broken settings file falls back to the defaults
		slog.Warn("ignoring unreadable settings file", "err", err)
		settings = Settings{}
	}

	return Resolve(os.LookupEnv, settings, file)
}
