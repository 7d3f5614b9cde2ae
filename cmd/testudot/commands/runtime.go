package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"testudot/internal/components/chrono"
	"testudot/internal/components/telemetry"
	"testudot/internal/config"
	"testudot/internal/mappings"
	"testudot/internal/monitor"
	"testudot/internal/notify"
	"testudot/internal/scrapers/testudo"
	"testudot/internal/store"
	libtelemetry "testudot/lib/telemetry"
)

// runtime is every component of a monitoring process wired together.
type runtime struct {
	cfg      config.Config
	tel      telemetry.API
	clock    chrono.TimeAPI
	mappings *mappings.File
	store    store.Backend
	monitor  monitor.Monitor
	otel     libtelemetry.Telemetry
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newSender(cfg config.Config, tel telemetry.API) notify.Sender {
	var primary, secondary notify.Sender
	api, ok := notify.NewAPISender(cfg.EmailAPI, tel)
	if ok {
		primary = api
	}
	smtp, ok := notify.NewSMTPSender(cfg.SMTP)
	if ok {
		secondary = smtp
	}
	return notify.WithFallback(primary, secondary)
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	otel, err := libtelemetry.SetupFromEnv(ctx, "testudot")
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	tel := telemetry.SlogAPI{}
	clock := chrono.NewStandardTime()

	backend, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	slog.Debug("opened snapshot store", "mode", cfg.Store.Mode)

	fetcher, err := testudo.NewClient(testudo.Options{
		BaseURL:           cfg.Testudo.BaseURL,
		Version:           version,
		RequestsPerSecond: cfg.Testudo.RequestsPerSecond,
		CloudflareBypass:  cfg.Testudo.CloudflareBypass,
		DumpDir:           dumpDir,
	}, clock, tel)
	if err != nil {
		backend.Close()
		return nil, err
	}

	mappingFile := mappings.NewFile(cfg.MappingsPath, tel)

	dispatcher := notify.NewDispatcher(mappingFile, newSender(cfg, tel), notify.DispatcherOptions{
		From:           cfg.From,
		SendsPerSecond: cfg.SendsPerSecond,
	}, tel)
	if !dispatcher.Configured() {
		slog.Warn("no email provider configured (set EMAIL_USER and EMAIL_PASS or EMAIL_API_KEY), notifications are skipped")
	}

	m := monitor.NewMonitor(
		fetcher,
		backend,
		dispatcher,
		mappingFile,
		clock,
		tel,
		monitor.Options{FetchTimeout: cfg.FetchTimeout},
	)

	return &runtime{
		cfg:      cfg,
		tel:      tel,
		clock:    clock,
		mappings: mappingFile,
		store:    backend,
		monitor:  m,
		otel:     otel,
	}, nil
}

// term returns the term given on the command line or the current one.
func (r *runtime) term(flag string) (string, error) {
	if flag == "" {
		return testudo.CurrentTerm(r.clock.Now()), nil
	}
	term, err := testudo.ParseTerm(flag)
	if err != nil {
		return "", err
	}
	return term.ID(), nil
}

func (r *runtime) Close() {
	err := r.store.Close()
	if err != nil {
		slog.Warn("close store", "err", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = r.otel.Shutdown(ctx)
	if err != nil {
		slog.Warn("flush telemetry", "err", err)
	}
}
