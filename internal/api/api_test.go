package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"testudot/internal/components/telemetry"
	"testudot/internal/mappings"
	"testudot/internal/monitor"

	"github.com/stretchr/testify/require"
)

type staticMappings struct {
	mappings map[string][]string
	err      error
}

func (s staticMappings) AllMappings() (map[string][]string, error) {
	return s.mappings, s.err
}

type fakeRunner struct {
	terms []string
}

func (r *fakeRunner) RunAll(ctx context.Context, termID string) monitor.Report {
	r.terms = append(r.terms, termID)
	return monitor.Report{ID: "cycle", Term: termID, Outcomes: []monitor.Outcome{
		{Course: "CMSC216", Stage: monitor.StageDone},
	}}
}

func newTestApp(apiKey string, mappings staticMappings) (*fakeRunner, func(req *http.Request) (int, map[string]any)) {
	runner := &fakeRunner{}
	app := New(Deps{
		Mappings: mappings,
		Monitor:  runner,
		Term:     func() string { return "202608" },
		APIKey:   apiKey,
		Tel:      telemetry.NewRecorder(),
	})

	do := func(req *http.Request) (int, map[string]any) {
		res, err := app.Test(req)
		if err != nil {
			panic(err)
		}
		defer res.Body.Close()
		buff, err := io.ReadAll(res.Body)
		if err != nil {
			panic(err)
		}
		body := map[string]any{}
		_ = json.Unmarshal(buff, &body)
		return res.StatusCode, body
	}
	return runner, do
}

func TestHealth(t *testing.T) {
	_, do := newTestApp("secret", staticMappings{})

	status, body := do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]any{"status": "ok"}, body)
}

func TestAPIKey(t *testing.T) {
	_, do := newTestApp("secret", staticMappings{mappings: map[string][]string{
		"alice@umd.edu": {"CMSC216"},
	}})

	status, body := do(httptest.NewRequest(http.MethodGet, "/api/mappings", nil))
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "Invalid or missing API Key", body["detail"])

	req := httptest.NewRequest(http.MethodGet, "/api/mappings", nil)
	req.Header.Set("X-API-Key", "wrong")
	status, _ = do(req)
	require.Equal(t, http.StatusForbidden, status)

	req = httptest.NewRequest(http.MethodGet, "/api/mappings", nil)
	req.Header.Set("X-API-Key", "secret")
	status, body = do(req)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]any{"alice@umd.edu": []any{"CMSC216"}}, body)
}

func TestNoAPIKeyConfigured(t *testing.T) {
	_, do := newTestApp("", staticMappings{})

	status, body := do(httptest.NewRequest(http.MethodGet, "/api/mappings", nil))
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body)
}

func TestMappingsError(t *testing.T) {
	_, do := newTestApp("", staticMappings{err: errors.New("permission denied")})

	status, _ := do(httptest.NewRequest(http.MethodGet, "/api/mappings", nil))
	require.Equal(t, http.StatusInternalServerError, status)
}

func TestCorruptMappingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), mappings.DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	tel := telemetry.NewRecorder()
	app := New(Deps{
		Mappings: mappings.NewFile(path, tel),
		Monitor:  &fakeRunner{},
		Term:     func() string { return "202608" },
		Tel:      tel,
	})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/mappings", nil))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
	require.Len(t, tel.Reports("broken", report_api_mappings), 1)
}

func TestMonitor(t *testing.T) {
	runner, do := newTestApp("secret", staticMappings{})

	req := httptest.NewRequest(http.MethodPost, "/api/monitor", nil)
	req.Header.Set("X-API-Key", "secret")
	status, body := do(req)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "success", body["status"])
	require.Equal(t, "Monitoring cycle completed for term 202608", body["message"])
	report := body["report"].(map[string]any)
	require.Equal(t, "cycle", report["id"])
	require.Len(t, report["outcomes"], 1)

	req = httptest.NewRequest(http.MethodPost, "/api/monitor?term=202701", nil)
	req.Header.Set("X-API-Key", "secret")
	status, _ = do(req)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []string{"202608", "202701"}, runner.terms)

	req = httptest.NewRequest(http.MethodPost, "/api/monitor?term=2027", nil)
	req.Header.Set("X-API-Key", "secret")
	status, _ = do(req)
	require.Equal(t, http.StatusBadRequest, status)
	require.Len(t, runner.terms, 2)

	// forbidden requests never start a cycle
	status, _ = do(httptest.NewRequest(http.MethodPost, "/api/monitor", nil))
	require.Equal(t, http.StatusForbidden, status)
	require.Len(t, runner.terms, 2)
}
