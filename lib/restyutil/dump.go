// Package restyutil writes the http exchanges of a resty client to disk for debugging
// scrapers.
package restyutil

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

func formatHeaders(headers http.Header) string {
	var out strings.Builder
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		for _, v := range headers[k] {
			fmt.Fprintf(&out, "%s: %s\n", k, v)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatRequestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	if body == nil {
		return ""
	}
	defer body.Close()
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

const messageTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%d %s

%s

%s`

// FormatMessage renders a request and its response in a plain-text format.
func FormatMessage(res *resty.Response) string {
	raw := res.Request.RawRequest
	requestHeaders := ""
	requestBody := ""
	if raw != nil {
		requestHeaders = formatHeaders(raw.Header)
		requestBody = formatRequestBody(raw)
	}

	return fmt.Sprintf(
		messageTemplate,
		res.Request.Method, res.Request.URL,
		requestHeaders,
		requestBody,
		res.StatusCode(), res.Status(),
		formatHeaders(res.Header()),
		res.String(),
	)
}

// DumpResponses writes every response received by client into dir as
// `<n>-<last path segment>.http`, dir is created if it doesn't exist.
func DumpResponses(client *resty.Client, dir string) error {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	var counter atomic.Uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		name := "response"
		parsed, err := url.Parse(res.Request.URL)
		if err == nil && filepath.Base(parsed.Path) != "/" && filepath.Base(parsed.Path) != "." {
			name = filepath.Base(parsed.Path)
		}
		path := filepath.Join(dir, fmt.Sprintf("%03d-%s.http", counter.Add(1), name))

		err = os.WriteFile(path, []byte(FormatMessage(res)), 0600)
		if err != nil {
			slog.Warn("failed to dump http message", "path", path, "err", err)
		}
		return nil
	})
	return nil
}
