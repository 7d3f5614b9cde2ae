// Package testudo scrapes section availability from the UMD Schedule of Classes.
package testudo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"testudot/internal/components/assert"
	"testudot/internal/components/chrono"
	"testudot/internal/components/telemetry"
	"testudot/internal/sections"
	"testudot/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://app.testudo.umd.edu"

type Options struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Version is sent in the user agent as `testudot/<version>`.
	Version string
	// RequestsPerSecond defaults to 4.
	RequestsPerSecond float64
	// CloudflareBypass wraps the transport with cloudflare-bp.
	CloudflareBypass bool
	// DumpDir, when set, receives a copy of every http exchange.
	DumpDir string
}

// Client fetches and parses the sections of a course, it is safe for concurrent use.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	time    chrono.TimeAPI
	tel     telemetry.API
}

func NewClient(opts Options, clock chrono.TimeAPI, tel telemetry.API) (Client, error) {
	assert.NotNil(clock)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("testudo_scraper", tel)

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Version == "" {
		opts.Version = "0.0.0"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 4
	}

	baseUrl, err := url.Parse(opts.BaseURL)
	if err != nil {
		return Client{}, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseURL)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", fmt.Sprintf("testudot/%s", opts.Version))
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	httpClient.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(httpClient, tel)

	if opts.DumpDir != "" {
		err = restyutil.DumpResponses(httpClient, opts.DumpDir)
		if err != nil {
			return Client{}, fmt.Errorf("dump dir: %w", err)
		}
	}

	return Client{
		http: httpClient,
		// burst of 1 spreads out the requests of a cycle that fans out to every course at once
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		time:    clock,
		tel:     tel,
	}, nil
}

func searchQuery(courseName, termID string) map[string]string {
	return map[string]string{
		"courseId":           courseName,
		"sectionId":          "",
		"termId":             termID,
		"creditCompare":      "",
		"credits":            "",
		"courseLevelFilter":  "ALL",
		"instructor":         "",
		"_facetoface":        "on",
		"_blended":           "on",
		"_online":            "on",
		"courseStartCompare": "",
		"courseStartHour":    "",
		"courseStartMin":     "",
		"courseStartAM":      "",
		"courseEndHour":      "",
		"courseEndMin":       "",
		"courseEndAM":        "",
		"teachingCenter":     "ALL",
		"_classDay1":         "on",
		"_classDay2":         "on",
		"_classDay3":         "on",
		"_classDay4":         "on",
		"_classDay5":         "on",
	}
}

// Wait blocks until the rate limit allows another request. Fetch does not wait on its own,
// so a deadline on the fetch only covers the request.
func (c Client) Wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// Fetch returns every section currently listed for a course in a term. Any failure is a
// *FetchError.
func (c Client) Fetch(ctx context.Context, courseName, termID string) (sections.Snapshot, error) {
	courseName = sections.NormalizeCourse(courseName)

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(searchQuery(courseName, termID)).
		Get("/soc/search")
	if err != nil {
		return nil, &FetchError{Kind: ErrNetwork, Course: courseName, Err: err}
	}
	if res.IsError() || res.StatusCode() >= 300 {
		return nil, &FetchError{Kind: ErrHTTPStatus, Course: courseName, Status: res.StatusCode()}
	}

	snapshot, err := parseSections(res.Body(), courseName, c.time.Now())
	if err != nil {
		return nil, &FetchError{Kind: ErrParse, Course: courseName, Err: err}
	}

	c.tel.ReportDebug(
		fmt.Sprintf("found %d sections for %s", len(snapshot), courseName),
		telemetry.KV{Key: "term", Value: termID},
	)
	return snapshot, nil
}
