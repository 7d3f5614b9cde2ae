// Package api exposes the mappings and on-demand monitoring cycles over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"testudot/internal/components/assert"
	"testudot/internal/components/telemetry"
	"testudot/internal/monitor"
	"testudot/internal/scrapers/testudo"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	report_api_request  = "api.request"
	report_api_mappings = "api.mappings"
)

type MappingSource interface {
	AllMappings() (map[string][]string, error)
}

type Runner interface {
	RunAll(ctx context.Context, termID string) monitor.Report
}

type Deps struct {
	Mappings MappingSource
	Monitor  Runner
	// Term returns the term monitored when a request doesn't name one.
	Term func() string
	// APIKey is required in the X-API-Key header of protected routes when set.
	APIKey string
	Tel    telemetry.API
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type monitorResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Report  monitor.Report `json:"report"`
}

// New creates the fiber app serving the API.
func New(deps Deps) *fiber.App {
	assert.NotNil(deps.Mappings)
	assert.NotNil(deps.Monitor)
	assert.NotNil(deps.Term)
	assert.NotNil(deps.Tel)

	tel := telemetry.NewScopedAPI("api", deps.Tel)

	app := fiber.New(fiber.Config{
		AppName:               "testudot",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logRequests(tel))

	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	protected := app.Group("/api", requireAPIKey(deps.APIKey))
	protected.Get("/mappings", mappingsHandler(deps.Mappings, tel))
	protected.Post("/monitor", monitorHandler(deps.Monitor, deps.Term))

	return app
}

func logRequests(tel telemetry.API) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		tel.ReportDebug(
			fmt.Sprintf("%s %s", c.Method(), c.Path()),
			telemetry.KV{Key: "status", Value: c.Response().StatusCode()},
			telemetry.KV{Key: "duration", Value: time.Since(start).String()},
		)
		if err != nil {
			tel.ReportWarning(report_api_request, err, c.Path())
		}
		return err
	}
}

func requireAPIKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}
		given := c.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(errorResponse{
				Detail: "Invalid or missing API Key",
			})
		}
		return c.Next()
	}
}

func mappingsHandler(mappings MappingSource, tel telemetry.API) fiber.Handler {
	return func(c *fiber.Ctx) error {
		all, err := mappings.AllMappings()
		if err != nil {
			tel.ReportBroken(report_api_mappings, err)
			return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
				Detail: "Failed to read mappings",
			})
		}
		if all == nil {
			all = map[string][]string{}
		}
		return c.JSON(all)
	}
}

func monitorHandler(runner Runner, currentTerm func() string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		termID := c.Query("term")
		if termID == "" {
			termID = currentTerm()
		}
		_, err := testudo.ParseTerm(termID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Detail: err.Error()})
		}

		report := runner.RunAll(c.UserContext(), termID)
		return c.JSON(monitorResponse{
			Status:  "success",
			Message: fmt.Sprintf("Monitoring cycle completed for term %s", termID),
			Report:  report,
		})
	}
}
