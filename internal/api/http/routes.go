package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/sismosve/sismos-api/internal/scheduler"
	"github.com/sismosve/sismos-api/internal/sismos"
)

var validate = validator.New()

// forceRefreshTimeout bounds how long POST /api/update waits for its cycle.
const forceRefreshTimeout = 60 * time.Second

// Updater is the slice of the refresh scheduler the API needs.
type Updater interface {
	ForceRefresh(ctx context.Context) (bool, error)
	Status() scheduler.Status
	Running() bool
}

// apiResponse is the envelope for administrative endpoints.
type apiResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *sismos.Service, updater Updater, logger *slog.Logger) {
	api := app.Group("/api")

	api.Get("/sismos", func(c *fiber.Ctx) error {
		collection, err := service.Collection()
		if err != nil {
			return readError(logger, "list earthquakes", err)
		}
		return c.JSON(collection)
	})

	api.Get("/sismos/stats", func(c *fiber.Ctx) error {
		stats, err := service.Stats()
		if err != nil {
			return readError(logger, "compute stats", err)
		}
		return c.JSON(stats)
	})

	api.Get("/sismos/recent", func(c *fiber.Ctx) error {
		q, err := parseRecentQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		recent, err := service.Recent(q.Limit)
		if err != nil {
			return readError(logger, "list recent earthquakes", err)
		}
		return c.JSON(fiber.Map{
			"sismos": recent,
			"total":  len(recent),
		})
	})

	api.Get("/sismos/magnitude/:min", func(c *fiber.Ctx) error {
		q, err := parseMagnitudeParam(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		filtered, err := service.ByMagnitude(q.Min)
		if err != nil {
			return readError(logger, "filter earthquakes by magnitude", err)
		}
		return c.JSON(fiber.Map{
			"sismos":        filtered,
			"total":         len(filtered),
			"min_magnitude": q.Min,
		})
	})

	api.Get("/sismos/coordinates", func(c *fiber.Ctx) error {
		coords, err := service.Coordinates()
		if err != nil {
			return readError(logger, "project coordinates", err)
		}
		return c.JSON(fiber.Map{
			"coordinates": coords,
			"total":       len(coords),
		})
	})

	api.Post("/update", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), forceRefreshTimeout)
		defer cancel()

		ok, err := updater.ForceRefresh(ctx)
		if err != nil {
			logger.Error("forced refresh not completed", "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
		}
		if !ok {
			return c.Status(fiber.StatusInternalServerError).JSON(apiResponse{
				Success:   false,
				Message:   "failed to update earthquake data",
				Data:      fiber.Map{"updated": false},
				Timestamp: time.Now(),
			})
		}
		return c.JSON(apiResponse{
			Success:   true,
			Message:   "earthquake data updated",
			Data:      fiber.Map{"updated": true},
			Timestamp: time.Now(),
		})
	})

	api.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(apiResponse{
			Success:   true,
			Message:   "status retrieved",
			Data:      updater.Status(),
			Timestamp: time.Now(),
		})
	})

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(checkHealth(service, updater))
	})
}

// readError maps DataAbsent to 404 and hides everything else behind a 500.
func readError(logger *slog.Logger, op string, err error) error {
	if errors.Is(err, sismos.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "no earthquake data found")
	}
	logger.Error(op+" failed", "error", err)
	return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
}

type healthChecks struct {
	DataFileExists   bool `json:"data_file_exists"`
	SchedulerRunning bool `json:"scheduler_running"`
	DataValid        bool `json:"data_valid"`
	TotalSismos      int  `json:"total_sismos"`
}

type healthReport struct {
	Status    string       `json:"status"`
	Checks    healthChecks `json:"checks"`
	Timestamp *time.Time   `json:"timestamp"`
}

func checkHealth(service *sismos.Service, updater Updater) healthReport {
	checks := healthChecks{
		DataFileExists:   service.SnapshotExists(),
		SchedulerRunning: updater.Running(),
	}
	if c, err := service.Collection(); err == nil {
		checks.DataValid = true
		checks.TotalSismos = len(c.Features)
	}

	status := "healthy"
	if !checks.DataFileExists || !checks.SchedulerRunning || !checks.DataValid {
		status = "unhealthy"
	}
	return healthReport{
		Status:    status,
		Checks:    checks,
		Timestamp: updater.Status().LastUpdate,
	}
}

// recentQuery holds query parameters for the recent endpoint.
type recentQuery struct {
	Limit int `validate:"min=1,max=50"`
}

func parseRecentQuery(c *fiber.Ctx) (recentQuery, error) {
	q := recentQuery{Limit: 10}

	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, errors.New("limit must be an integer")
		}
		q.Limit = n
	}

	if err := validate.Struct(q); err != nil {
		return q, errors.New("limit must be between 1 and 50")
	}
	return q, nil
}

// magnitudeParam holds the path parameter for the magnitude endpoint.
type magnitudeParam struct {
	Min float64 `validate:"gte=0,lte=10"`
}

func parseMagnitudeParam(c *fiber.Ctx) (magnitudeParam, error) {
	var q magnitudeParam

	v, err := strconv.ParseFloat(c.Params("min"), 64)
	if err != nil {
		return q, errors.New("magnitude must be a number")
	}
	q.Min = v

	if err := validate.Struct(q); err != nil {
		return q, errors.New("magnitude must be between 0 and 10")
	}
	return q, nil
}
