package api

import (
	"errors"
	"time"

	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
	"github.com/bobby-s-dev/airquality-aggregator/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	aggregator *services.Aggregator
	logger     *zap.Logger
}

func NewHandler(aggregator *services.Aggregator, logger *zap.Logger) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     logger,
	}
}

// parseDate accepts a calendar date or an RFC3339 timestamp. An empty value
// yields nil so the dataset bound is used instead.
func parseDate(param, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := models.ParseDate(value)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, param+": "+err.Error())
	}
	return &t, nil
}

func (h *Handler) dashboard(c *fiber.Ctx) (*models.Dashboard, error) {
	start, err := parseDate("start", c.Query("start"))
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end", c.Query("end"))
	if err != nil {
		return nil, err
	}

	r, err := h.aggregator.ResolveRange(start, end)
	if err != nil {
		return nil, err
	}
	return h.aggregator.GetDashboard(c.UserContext(), r.Start, r.End)
}

// fail maps err onto a status code and writes the error body.
func (h *Handler) fail(c *fiber.Ctx, err error, message string) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, services.ErrInvalidRange):
		code = fiber.StatusBadRequest
	case errors.Is(err, models.ErrEmptyRange):
		code = fiber.StatusNotFound
	}

	if code >= fiber.StatusInternalServerError {
		h.logger.Error(message, zap.String("path", c.Path()), zap.Error(err))
	} else {
		h.logger.Debug(message, zap.String("path", c.Path()), zap.Error(err))
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   message,
		"details": err.Error(),
		"success": false,
	})
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	status := "healthy"
	if _, err := h.aggregator.Dataset(); err != nil {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now(),
		"last_load": h.aggregator.GetLastLoadTime(),
		"uptime":    time.Since(startTime).String(),
		"stats":     h.aggregator.GetStats(),
	})
}

// GetMetrics handles GET /api/v1/metrics
func (h *Handler) GetMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"metrics":   h.aggregator.GetStats(),
		"timestamp": time.Now(),
	})
}

func datasetInfo(ds *models.Dataset) fiber.Map {
	info := fiber.Map{
		"dataset":  ds,
		"rows":     ds.Len(),
		"stations": ds.Stations(),
	}
	if min, max, ok := ds.Bounds(); ok {
		info["bounds"] = models.DateRange{Start: min, End: max}
	}
	return info
}

// GetDataset handles GET /api/v1/dataset
func (h *Handler) GetDataset(c *fiber.Ctx) error {
	ds, err := h.aggregator.Dataset()
	if err != nil {
		return h.fail(c, err, "Dataset unavailable")
	}
	return c.JSON(datasetInfo(ds))
}

// ReloadDataset handles POST /api/v1/dataset/reload
func (h *Handler) ReloadDataset(c *fiber.Ctx) error {
	h.logger.Info("Reload requested", zap.String("request_id", requestID(c)))

	if err := h.aggregator.Reload(c.UserContext()); err != nil {
		return h.fail(c, err, "Failed to reload dataset")
	}
	ds, err := h.aggregator.Dataset()
	if err != nil {
		return h.fail(c, err, "Dataset unavailable")
	}
	return c.JSON(datasetInfo(ds))
}

// GetStations handles GET /api/v1/stations
func (h *Handler) GetStations(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return h.fail(c, err, "Failed to rank stations")
	}
	return c.JSON(fiber.Map{
		"range":       d.Range,
		"rows":        d.Rows,
		"ranking":     d.Ranking,
		"top_station": d.TopStation,
	})
}

// GetDashboard handles GET /api/v1/dashboard
func (h *Handler) GetDashboard(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return h.fail(c, err, "Failed to build dashboard")
	}
	return c.JSON(d)
}

// GetTopMonthly handles GET /api/v1/top/monthly
func (h *Handler) GetTopMonthly(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return h.fail(c, err, "Failed to build monthly series")
	}
	return c.JSON(fiber.Map{
		"station": d.TopStation,
		"range":   d.Range,
		"monthly": d.Monthly,
	})
}

// GetTopSummary handles GET /api/v1/top/summary
func (h *Handler) GetTopSummary(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return h.fail(c, err, "Failed to summarize top station")
	}
	return c.JSON(fiber.Map{
		"range":   d.Range,
		"summary": d.Summary,
	})
}

// GetTopDistributions handles GET /api/v1/top/distributions
func (h *Handler) GetTopDistributions(c *fiber.Ctx) error {
	d, err := h.dashboard(c)
	if err != nil {
		return h.fail(c, err, "Failed to build distributions")
	}
	return c.JSON(fiber.Map{
		"station":       d.TopStation,
		"range":         d.Range,
		"distributions": d.Distributions,
	})
}

// GetTopObservations handles GET /api/v1/top/observations?limit=&offset=
func (h *Handler) GetTopObservations(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	offset := c.QueryInt("offset", 0)
	if limit < 1 || limit > 10000 || offset < 0 {
		return h.fail(c, fiber.NewError(fiber.StatusBadRequest,
			"limit must be between 1 and 10000 and offset must not be negative"),
			"Invalid paging parameters")
	}

	d, err := h.dashboard(c)
	if err != nil {
		return h.fail(c, err, "Failed to list observations")
	}

	rows := d.TopRows
	if offset > len(rows) {
		offset = len(rows)
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}

	return c.JSON(fiber.Map{
		"station":      d.TopStation,
		"range":        d.Range,
		"total":        len(d.TopRows),
		"offset":       offset,
		"observations": rows,
	})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}

var startTime = time.Now()
