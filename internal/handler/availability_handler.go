package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/middleware"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
	"github.com/Flexitaim/api-flexitaim/pkg/response"
)

type availabilityService interface {
	Location() *time.Location
	List(ctx context.Context, filter models.AvailabilityFilter) ([]models.AvailabilityWindow, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.AvailabilityWindow, error)
	ListByResource(ctx context.Context, resourceID string) ([]models.AvailabilityWindow, bool, error)
	Create(ctx context.Context, req dto.CreateAvailabilityRequest) (*models.AvailabilityWindow, error)
	Update(ctx context.Context, id string, req dto.UpdateAvailabilityRequest) (*models.AvailabilityWindow, error)
	Delete(ctx context.Context, id string) error
}

type availabilityBatchService interface {
	BatchCreate(ctx context.Context, items []dto.CreateAvailabilityRequest, mode dto.BatchMode) (*dto.WindowBatchResult, error)
	BatchUpdate(ctx context.Context, items []dto.BatchUpdateAvailabilityItem, mode dto.BatchMode) (*dto.WindowBatchResult, error)
}

// AvailabilityHandler exposes weekly availability window endpoints.
type AvailabilityHandler struct {
	windows availabilityService
	batch   availabilityBatchService
}

// NewAvailabilityHandler constructs AvailabilityHandler.
func NewAvailabilityHandler(windows availabilityService, batch availabilityBatchService) *AvailabilityHandler {
	return &AvailabilityHandler{windows: windows, batch: batch}
}

// List godoc
// @Summary List availability windows
// @Tags Availability
// @Produce json
// @Param resource_id query string false "Filter by resource"
// @Param day_of_week query int false "Filter by weekday (0=Sunday)"
// @Param active_on query string false "Only windows covering this date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /availabilities [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	var filter models.AvailabilityFilter
	filter.ResourceID = c.Query("resource_id")
	if raw := c.Query("day_of_week"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil || day < 0 || day > 6 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day_of_week must be between 0 and 6"))
			return
		}
		filter.DayOfWeek = &day
	}
	if raw := c.Query("active_on"); raw != "" {
		date, err := scheduling.ParseDate(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active_on must be YYYY-MM-DD"))
			return
		}
		filter.ActiveOn = date
	}
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	items, pagination, err := h.windows.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAvailabilityResponses(items, h.windows.Location()), pagination)
}

// Get godoc
// @Summary Get availability window
// @Tags Availability
// @Produce json
// @Param id path string true "Window ID"
// @Success 200 {object} response.Envelope
// @Router /availabilities/{id} [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	window, err := h.windows.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAvailabilityResponse(*window, h.windows.Location()), nil)
}

// ListByResource godoc
// @Summary List active windows of a resource
// @Tags Availability
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/availabilities [get]
func (h *AvailabilityHandler) ListByResource(c *gin.Context) {
	items, hit, err := h.windows.ListByResource(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, dto.NewAvailabilityResponses(items, h.windows.Location()), nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create availability window
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body dto.CreateAvailabilityRequest true "Window payload"
// @Success 201 {object} response.Envelope
// @Router /availabilities [post]
func (h *AvailabilityHandler) Create(c *gin.Context) {
	var req dto.CreateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	window, err := h.windows.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewAvailabilityResponse(*window, h.windows.Location()))
}

// Update godoc
// @Summary Update availability window
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Window ID"
// @Param payload body dto.UpdateAvailabilityRequest true "Window patch"
// @Success 200 {object} response.Envelope
// @Router /availabilities/{id} [put]
func (h *AvailabilityHandler) Update(c *gin.Context) {
	var req dto.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	window, err := h.windows.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAvailabilityResponse(*window, h.windows.Location()), nil)
}

// Delete godoc
// @Summary Delete availability window
// @Tags Availability
// @Param id path string true "Window ID"
// @Success 204
// @Router /availabilities/{id} [delete]
func (h *AvailabilityHandler) Delete(c *gin.Context) {
	if err := h.windows.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BatchCreate godoc
// @Summary Create availability windows in bulk
// @Tags Availability
// @Accept json
// @Produce json
// @Param mode query string false "strict (default) or lenient"
// @Param payload body dto.BatchCreateAvailabilityRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /availabilities/bulk [post]
func (h *AvailabilityHandler) BatchCreate(c *gin.Context) {
	mode, ok := batchModeParam(c)
	if !ok {
		return
	}
	var req dto.BatchCreateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	result, err := h.batch.BatchCreate(c.Request.Context(), req.Items, mode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, batchStatus(result), result, nil)
}

// BatchUpdate godoc
// @Summary Update availability windows in bulk
// @Tags Availability
// @Accept json
// @Produce json
// @Param mode query string false "strict (default) or lenient"
// @Param payload body dto.BatchUpdateAvailabilityRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /availabilities/bulk [put]
func (h *AvailabilityHandler) BatchUpdate(c *gin.Context) {
	mode, ok := batchModeParam(c)
	if !ok {
		return
	}
	var req dto.BatchUpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	result, err := h.batch.BatchUpdate(c.Request.Context(), req.Items, mode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, batchStatus(result), result, nil)
}

func batchModeParam(c *gin.Context) (dto.BatchMode, bool) {
	mode, ok := dto.ParseBatchMode(c.Query("mode"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "mode must be strict or lenient"))
		return "", false
	}
	return mode, true
}

func batchStatus(result *dto.WindowBatchResult) int {
	switch result.Outcome {
	case dto.BatchOutcomePartial:
		return http.StatusMultiStatus
	case dto.BatchOutcomeRolledBack:
		return http.StatusConflict
	}
	return http.StatusCreated
}

func pageParams(c *gin.Context) (int, int) {
	page, size := 1, 20
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		size = v
	}
	return page, size
}
