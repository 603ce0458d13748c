package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/internal/service"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
	"github.com/Flexitaim/api-flexitaim/pkg/response"
)

type resourceService interface {
	List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, *models.Pagination, error)
	FindActive(ctx context.Context, id string) (*models.Resource, error)
	FindByLink(ctx context.Context, link string) (*models.Resource, error)
	Create(ctx context.Context, req dto.CreateResourceRequest) (*models.Resource, error)
	Deactivate(ctx context.Context, id string) (*models.ResourceDeactivation, error)
}

type rosterExporter interface {
	ResourceRoster(ctx context.Context, resourceID string, format service.ExportFormat) (*service.ExportFile, error)
}

// ResourceHandler exposes bookable resource endpoints.
type ResourceHandler struct {
	resources resourceService
	exports   rosterExporter
}

// NewResourceHandler constructs ResourceHandler.
func NewResourceHandler(resources resourceService, exports rosterExporter) *ResourceHandler {
	return &ResourceHandler{resources: resources, exports: exports}
}

// List godoc
// @Summary List resources
// @Tags Resources
// @Produce json
// @Param owner_id query string false "Filter by owner"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	var filter models.ResourceFilter
	filter.OwnerID = c.Query("owner_id")
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	items, pagination, err := h.resources.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	resource, err := h.resources.FindActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resource, nil)
}

// GetByLink godoc
// @Summary Resolve a public booking link
// @Tags Resources
// @Produce json
// @Param link path string true "Public link"
// @Success 200 {object} response.Envelope
// @Router /resources/link/{link} [get]
func (h *ResourceHandler) GetByLink(c *gin.Context) {
	resource, err := h.resources.FindByLink(c.Request.Context(), c.Param("link"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resource, nil)
}

// Create godoc
// @Summary Create resource
// @Tags Resources
// @Accept json
// @Produce json
// @Param payload body dto.CreateResourceRequest true "Resource payload"
// @Success 201 {object} response.Envelope
// @Router /resources [post]
func (h *ResourceHandler) Create(c *gin.Context) {
	var req dto.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resource payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims != nil && (req.OwnerID == "" || !claims.IsAdmin()) {
		req.OwnerID = claims.UserID
	}
	resource, err := h.resources.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resource)
}

// Delete godoc
// @Summary Deactivate a resource and everything booked on it
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	summary, err := h.resources.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ExportRoster godoc
// @Summary Export the booking roster of a resource
// @Tags Resources
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Resource ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /resources/{id}/bookings/export [get]
func (h *ResourceHandler) ExportRoster(c *gin.Context) {
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.ExportFormatCSV))))
	file, err := h.exports.ResourceRoster(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
