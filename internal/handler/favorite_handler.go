package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
	"github.com/Flexitaim/api-flexitaim/pkg/response"
)

type favoriteService interface {
	List(ctx context.Context, filter models.FavoriteFilter) ([]models.FavoriteResource, *models.Pagination, error)
	Upsert(ctx context.Context, req dto.FavoriteRequest) (*dto.FavoriteResult, error)
	Remove(ctx context.Context, userID, resourceID string) error
}

// FavoriteHandler exposes a user's favorite resources.
type FavoriteHandler struct {
	favorites favoriteService
}

// NewFavoriteHandler constructs FavoriteHandler.
func NewFavoriteHandler(favorites favoriteService) *FavoriteHandler {
	return &FavoriteHandler{favorites: favorites}
}

// List godoc
// @Summary List favorite resources of a user
// @Tags Favorites
// @Produce json
// @Param id path string true "User ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/favorites [get]
func (h *FavoriteHandler) List(c *gin.Context) {
	filter := models.FavoriteFilter{
		UserID:    c.Param("id"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.favorites.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Upsert godoc
// @Summary Favorite a resource
// @Description Creates the favorite (201) or reactivates a removed one (200).
// @Tags Favorites
// @Accept json
// @Produce json
// @Param payload body dto.FavoriteRequest true "Favorite payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Router /favorites [post]
func (h *FavoriteHandler) Upsert(c *gin.Context) {
	var req dto.FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid favorite payload"))
		return
	}
	claims := claimsFromContext(c)
	if req.UserID == "" && claims != nil {
		req.UserID = claims.UserID
	}
	if claims != nil && !claims.IsAdmin() && req.UserID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	result, err := h.favorites.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Created {
		response.Created(c, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Remove godoc
// @Summary Remove a favorite
// @Tags Favorites
// @Param id path string true "User ID"
// @Param resource_id path string true "Resource ID"
// @Success 204
// @Router /users/{id}/favorites/{resource_id} [delete]
func (h *FavoriteHandler) Remove(c *gin.Context) {
	if err := h.favorites.Remove(c.Request.Context(), c.Param("id"), c.Param("resource_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
