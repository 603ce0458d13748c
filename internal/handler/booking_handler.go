package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
	"github.com/Flexitaim/api-flexitaim/pkg/response"
)

type bookingService interface {
	Location() *time.Location
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error)
	ListBySubject(ctx context.Context, subjectID string, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error)
	ListByResource(ctx context.Context, resourceID string) ([]models.Booking, error)
	Get(ctx context.Context, id string) (*models.Booking, error)
	Create(ctx context.Context, req dto.CreateBookingRequest) (*models.Booking, error)
	Update(ctx context.Context, id string, req dto.UpdateBookingRequest) (*models.Booking, error)
	Delete(ctx context.Context, id string) error
	Cancellations(ctx context.Context, id string) ([]models.BookingCancellation, error)
}

type ticketService interface {
	Issue(ctx context.Context, bookingID string) (*dto.TicketResponse, error)
	Verify(ctx context.Context, token string) (*dto.TicketVerification, error)
}

// BookingHandler exposes appointment booking endpoints.
type BookingHandler struct {
	bookings bookingService
	tickets  ticketService
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings bookingService, tickets ticketService) *BookingHandler {
	return &BookingHandler{bookings: bookings, tickets: tickets}
}

// List godoc
// @Summary List bookings
// @Tags Bookings
// @Produce json
// @Param resource_id query string false "Filter by resource"
// @Param subject_id query string false "Filter by client"
// @Param status query string false "Available, Confirmed, Cancelled or Completed"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	filter, ok := bookingFilterFromQuery(c)
	if !ok {
		return
	}
	filter.ResourceID = c.Query("resource_id")
	filter.SubjectID = c.Query("subject_id")

	items, pagination, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewBookingResponses(items, h.bookings.Location()), pagination)
}

// ListBySubject godoc
// @Summary List bookings of a client
// @Tags Bookings
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/bookings [get]
func (h *BookingHandler) ListBySubject(c *gin.Context) {
	filter, ok := bookingFilterFromQuery(c)
	if !ok {
		return
	}
	items, pagination, err := h.bookings.ListBySubject(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewBookingResponses(items, h.bookings.Location()), pagination)
}

// ListByResource godoc
// @Summary List active bookings of a resource
// @Tags Bookings
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/bookings [get]
func (h *BookingHandler) ListByResource(c *gin.Context) {
	items, err := h.bookings.ListByResource(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewBookingResponses(items, h.bookings.Location()), nil)
}

// Get godoc
// @Summary Get booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewBookingResponse(*booking, h.bookings.Location()), nil)
}

// Create godoc
// @Summary Book a resource slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	claims := claimsFromContext(c)
	if req.SubjectID == "" && claims != nil {
		req.SubjectID = claims.UserID
	}
	// clients may only book for themselves
	if actsAs(claims, models.RoleClient) && req.SubjectID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	booking, err := h.bookings.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewBookingResponse(*booking, h.bookings.Location()))
}

// Update godoc
// @Summary Update booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.UpdateBookingRequest true "Booking patch"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [put]
func (h *BookingHandler) Update(c *gin.Context) {
	var req dto.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	if req.CancelledBy == "" {
		if actsAs(claimsFromContext(c), models.RoleOwner) {
			req.CancelledBy = string(models.CancelActorOwner)
		}
	}
	booking, err := h.bookings.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewBookingResponse(*booking, h.bookings.Location()), nil)
}

// Delete godoc
// @Summary Delete booking
// @Tags Bookings
// @Param id path string true "Booking ID"
// @Success 204
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Delete(c *gin.Context) {
	if err := h.bookings.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Cancellations godoc
// @Summary List the cancellation log of a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/cancellations [get]
func (h *BookingHandler) Cancellations(c *gin.Context) {
	records, err := h.bookings.Cancellations(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// IssueTicket godoc
// @Summary Issue a QR check-in ticket for a booking
// @Tags Tickets
// @Produce json
// @Param id path string true "Booking ID"
// @Success 201 {object} response.Envelope
// @Router /bookings/{id}/ticket [post]
func (h *BookingHandler) IssueTicket(c *gin.Context) {
	ticket, err := h.tickets.Issue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ticket)
}

// VerifyTicket godoc
// @Summary Verify a scanned ticket
// @Tags Tickets
// @Produce json
// @Param token path string true "Ticket token"
// @Success 200 {object} response.Envelope
// @Router /tickets/{token} [get]
func (h *BookingHandler) VerifyTicket(c *gin.Context) {
	verification, err := h.tickets.Verify(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verification, nil)
}

func bookingFilterFromQuery(c *gin.Context) (models.BookingFilter, bool) {
	var filter models.BookingFilter
	if raw := c.Query("status"); raw != "" {
		status := models.BookingStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown booking status"))
			return filter, false
		}
		filter.Status = &status
	}
	for key, dest := range map[string]*scheduling.Date{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		date, err := scheduling.ParseDate(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, key+" must be YYYY-MM-DD"))
			return filter, false
		}
		*dest = date
	}
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter, true
}
