package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
	"github.com/Flexitaim/api-flexitaim/pkg/tickets"
)

type ticketBookingReader interface {
	FindActiveByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error)
}

// TicketService issues QR check-in tickets for bookings.
type TicketService struct {
	bookings  ticketBookingReader
	signer    *tickets.Signer
	qrBaseURL string
	loc       *time.Location
	logger    *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(bookings ticketBookingReader, signer *tickets.Signer, qrBaseURL string, loc *time.Location, logger *zap.Logger) *TicketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TicketService{bookings: bookings, signer: signer, qrBaseURL: qrBaseURL, loc: loc, logger: logger}
}

// Issue signs a ticket for an active, non-cancelled booking.
func (s *TicketService) Issue(ctx context.Context, bookingID string) (*dto.TicketResponse, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cancelled bookings cannot be ticketed")
	}

	token, expiresAt, err := s.signer.Issue(booking.ID, booking.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign ticket")
	}
	qr, err := tickets.QRURL(s.qrBaseURL, token, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build QR url")
	}
	return &dto.TicketResponse{BookingID: booking.ID, Token: token, QRURL: qr, ExpiresAt: expiresAt}, nil
}

// Verify checks a scanned token. Valid is false when the booking was cancelled
// after the ticket was issued.
func (s *TicketService) Verify(ctx context.Context, token string) (*dto.TicketVerification, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, tickets.ErrExpiredToken) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "ticket expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid ticket")
	}
	booking, err := s.load(ctx, claims.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.SubjectID != claims.SubjectID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "ticket does not match booking")
	}
	return &dto.TicketVerification{
		Valid:   booking.Status != models.BookingStatusCancelled,
		Booking: dto.NewBookingResponse(*booking, s.loc),
	}, nil
}

func (s *TicketService) load(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.FindActiveByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}
