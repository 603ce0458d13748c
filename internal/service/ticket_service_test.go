package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/internal/models"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
	"github.com/Flexitaim/api-flexitaim/pkg/tickets"
)

func newTicketServiceForTest(repo *bookingRepoStub, ttl time.Duration) *TicketService {
	signer := tickets.NewSigner("ticket-secret", ttl)
	return NewTicketService(repo, signer, "https://qr.example.com/v1/create-qr-code/", time.UTC, zap.NewNop())
}

func TestTicketIssueAndVerify(t *testing.T) {
	repo := newBookingRepoStub(booking("b-1", "10:00:00", "11:00:00", models.BookingStatusConfirmed))
	svc := newTicketServiceForTest(repo, time.Hour)

	ticket, err := svc.Issue(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "b-1", ticket.BookingID)
	assert.True(t, strings.HasPrefix(ticket.QRURL, "https://qr.example.com/v1/create-qr-code/?"))
	assert.Contains(t, ticket.QRURL, "format=png")
	assert.WithinDuration(t, time.Now().Add(time.Hour), ticket.ExpiresAt, 5*time.Second)

	verified, err := svc.Verify(context.Background(), ticket.Token)
	require.NoError(t, err)
	assert.True(t, verified.Valid)
	assert.Equal(t, "b-1", verified.Booking.ID)

	cancelled := repo.items["b-1"]
	cancelled.Status = models.BookingStatusCancelled
	repo.items["b-1"] = cancelled
	verified, err = svc.Verify(context.Background(), ticket.Token)
	require.NoError(t, err)
	assert.False(t, verified.Valid)

	_, err = svc.Issue(context.Background(), "b-1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestTicketVerifyRejects(t *testing.T) {
	repo := newBookingRepoStub(booking("b-1", "10:00:00", "11:00:00", models.BookingStatusConfirmed))
	svc := newTicketServiceForTest(repo, time.Hour)

	ticket, err := svc.Issue(context.Background(), "b-1")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), ticket.Token+"00")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.Verify(context.Background(), "garbage")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	moved := repo.items["b-1"]
	moved.SubjectID = "client-2"
	repo.items["b-1"] = moved
	_, err = svc.Verify(context.Background(), ticket.Token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	require.NoError(t, repo.Deactivate(context.Background(), nil, "b-1"))
	_, err = svc.Verify(context.Background(), ticket.Token)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Issue(context.Background(), "b-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
