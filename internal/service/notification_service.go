package service

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/pkg/jobs"
	"github.com/Flexitaim/api-flexitaim/pkg/middleware/requestid"
	"github.com/Flexitaim/api-flexitaim/pkg/notify"
)

// NotificationTemplate names the message sent for a booking event.
type NotificationTemplate string

const (
	TemplateBookingConfirmed          NotificationTemplate = "booking_confirmed"
	TemplateBookingCancelledByOwner   NotificationTemplate = "booking_cancelled_by_owner"
	TemplateBookingCancelledBySubject NotificationTemplate = "booking_cancelled_by_subject"
)

const notificationJobType = "booking_notification"

// NotificationIntent asks for one best-effort message about a booking.
type NotificationIntent struct {
	Template  NotificationTemplate
	Booking   models.Booking
	RequestID string
}

type notificationUserReader interface {
	FindActiveByID(ctx context.Context, id string) (*models.User, error)
}

type notificationResourceReader interface {
	FindActiveByID(ctx context.Context, id string) (*models.Resource, error)
}

// NotificationConfig tunes delivery.
type NotificationConfig struct {
	AppName string
	Timeout time.Duration
	Workers int
	Retries int
}

// NotificationService renders booking notifications and hands them to a sender.
// Failures are logged and never reach the caller.
type NotificationService struct {
	sender    notify.Sender
	resources notificationResourceReader
	users     notificationUserReader
	queue     *jobs.Queue
	appName   string
	timeout   time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationService wires the service. With Workers > 0 delivery runs on
// a background queue that must be started with Start.
func NewNotificationService(
	sender notify.Sender,
	resources notificationResourceReader,
	users notificationUserReader,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg NotificationConfig,
) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.AppName == "" {
		cfg.AppName = "flexitaim"
	}
	svc := &NotificationService{
		sender:    sender,
		resources: resources,
		users:     users,
		appName:   cfg.AppName,
		timeout:   cfg.Timeout,
		metrics:   metrics,
		logger:    logger,
	}
	if cfg.Workers > 0 {
		svc.queue = jobs.NewQueue("notifications", svc.handleJob, jobs.QueueConfig{
			Workers:    cfg.Workers,
			MaxRetries: cfg.Retries,
			Logger:     logger,
		})
	}
	return svc
}

// Start launches background delivery when a queue is configured.
func (s *NotificationService) Start(ctx context.Context) {
	if s != nil && s.queue != nil {
		s.queue.Start(ctx)
	}
}

// Stop drains pending notifications.
func (s *NotificationService) Stop() {
	if s != nil && s.queue != nil {
		s.queue.Stop()
	}
}

// Notify dispatches intent. It is safe to call with a cancelled request context.
func (s *NotificationService) Notify(ctx context.Context, intent NotificationIntent) {
	if s == nil || s.sender == nil {
		return
	}
	if intent.RequestID == "" {
		intent.RequestID = requestid.FromContext(ctx)
	}
	if s.queue != nil {
		job := jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: intent}
		err := s.queue.Enqueue(job)
		if err == nil {
			return
		}
		s.logger.Warn("notification queue rejected job, sending inline",
			zap.String("booking_id", intent.Booking.ID), zap.Error(err))
	}
	if err := s.deliver(context.WithoutCancel(ctx), intent); err != nil {
		s.logger.Warn("notification failed",
			zap.String("template", string(intent.Template)),
			zap.String("booking_id", intent.Booking.ID),
			zap.String("request_id", intent.RequestID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	intent, ok := job.Payload.(NotificationIntent)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.deliver(ctx, intent)
}

func (s *NotificationService) deliver(parent context.Context, intent NotificationIntent) error {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	msg, err := s.render(ctx, intent)
	if err != nil {
		s.metrics.RecordNotification(string(intent.Template), false)
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.RecordNotification(string(intent.Template), false)
		return err
	}
	s.metrics.RecordNotification(string(intent.Template), true)
	s.logger.Debug("notification sent", zap.String("template", string(intent.Template)), zap.String("to", msg.To))
	return nil
}

func (s *NotificationService) render(ctx context.Context, intent NotificationIntent) (notify.Message, error) {
	booking := intent.Booking
	resource, err := s.resources.FindActiveByID(ctx, booking.ResourceID)
	if err != nil {
		return notify.Message{}, fmt.Errorf("load resource %s: %w", booking.ResourceID, err)
	}
	owner, err := s.users.FindActiveByID(ctx, resource.OwnerID)
	if err != nil {
		return notify.Message{}, fmt.Errorf("load owner %s: %w", resource.OwnerID, err)
	}
	subject, err := s.users.FindActiveByID(ctx, booking.SubjectID)
	if err != nil {
		return notify.Message{}, fmt.Errorf("load subject %s: %w", booking.SubjectID, err)
	}

	when := fmt.Sprintf("%s %s", booking.Date, booking.StartTime.Short())
	name := resource.Name
	msg := notify.Message{
		App: s.appName,
		Metadata: map[string]string{
			"booking_id":  booking.ID,
			"resource_id": resource.ID,
			"template":    string(intent.Template),
		},
	}
	if intent.RequestID != "" {
		msg.Metadata["request_id"] = intent.RequestID
	}

	switch intent.Template {
	case TemplateBookingConfirmed:
		msg.To = owner.Email
		msg.ReplyTo = subject.Email
		msg.Subject = fmt.Sprintf("New booking for %s", name)
		msg.Text = fmt.Sprintf("Hello %s,\nYou have a new booking for %s.\nClient: %s (%s)\nWhen: %s",
			owner.FullName, name, subject.FullName, subject.Email, when)
		msg.HTML = fmt.Sprintf("<h2>Hello %s,</h2><p>You have a new booking for <b>%s</b>.</p><ul><li><b>Client:</b> %s (%s)</li><li><b>When:</b> %s</li></ul>",
			html.EscapeString(owner.FullName), html.EscapeString(name), html.EscapeString(subject.FullName), html.EscapeString(subject.Email), when)
	case TemplateBookingCancelledByOwner:
		msg.To = subject.Email
		msg.ReplyTo = owner.Email
		msg.Subject = fmt.Sprintf("Booking cancelled: %s", name)
		msg.Text = fmt.Sprintf("Hello %s,\nYour booking for %s was cancelled by %s.\nWhen: %s",
			subject.FullName, name, owner.FullName, when)
		msg.HTML = fmt.Sprintf("<h2>Hello %s,</h2><p>Your booking for <b>%s</b> was <b>cancelled by %s</b>.</p><p><b>When:</b> %s</p>",
			html.EscapeString(subject.FullName), html.EscapeString(name), html.EscapeString(owner.FullName), when)
	case TemplateBookingCancelledBySubject:
		msg.To = owner.Email
		msg.ReplyTo = subject.Email
		msg.Subject = fmt.Sprintf("Client cancelled: %s", name)
		msg.Text = fmt.Sprintf("Hello %s,\n%s cancelled their booking for %s.\nWhen: %s",
			owner.FullName, subject.FullName, name, when)
		msg.HTML = fmt.Sprintf("<h2>Hello %s,</h2><p><b>%s</b> cancelled their booking for <b>%s</b>.</p><p><b>When:</b> %s</p>",
			html.EscapeString(owner.FullName), html.EscapeString(subject.FullName), html.EscapeString(name), when)
	default:
		return notify.Message{}, fmt.Errorf("unknown notification template %q", intent.Template)
	}
	return msg, nil
}
