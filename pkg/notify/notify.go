package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/pkg/config"
)

// Message is an e-mail style notification handed to a Sender.
type Message struct {
	App      string            `json:"app"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	HTML     string            `json:"html,omitempty"`
	Text     string            `json:"text,omitempty"`
	ReplyTo  string            `json:"replyTo,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Key returns the value used to partition or deduplicate the message.
func (m Message) Key() string {
	if id := m.Metadata["booking_id"]; id != "" {
		return id
	}
	return m.To
}

// Sender delivers a message. Implementations must honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender only records messages. Used for local development.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message envelope.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Any("metadata", msg.Metadata),
	)
	return nil
}

// New selects a sender for cfg.Driver: http, kafka or log.
func New(cfg config.NotifyConfig, logger *zap.Logger) (Sender, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "log":
		return NewLogSender(logger), nil
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("NOTIFY_BASE_URL is required for the http driver")
		}
		return NewHTTPSender(cfg.BaseURL, cfg.APIKey, nil), nil
	case "kafka":
		return NewKafkaSender(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	return nil, fmt.Errorf("unknown notification driver %q", cfg.Driver)
}
