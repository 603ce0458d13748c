package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/pkg/config"
)

func TestHTTPSenderPostsEmail(t *testing.T) {
	var got Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications/email", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL+"/api/", "secret", server.Client())
	err := sender.Send(context.Background(), Message{App: "flexitaim", To: "owner@example.com", Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", got.To)
	assert.Equal(t, "flexitaim", got.App)
}

func TestHTTPSenderReportsFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewHTTPSender(server.URL, "", server.Client()).Send(context.Background(), Message{To: "x@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSenderKeysByBooking(t *testing.T) {
	writer := &fakeWriter{}
	sender := &KafkaSender{writer: writer, topic: "booking.notifications"}

	err := sender.Send(context.Background(), Message{To: "a@example.com", Metadata: map[string]string{"booking_id": "bk-1"}})
	require.NoError(t, err)
	require.Len(t, writer.msgs, 1)
	assert.Equal(t, "bk-1", string(writer.msgs[0].Key))
	assert.Len(t, writer.msgs[0].Headers, 2)

	writer.err = errors.New("broker down")
	assert.Error(t, sender.Send(context.Background(), Message{To: "a@example.com"}))
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092", "c:9092"}, SplitBrokers([]string{"a:9092, b:9092", " ", "c:9092"}))
}

func TestNewSelectsDriver(t *testing.T) {
	sender, err := New(config.NotifyConfig{Driver: "log"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, sender)

	_, err = New(config.NotifyConfig{Driver: "http"}, nil)
	assert.Error(t, err)

	_, err = New(config.NotifyConfig{Driver: "kafka"}, nil)
	assert.Error(t, err)

	_, err = New(config.NotifyConfig{Driver: "pigeon"}, nil)
	assert.Error(t, err)
}
