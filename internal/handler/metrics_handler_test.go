package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Flexitaim/api-flexitaim/internal/service"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestMetricsHandlerReady(t *testing.T) {
	up := pingerFunc(func(ctx context.Context) error { return nil })
	down := pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	handler := NewMetricsHandler(nil, map[string]Pinger{"postgres": up})
	c, w := newTestContext(t, http.MethodGet, "/ready", nil, nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	handler = NewMetricsHandler(nil, map[string]Pinger{"postgres": up, "redis": down})
	c, w = newTestContext(t, http.MethodGet, "/ready", nil, nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	handler := NewMetricsHandler(nil, nil)
	c, w := newTestContext(t, http.MethodGet, "/metrics", nil, nil)
	handler.Prometheus(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	metrics := service.NewMetricsService()
	metrics.RecordBatchOutcome("create", "strict", "COMMITTED")
	handler = NewMetricsHandler(metrics, nil)
	c, w = newTestContext(t, http.MethodGet, "/metrics", nil, nil)
	handler.Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "batch"))
}
