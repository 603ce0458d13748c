package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/internal/service"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
	"github.com/Flexitaim/api-flexitaim/pkg/logger"
	"github.com/Flexitaim/api-flexitaim/pkg/middleware/requestid"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

func serve(router *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	claims := &models.JWTClaims{UserID: "owner-1", Role: models.RoleOwner}
	router := gin.New()
	router.Use(JWT(validatorStub{claims: claims}))
	router.GET("/me", func(c *gin.Context) {
		value, _ := c.Get(ContextUserKey)
		assert.Same(t, claims, value)
		c.String(http.StatusOK, c.GetString(logger.UserIDKey))
	})

	w := serve(router, http.MethodGet, "/me", "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "owner-1", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", "Basic good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", "Bearer bad").Code)
}

func TestRBAC(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newRouter := func(claims *models.JWTClaims) *gin.Engine {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			if claims != nil {
				c.Set(ContextUserKey, claims)
			}
			c.Next()
		})
		router.GET("/users/:id/bookings", RBAC(string(models.RoleAdmin), SelfRole), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		router.DELETE("/resources/:id", RequireRoles(models.RoleAdmin, models.RoleOwner), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		router.GET("/owners-only", RequireRoles(models.RoleOwner), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	client := newRouter(&models.JWTClaims{UserID: "client-1", Role: models.RoleClient})
	assert.Equal(t, http.StatusOK, serve(client, http.MethodGet, "/users/client-1/bookings", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(client, http.MethodGet, "/users/client-2/bookings", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(client, http.MethodDelete, "/resources/res-1", "").Code)

	admin := newRouter(&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	assert.Equal(t, http.StatusOK, serve(admin, http.MethodGet, "/users/client-2/bookings", "").Code)
	assert.Equal(t, http.StatusOK, serve(admin, http.MethodGet, "/owners-only", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(client, http.MethodGet, "/owners-only", "").Code)

	owner := newRouter(&models.JWTClaims{UserID: "owner-1", Role: models.RoleOwner})
	assert.Equal(t, http.StatusOK, serve(owner, http.MethodDelete, "/resources/res-1", "").Code)

	anonymous := newRouter(nil)
	assert.Equal(t, http.StatusUnauthorized, serve(anonymous, http.MethodDelete, "/resources/res-1", "").Code)
}

func TestAuditLogsSuccessfulMutationsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(logger.UserIDKey, "owner-1")
		c.Next()
	})
	router.DELETE("/resources/:id", Audit(zap.New(core), "deactivate", "resource"), func(c *gin.Context) {
		if c.Param("id") == "missing" {
			_ = c.Error(errors.New("not found"))
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})

	serve(router, http.MethodDelete, "/resources/res-1", "")
	serve(router, http.MethodDelete, "/resources/missing", "")

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "deactivate", fields["action"])
	assert.Equal(t, "res-1", fields["resource_id"])
	assert.Equal(t, "owner-1", fields["user_id"])
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	assert.Nil(t, ExtractMeta(c))
	SetCacheHit(c, true)
	assert.Equal(t, true, ExtractMeta(c)["cache_hit"])
	assert.NotContains(t, ExtractMeta(c), "processing_time_ms")
}

func TestResponseMetaThroughRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware(), WithResponseMeta())

	var meta map[string]interface{}
	r.GET("/windows", func(c *gin.Context) {
		SetCacheHit(c, false)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/windows", nil)
	req.Header.Set("X-Request-ID", "req-7")
	r.ServeHTTP(w, req)

	require.NotNil(t, meta)
	assert.Equal(t, false, meta["cache_hit"])
	assert.Equal(t, "req-7", meta["request_id"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestMetricsMiddlewareLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/resources/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, target := range []string{"/health", "/resources/r-1", "/resources/r-2", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	assert.Equal(t, 2, testutil.CollectAndCount(metrics.Registry(), "http_request_duration_seconds"))
}
