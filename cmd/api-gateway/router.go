package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/internal/handler"
	"github.com/Flexitaim/api-flexitaim/internal/middleware"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/internal/service"
	"github.com/Flexitaim/api-flexitaim/pkg/config"
	"github.com/Flexitaim/api-flexitaim/pkg/logger"
	corsmiddleware "github.com/Flexitaim/api-flexitaim/pkg/middleware/cors"
	reqidmiddleware "github.com/Flexitaim/api-flexitaim/pkg/middleware/requestid"
)

type routerDeps struct {
	auth         middleware.TokenValidator
	metrics      *service.MetricsService
	availability *handler.AvailabilityHandler
	bookings     *handler.BookingHandler
	resources    *handler.ResourceHandler
	favorites    *handler.FavoriteHandler
	health       *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.health.Health)
	r.GET("/ready", deps.health.Ready)
	r.GET("/metrics", deps.health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/tickets/:token", deps.bookings.VerifyTicket)
	api.GET("/resources/link/:link", deps.resources.GetByLink)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))

	manage := middleware.RequireRoles(models.RoleAdmin, models.RoleOwner)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(logr, action, resource)
	}

	secured.GET("/availabilities", deps.availability.List)
	secured.GET("/availabilities/:id", deps.availability.Get)
	secured.POST("/availabilities", manage, audit("create", "availability"), deps.availability.Create)
	secured.POST("/availabilities/bulk", manage, audit("batch_create", "availability"), deps.availability.BatchCreate)
	secured.PUT("/availabilities/bulk", manage, audit("batch_update", "availability"), deps.availability.BatchUpdate)
	secured.PUT("/availabilities/:id", manage, audit("update", "availability"), deps.availability.Update)
	secured.DELETE("/availabilities/:id", manage, audit("delete", "availability"), deps.availability.Delete)

	secured.GET("/bookings", manage, deps.bookings.List)
	secured.GET("/bookings/:id", deps.bookings.Get)
	secured.POST("/bookings", audit("create", "booking"), deps.bookings.Create)
	secured.PUT("/bookings/:id", audit("update", "booking"), deps.bookings.Update)
	secured.DELETE("/bookings/:id", manage, audit("delete", "booking"), deps.bookings.Delete)
	secured.POST("/bookings/:id/ticket", audit("issue_ticket", "booking"), deps.bookings.IssueTicket)
	secured.GET("/bookings/:id/cancellations", manage, deps.bookings.Cancellations)
	secured.GET("/users/:id/bookings", middleware.RBAC(string(models.RoleAdmin), string(models.RoleOwner), middleware.SelfRole), deps.bookings.ListBySubject)

	self := middleware.RBAC(string(models.RoleAdmin), middleware.SelfRole)
	secured.GET("/users/:id/favorites", self, deps.favorites.List)
	secured.POST("/favorites", audit("upsert", "favorite"), deps.favorites.Upsert)
	secured.DELETE("/users/:id/favorites/:resource_id", self, audit("delete", "favorite"), deps.favorites.Remove)

	secured.GET("/resources", deps.resources.List)
	secured.GET("/resources/:id", deps.resources.Get)
	secured.POST("/resources", manage, audit("create", "resource"), deps.resources.Create)
	secured.DELETE("/resources/:id", manage, audit("deactivate", "resource"), deps.resources.Delete)
	secured.GET("/resources/:id/availabilities", deps.availability.ListByResource)
	secured.GET("/resources/:id/bookings", manage, deps.bookings.ListByResource)
	secured.GET("/resources/:id/bookings/export", manage, deps.resources.ExportRoster)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})
	return r
}
