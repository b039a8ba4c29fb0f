package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const ApiKeyHeader = "X-API-Key"

type Controller struct {
	Handler *Handler
	router  *gin.Engine
	server  *http.Server
}

// NewController собирает маршруты. observers обслуживает /ws и может быть nil,
// apiKeys закрывают изменяющие реестр и сводку маршруты, пустой список отключает проверку
func NewController(handler *Handler, observers http.Handler, apiKeys []string) *Controller {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger)

	router.GET("/healthz", handler.Health)
	router.GET("/stats", handler.GetStats)
	if observers != nil {
		router.GET("/ws", gin.WrapH(observers))
	}

	protected := requireApiKey(apiKeys)

	api := router.Group("/api")
	{
		api.POST("/vehicle/location", limitBody, handler.SubmitLocation)

		vehicles := api.Group("/vehicles")
		{
			vehicles.GET("", handler.GetVehicles)
			vehicles.POST("", protected, handler.AddVehicle)
			vehicles.GET("/near", handler.GetNear)
			vehicles.GET("/within", handler.GetWithin)
			vehicles.GET("/:id", handler.GetVehicle)
			vehicles.PATCH("/:id", protected, handler.UpdateVehicle)
			vehicles.GET("/:id/position", handler.GetPosition)
			vehicles.GET("/:id/locations", handler.GetLocations)
		}

		fleet := api.Group("/fleet")
		{
			fleet.GET("/daily-stats", handler.GetDailySummaries)
			fleet.POST("/daily-stats/refresh", protected, handler.RefreshDailySummaries)
		}
	}

	return &Controller{
		Handler: handler,
		router:  router,
		server:  &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
	}
}

func (c *Controller) Router() http.Handler {
	return c.router
}

// Run блокирует до остановки сервера через Shutdown.
// Если Shutdown вызван раньше, Run сразу возвращает nil.
func (c *Controller) Run(port int) error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	return c.Serve(listener)
}

func (c *Controller) Serve(listener net.Listener) error {
	log.WithField("addr", listener.Addr().String()).Info("HTTP API запущен")
	if err := c.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *Controller) Shutdown(ctx context.Context) error {
	return c.server.Shutdown(ctx)
}

func requireApiKey(keys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed[k] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}
		if _, ok := allowed[c.GetHeader(ApiKeyHeader)]; !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "неверный API-ключ"})
			return
		}
		c.Next()
	}
}

func requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	log.WithFields(log.Fields{
		"method":   c.Request.Method,
		"path":     c.Request.URL.Path,
		"status":   c.Writer.Status(),
		"duration": time.Since(start),
	}).Debug("HTTP-запрос обработан")
}
