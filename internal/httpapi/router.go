package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"leadchat_backend/platform/httpkit"
	"leadchat_backend/platform/logger"
)

// Pinger reports database reachability for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter builds the gin engine with the ingest endpoint and probes.
func NewRouter(env string, h *Handler, db Pinger, log *logger.Logger) *gin.Engine {
	if env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(log))

	engine.GET("/healthz", func(c *gin.Context) {
		httpkit.OK(c, gin.H{"status": "ok"})
	})

	engine.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		httpkit.OK(c, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	v1.POST("/messages", h.HandleIngest)
	v1.GET("/messages/:id", h.HandleGetMessage)
	v1.GET("/leads/:senderKey", h.HandleGetLead)

	return engine
}
