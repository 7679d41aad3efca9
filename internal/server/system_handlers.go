package server

import (
	"context"
	"net/http"

	"classbook/internal/api"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type QueueInspector interface {
	QueueLength(ctx context.Context) int64
}

type QueueResponse struct {
	Pending int64 `json:"pending" example:"3"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Router       /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

// @Summary      Notification queue depth
// @Description  Number of notifications waiting for delivery
// @Tags         system
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} server.QueueResponse
// @Router       /organizer/notifications/queue [get]
func NotificationQueue(queue QueueInspector) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, QueueResponse{Pending: queue.QueueLength(c.Request.Context())})
	}
}

// @Summary      Prometheus metrics
// @Description  Exposes Prometheus metrics in text format
// @Tags         system
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
