package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/offer-checkout/internal/repository"
	"github.com/prohmpiriya/offer-checkout/pkg/redis"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	backend repository.Backend
	redis   *redis.Client
}

// NewHealthHandler creates a new HealthHandler. Either dependency may be nil.
func NewHealthHandler(backend repository.Backend, redis *redis.Client) *HealthHandler {
	return &HealthHandler{
		backend: backend,
		redis:   redis,
	}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Health returns a simple health check (liveness probe)
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready returns a readiness check (readiness probe)
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]string)
	allHealthy := true

	check := func(name string, configured bool, ping func(context.Context) error) {
		if !configured {
			components[name] = "not configured"
			return
		}
		if err := ping(ctx); err != nil {
			components[name] = "unhealthy: " + err.Error()
			allHealthy = false
			return
		}
		components[name] = "healthy"
	}

	check("backend", h.backend != nil, func(ctx context.Context) error { return h.backend.Ping(ctx) })
	check("redis", h.redis != nil, func(ctx context.Context) error { return h.redis.HealthCheck(ctx) })

	resp := ReadyResponse{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	if allHealthy {
		resp.Status = "ready"
		c.JSON(http.StatusOK, resp)
	} else {
		resp.Status = "not ready"
		c.JSON(http.StatusServiceUnavailable, resp)
	}
}
