package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type dependency struct {
	name  string
	check func(ctx context.Context) error
}

// HealthHandler reports process liveness and the state of every backing
// dependency. Readiness checks all of them instead of stopping at the first
// failure, so a degraded response names everything that is down.
type HealthHandler struct {
	deps []dependency
}

func NewHealthHandler(dbPool *pgxpool.Pool, redisClient *redis.Client, amqpConn *amqp.Connection) *HealthHandler {
	return &HealthHandler{deps: []dependency{
		{"postgres", dbPool.Ping},
		{"redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		{"rabbitmq", func(context.Context) error {
			if amqpConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}},
	}}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "up"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()

	deps := gin.H{}
	ready := true
	for _, d := range h.deps {
		if err := d.check(ctx); err != nil {
			deps[d.name] = "down: " + err.Error()
			ready = false
			continue
		}
		deps[d.name] = "up"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "dependencies": deps})
}
