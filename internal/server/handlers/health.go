package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"realm-server/internal/shared/database"
	"realm-server/internal/shared/redis"
	"realm-server/internal/shared/response"
)

const pingTimeout = 2 * time.Second

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
}

type HealthHandler struct {
	db    *database.DB
	redis *redis.Client
}

// NewHealthHandler takes a nil redis client when Redis is disabled.
func NewHealthHandler(db *database.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "health")

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	status := "healthy"

	dbStatus := "disconnected"
	if err := h.db.PingContext(ctx); err == nil {
		dbStatus = "connected"
	} else {
		logger.Warn("Database ping failed", "error", err)
		status = "degraded"
	}

	redisStatus := "disabled"
	if h.redis != nil && h.redis.Client != nil {
		if err := h.redis.Ping(ctx).Err(); err == nil {
			redisStatus = "connected"
		} else {
			logger.Warn("Redis ping failed", "error", err)
			redisStatus = "disconnected"
			status = "degraded"
		}
	}

	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Database:  dbStatus,
		Redis:     redisStatus,
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	response.Success(w, code, resp)
}
