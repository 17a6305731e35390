package handlers

import (
	"context"

	xhttp "github.com/abrahamus/iBeekeeper/pkg/http"
	"github.com/fasthttp/router"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db HealthChecker
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			writeJSON(ctx, xhttp.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "ok"})
}
