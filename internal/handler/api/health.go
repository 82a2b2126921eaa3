package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"PriceSight/internal/usecase"
	xhttp "PriceSight/pkg/http"
	xlogger "PriceSight/pkg/logger"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	logger  *xlogger.Logger
	uc      *usecase.ForecastUseCase
	checks  map[string]Check
	timeout time.Duration
}

func NewHealthHandler(logger *xlogger.Logger, uc *usecase.ForecastUseCase) *HealthHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &HealthHandler{logger: logger, uc: uc, checks: map[string]Check{}, timeout: 5 * time.Second}
}

// AddCheck registers an extra readiness dependency.
func (h *HealthHandler) AddCheck(name string, c Check) {
	if c != nil {
		h.checks[name] = c
	}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)
}

func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz succeeds once the model is loaded (loading it if needed) and every
// registered check passes.
func (h *HealthHandler) Readyz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	failed := map[string]string{}
	if err := h.uc.Ready(ctx); err != nil {
		failed["model"] = err.Error()
	}
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		h.logger.Warn("readiness check failed", xlogger.Any("failed", failed))
		appErr := xhttp.UnavailableError("not ready").WithParam("failed", failed)
		return xhttp.AppErrorResponse(c, appErr)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
