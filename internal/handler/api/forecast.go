package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"PriceSight/internal/domain/models"
	"PriceSight/internal/services/forecast"
	"PriceSight/internal/usecase"
	xhttp "PriceSight/pkg/http"
	xlogger "PriceSight/pkg/logger"
)

// ForecastHandler serves the forecast over the legacy flat routes, the
// enveloped API and a websocket stream.
type ForecastHandler struct {
	logger *xlogger.Logger
	uc     *usecase.ForecastUseCase
}

func NewForecastHandler(logger *xlogger.Logger, uc *usecase.ForecastUseCase) *ForecastHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastHandler{logger: logger, uc: uc}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/lstm", h.Legacy)
	e.GET("/lstm/", h.Legacy)
	e.GET("/lstm/:ticker", h.Legacy)

	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)

	e.GET("/ws/forecast", h.Stream)
}

// Legacy answers GET /lstm/:ticker with the flat result record, or
// {"error": "..."} with 400 or 500.
func (h *ForecastHandler) Legacy(c echo.Context) error {
	res, err := h.uc.Forecast(c.Request().Context(), usecase.ForecastParams{
		Ticker:    xhttp.ParamOrQuery(c, "ticker"),
		Period:    c.QueryParam("period"),
		Transport: "http",
	})
	if err != nil {
		f := forecast.Classify(err)
		return xhttp.ErrorBodyResponse(c, f.Status, f.Message)
	}
	return c.JSON(http.StatusOK, res)
}

// Forecast answers GET /api/forecast?ticker=... in the standard envelope.
func (h *ForecastHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, requestErrors(verr, req.Ticker))
	}

	res, err := h.uc.Forecast(c.Request().Context(), usecase.ForecastParams{
		Ticker:    req.Ticker,
		Period:    req.Period,
		Transport: "http",
	})
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}
