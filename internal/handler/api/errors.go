package api

import (
	"net/http"
	"strings"

	"PriceSight/internal/services/forecast"
	xhttp "PriceSight/pkg/http"
)

// toAppError maps a forecast failure onto the transport error type.
func toAppError(err error) *xhttp.AppError {
	f := forecast.Classify(err)
	code := "ERR_INTERNAL"
	switch {
	case f.Status == http.StatusBadRequest:
		code = "ERR_BAD_REQUEST"
	case f.Kind != "":
		code = "ERR_" + strings.ToUpper(string(f.Kind))
	}
	appErr := xhttp.NewAppError(code, "", f.Message, f.Status)
	if f.Kind != "" {
		appErr.WithParam("kind", string(f.Kind))
	}
	if f.Stage != "" {
		appErr.WithParam("stage", string(f.Stage))
	}
	return appErr.WithError(err)
}

const tickerRequired = "Ticker is required"

// requestErrors rewrites the validation errors for a blank ticker so every
// route reports the same message.
func requestErrors(verr interface{}, ticker string) interface{} {
	list, ok := verr.([]xhttp.ValidationError)
	if !ok || strings.TrimSpace(ticker) != "" {
		return verr
	}
	for i := range list {
		if list[i].Field == "ticker" {
			list[i].Message = tickerRequired
		}
	}
	return list
}
