package forecast

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"PriceSight/internal/domain/models"
)

// Digits is the default number of decimals kept for the next-day forecast.
const Digits = 3

// RoundTo rounds v half away from zero to digits decimals.
func RoundTo(v float64, digits int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(digits).Float64()
	return f
}

// Round rounds v to Digits decimals.
func Round(v float64) float64 { return RoundTo(v, Digits) }

// Assembler shapes a Forecast into the client record.
type Assembler struct {
	Digits int32
}

// NewAssembler returns an Assembler rounding the forecast to digits, or
// Digits when digits < 0.
func NewAssembler(digits int) Assembler {
	if digits < 0 {
		digits = Digits
	}
	return Assembler{Digits: int32(digits)}
}

// Assemble builds the client record. The ticker is echoed upper-cased and only
// the next-day forecast is rounded; the comparison series keep full precision.
func (a Assembler) Assemble(ticker string, f models.Forecast) models.ForecastResult {
	return models.ForecastResult{
		Ticker:            strings.ToUpper(strings.TrimSpace(ticker)),
		OriginalPrices:    f.Original,
		PredictedPrices:   f.Predicted,
		NextDayPrediction: RoundTo(f.NextDay, a.Digits),
	}
}

// Assemble uses the default precision.
func Assemble(ticker string, f models.Forecast) models.ForecastResult {
	return Assembler{Digits: Digits}.Assemble(ticker, f)
}

// Failure is the client-facing view of a pipeline error.
type Failure struct {
	Status  int
	Kind    models.ErrorKind
	Stage   models.Stage
	Message string
}

// Classify maps err to a status code and message. Invalid input is a client
// error; everything else, including unclassified errors, is a server error.
func Classify(err error) Failure {
	var fe *models.ForecastError
	if errors.As(err, &fe) {
		status := http.StatusInternalServerError
		if fe.Kind.IsClientError() {
			status = http.StatusBadRequest
		}
		return Failure{Status: status, Kind: fe.Kind, Stage: fe.Stage, Message: fe.Error()}
	}
	return Failure{Status: http.StatusInternalServerError, Message: err.Error()}
}
