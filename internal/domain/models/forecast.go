package models

import "time"

// Forecast is the denormalized output of one pipeline run.
// Original and Predicted are aligned index-for-index.
type Forecast struct {
	Symbol      string
	Original    []float64
	Predicted   []float64
	NextDay     float64
	TestWindows int
	LastDate    time.Time
}

// ForecastResult is the record returned to clients.
type ForecastResult struct {
	Ticker            string    `json:"ticker"`
	OriginalPrices    []float64 `json:"original_prices"`
	PredictedPrices   []float64 `json:"predicted_prices"`
	NextDayPrediction float64   `json:"next_day_prediction"`
}

// ForecastRequest is bound from path, query or JSON body.
type ForecastRequest struct {
	Ticker string `param:"ticker" query:"ticker" json:"ticker" validate:"required,max=16,ticker"`
	Period string `query:"period" json:"period" default:"10y" validate:"oneof=1mo 3mo 6mo 1y 2y 5y 10y max"`
}

// Stage names a pipeline state.
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageSplitting   Stage = "splitting"
	StageFitting     Stage = "fitting"
	StageWindowTrain Stage = "windowing_train"
	StageWindowTest  Stage = "windowing_test"
	StagePredictTest Stage = "predicting_test"
	StagePredictNext Stage = "predicting_next"
	StageDenormalize Stage = "denormalizing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)
