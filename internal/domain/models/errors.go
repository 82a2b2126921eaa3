package models

import "errors"

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindDataUnavailable     ErrorKind = "data_unavailable"
	KindDegenerateRange     ErrorKind = "degenerate_range"
	KindInsufficientHistory ErrorKind = "insufficient_history"
	KindModelLoad           ErrorKind = "model_load"
	KindInference           ErrorKind = "inference"
)

// IsClientError reports whether the kind is caused by the caller.
func (k ErrorKind) IsClientError() bool { return k == KindInvalidInput }

// Sentinels for errors.Is; they match any ForecastError of the same kind.
var (
	ErrInvalidInput        = &ForecastError{Kind: KindInvalidInput}
	ErrDataUnavailable     = &ForecastError{Kind: KindDataUnavailable}
	ErrDegenerateRange     = &ForecastError{Kind: KindDegenerateRange}
	ErrInsufficientHistory = &ForecastError{Kind: KindInsufficientHistory}
	ErrModelLoad           = &ForecastError{Kind: KindModelLoad}
	ErrInference           = &ForecastError{Kind: KindInference}
)

// ForecastError is a classified failure raised by a pipeline stage.
type ForecastError struct {
	Kind  ErrorKind
	Stage Stage
	Msg   string
	Err   error
}

// NewError builds a ForecastError.
func NewError(kind ErrorKind, msg string, err error) *ForecastError {
	return &ForecastError{Kind: kind, Msg: msg, Err: err}
}

func (e *ForecastError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ForecastError) Unwrap() error { return e.Err }

// Is matches kind sentinels (no message, no cause) by kind.
func (e *ForecastError) Is(target error) bool {
	t, ok := target.(*ForecastError)
	if !ok || t.Msg != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// WithStage returns a copy of e tagged with the stage it was raised in. An
// existing stage is kept. e itself is never modified, since one error value
// may be handed to many concurrent callers.
func (e *ForecastError) WithStage(s Stage) *ForecastError {
	cp := *e
	if cp.Stage == "" {
		cp.Stage = s
	}
	return &cp
}

// KindOf extracts the kind from err.
func KindOf(err error) (ErrorKind, bool) {
	var fe *ForecastError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
