package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"PriceSight/internal/domain/models"
	"PriceSight/internal/services/forecast"
	"PriceSight/internal/usecase"
	xhttp "PriceSight/pkg/http"
	"PriceSight/pkg/http/middleware"
	xlogger "PriceSight/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin policy is enforced by the CORS middleware config.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamEvent is one server message on /ws/forecast.
type StreamEvent struct {
	Type   string                 `json:"type"` // stage, result or error
	Ticker string                 `json:"ticker,omitempty"`
	Stage  models.Stage           `json:"stage,omitempty"`
	Data   *models.ForecastResult `json:"data,omitempty"`
	Status int                    `json:"status,omitempty"`
	Kind   models.ErrorKind       `json:"kind,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// streamConn serialises writes; the ping loop and the request loop share it.
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *streamConn) send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(v)
}

func (s *streamConn) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// Stream upgrades to a websocket. Each client message {"ticker": "..."} runs
// one forecast; the server emits a stage event per transition followed by a
// result or error event.
func (h *ForecastHandler) Stream(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer ws.Close()

	reqID := middleware.RequestIDFrom(c)
	conn := &streamConn{conn: ws}
	ws.SetReadLimit(wsMaxMessage)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	go h.keepAlive(ctx, conn)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read error", xlogger.String("request_id", reqID), xlogger.Error(err))
			}
			return nil
		}
		_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))

		if err := h.serveMessage(ctx, conn, raw); err != nil {
			h.logger.Warn("websocket write error", xlogger.String("request_id", reqID), xlogger.Error(err))
			return nil
		}
	}
}

func (h *ForecastHandler) serveMessage(ctx context.Context, conn *streamConn, raw []byte) error {
	req := &models.ForecastRequest{}
	if err := json.Unmarshal(raw, req); err != nil {
		return conn.send(StreamEvent{Type: "error", Status: http.StatusBadRequest, Kind: models.KindInvalidInput, Error: "invalid message: " + err.Error()})
	}
	if verr := xhttp.ValidateStruct(ctx, req); verr != nil {
		msg := "invalid request"
		if list, ok := verr.([]xhttp.ValidationError); ok && len(list) > 0 {
			msg = list[0].Message
		}
		if strings.TrimSpace(req.Ticker) == "" {
			msg = tickerRequired
		}
		return conn.send(StreamEvent{Type: "error", Ticker: req.Ticker, Status: http.StatusBadRequest, Kind: models.KindInvalidInput, Error: msg})
	}

	var sendErr error
	observe := func(stage models.Stage, _ error) {
		// Done and Failed are reported by the terminal event.
		if sendErr != nil || stage == models.StageDone || stage == models.StageFailed {
			return
		}
		sendErr = conn.send(StreamEvent{Type: "stage", Ticker: req.Ticker, Stage: stage})
	}

	res, err := h.uc.Forecast(ctx, usecase.ForecastParams{
		Ticker:    req.Ticker,
		Period:    req.Period,
		Transport: "ws",
		Observer:  observe,
	})
	if sendErr != nil {
		return sendErr
	}
	if err != nil {
		f := forecast.Classify(err)
		return conn.send(StreamEvent{Type: "error", Ticker: req.Ticker, Stage: f.Stage, Status: f.Status, Kind: f.Kind, Error: f.Message})
	}
	return conn.send(StreamEvent{Type: "result", Ticker: res.Ticker, Data: &res})
}

func (h *ForecastHandler) keepAlive(ctx context.Context, conn *streamConn) {
	t := time.NewTicker(wsPingPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := conn.ping(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				return
			}
		}
	}
}
