package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/wonny/hedgefund/internal/analysis"
	"github.com/wonny/hedgefund/pkg/logger"
)

const (
	// streamRequestTimeout bounds the wait for the client's request message.
	streamRequestTimeout = 30 * time.Second
	streamWriteTimeout   = 10 * time.Second
)

// Stream message types
const (
	StreamLine   = "line"
	StreamResult = "result"
	StreamError  = "error"
)

// StreamMessage is one server → client frame
type StreamMessage struct {
	Type   string          `json:"type"`
	Line   string          `json:"line,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StreamHandler relays analysis output over a WebSocket while the program
// runs. The client sends one AnalysisRequestBody, then receives a "line"
// frame per output line and a final "result" or "error" frame.
type StreamHandler struct {
	runner         analysis.Runner
	defaultCapital decimal.Decimal
	upgrader       websocket.Upgrader
	logger         *logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(runner analysis.Runner, defaultCapital decimal.Decimal, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		runner:         runner,
		defaultCapital: defaultCapital,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 64 * 1024,
			// CORS is open for the REST API as well
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Stream runs an analysis and streams its output
// GET /api/analysis/stream?kind=analysis|backtest
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	kind, err := analysis.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer ws.Close()

	log := logger.FromContext(r.Context(), h.logger).WithField("kind", string(kind))

	req, err := h.readRequest(ws)
	if err != nil {
		h.send(ws, StreamMessage{Type: StreamError, Error: err.Error()})
		h.close(ws)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A hijacked connection no longer cancels r.Context(), so watch the socket.
	go func() {
		for {
			if _, _, err := ws.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	var writeErr error
	onLine := func(line string) {
		if writeErr != nil {
			return
		}
		if writeErr = h.send(ws, StreamMessage{Type: StreamLine, Line: line}); writeErr != nil {
			cancel()
		}
	}

	result, err := h.runner.Stream(ctx, kind, req, onLine)
	if writeErr != nil {
		log.WithError(writeErr).Info("Stream client went away")
		return
	}

	if err != nil {
		msg := "Internal server error"
		var failure *analysis.AnalysisFailure
		switch {
		case errors.Is(err, analysis.ErrInvalidRequest):
			msg = err.Error()
		case errors.As(err, &failure):
			msg = failure.Error()
		}
		h.send(ws, StreamMessage{Type: StreamError, Error: msg})
		h.close(ws)
		return
	}

	h.send(ws, StreamMessage{Type: StreamResult, Result: result})
	h.close(ws)
}

// readRequest waits for the request frame and validates it.
func (h *StreamHandler) readRequest(ws *websocket.Conn) (analysis.Request, error) {
	ws.SetReadLimit(maxBodyBytes)
	ws.SetReadDeadline(time.Now().Add(streamRequestTimeout))

	var body AnalysisRequestBody
	if err := ws.ReadJSON(&body); err != nil {
		return analysis.Request{}, errors.New("invalid JSON message")
	}
	ws.SetReadDeadline(time.Time{})

	if err := validateStruct(&body); err != nil {
		return analysis.Request{}, err
	}
	return body.toRequest(h.defaultCapital)
}

func (h *StreamHandler) send(ws *websocket.Conn, msg StreamMessage) error {
	ws.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return ws.WriteJSON(msg)
}

func (h *StreamHandler) close(ws *websocket.Conn) {
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteTimeout))
}
