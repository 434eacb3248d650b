package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/services"
	"github.com/desertthunder/dlx/internal/shared"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	keepAlivePeriod = 15 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = 54 * time.Second
	writeWait       = 10 * time.Second
	maxMessageSize  = 512
)

// API serves the media server endpoints from a [Backend].
type API struct {
	backend  *Backend
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewAPI creates the handlers for backend, streaming events from hub.
func NewAPI(backend *Backend, hub *Hub, logger *log.Logger) *API {
	return &API{
		backend: backend,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The demo server only ever runs on a developer machine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Register adds every endpoint to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, services.DownloadsPath, http.HandlerFunc(a.Downloads))
	r.Handle(http.MethodPatch, services.BulkEditPath, http.HandlerFunc(a.BulkEdit))
	r.Handle(http.MethodPost, services.BulkDeletePath, http.HandlerFunc(a.BulkDelete))
	r.Handle(http.MethodGet, services.StreamPath, http.HandlerFunc(a.Stream))
	r.Handle(http.MethodGet, services.WebSocketPath, http.HandlerFunc(a.WebSocket))
}

// Downloads writes every entry as a JSON array.
func (a *API) Downloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.backend.List())
}

// BulkEdit decodes `[{id, title?, mediaType?}]` and answers with an envelope.
func (a *API) BulkEdit(w http.ResponseWriter, r *http.Request) {
	var patches []models.Patch
	if err := json.NewDecoder(r.Body).Decode(&patches); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(patches) == 0 {
		writeEnvelopeError(w, http.StatusBadRequest, "no items to edit")
		return
	}

	writeJSON(w, http.StatusOK, a.backend.BulkEdit(patches))
}

// BulkDelete decodes `{ids}` and answers with an envelope.
func (a *API) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req models.BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.IDs) == 0 {
		writeEnvelopeError(w, http.StatusBadRequest, "no ids to delete")
		return
	}

	writeJSON(w, http.StatusOK, a.backend.BulkDelete(req.IDs))
}

// Stream sends hub events as server-sent events until the client goes away.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	sub := a.hub.Subscribe("sse-" + uuid.NewString()[:8])
	if sub == nil {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer a.hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		a.logger.Error("streaming unsupported", "error", err)
		return
	}

	keepAlive := time.NewTicker(keepAlivePeriod)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload, ok := <-sub.Send:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// WebSocket upgrades the connection and sends hub events as text frames.
func (a *API) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := a.hub.Subscribe("ws-" + uuid.NewString()[:8])
	if sub == nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "stream unavailable"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go a.writePump(conn, sub)
	a.readPump(conn, sub)
}

// readPump discards client frames and unsubscribes once the connection fails.
func (a *API) readPump(conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		a.hub.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.logger.Warn("websocket read error", "error", err)
			}
			return
		}
	}
}

// writePump forwards subscriber payloads and keeps the connection alive with pings.
func (a *API) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				a.logger.Warn("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeEnvelopeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.Envelope{Status: false, Data: []models.ItemResult{}, Error: msg})
}
