package services

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/dlx/internal/shared"
	"github.com/gorilla/websocket"
)

// Transport names accepted in the [stream] config section.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// NewDialer returns the dialer for the named transport.
func NewDialer(transport string, api *APIService, client *http.Client) (Dialer, error) {
	switch strings.ToLower(transport) {
	case "", TransportSSE:
		return &SSEDialer{BaseURL: api.BaseURL(), APIKey: api.apiKey, Client: client}, nil
	case TransportWebSocket:
		return &WebSocketDialer{BaseURL: api.BaseURL(), APIKey: api.apiKey}, nil
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", shared.ErrInvalidConfig, transport)
	}
}

// SSEDialer opens the server-sent event stream.
type SSEDialer struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func (d *SSEDialer) Name() string { return TransportSSE }

// Dial issues the GET and checks the response before handing the body to an [SSESource].
func (d *SSEDialer) Dial(ctx context.Context) (Source, error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL(d.BaseURL, StreamPath, d.APIKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: stream status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return NewSSESource(resp.Body), nil
}

// SSESource parses an event-stream body. Each message's data lines are joined with "\n";
// comments and other fields are skipped.
type SSESource struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

func NewSSESource(body io.ReadCloser) *SSESource {
	return &SSESource{body: body, reader: bufio.NewReader(body)}
}

// Next blocks until a complete message has been read.
func (s *SSESource) Next() ([]byte, error) {
	var data [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(line) == 0 && len(data) == 0 {
				return nil, fmt.Errorf("%w: stream ended", shared.ErrTransport)
			}
			if err != io.EOF {
				return nil, fmt.Errorf("%w: %v", shared.ErrTransport, err)
			}
		}
		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 {
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			if err == io.EOF {
				return nil, fmt.Errorf("%w: stream ended", shared.ErrTransport)
			}
			continue
		}

		switch {
		case line[0] == ':':
		case bytes.HasPrefix(line, []byte("data:")):
			value := bytes.TrimPrefix(line[len("data:"):], []byte(" "))
			data = append(data, bytes.Clone(value))
		}

		if err == io.EOF {
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			return nil, fmt.Errorf("%w: stream ended", shared.ErrTransport)
		}
	}
}

func (s *SSESource) Close() error {
	return s.body.Close()
}

// WebSocketDialer opens the websocket channel. Each text frame holds one event.
type WebSocketDialer struct {
	BaseURL string
	APIKey  string
	Dialer  *websocket.Dialer
}

func (d *WebSocketDialer) Name() string { return TransportWebSocket }

func (d *WebSocketDialer) Dial(ctx context.Context) (Source, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	header.Set(shared.APIKeyHeader, d.APIKey)

	target := websocketURL(streamURL(d.BaseURL, WebSocketPath, d.APIKey))
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: websocket handshake status %d", shared.ErrAPIRequest, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	return newWebSocketSource(ctx, conn), nil
}

// WebSocketSource reads frames and keeps the connection alive with pings.
type WebSocketSource struct {
	conn *websocket.Conn
	stop func() bool
	done chan struct{}
	once sync.Once
	wmu  sync.Mutex
}

func newWebSocketSource(ctx context.Context, conn *websocket.Conn) *WebSocketSource {
	s := &WebSocketSource{conn: conn, done: make(chan struct{})}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	s.stop = context.AfterFunc(ctx, func() { s.shutdown() })

	go s.pingPump()
	return s
}

func (s *WebSocketSource) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.wmu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *WebSocketSource) Next() ([]byte, error) {
	for {
		kind, msg, err := s.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrTransport, err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			s.conn.SetReadDeadline(time.Now().Add(pongWait))
			return msg, nil
		}
	}
}

// Close sends a close frame and releases the connection. It is safe to call twice.
func (s *WebSocketSource) Close() error {
	s.stop()
	return s.shutdown()
}

func (s *WebSocketSource) shutdown() error {
	var err error
	s.once.Do(func() {
		close(s.done)

		s.wmu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		s.wmu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func websocketURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}
