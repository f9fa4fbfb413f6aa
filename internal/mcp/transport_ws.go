package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport implements the MCP transport over a raw WebSocket JSON-RPC
// framing, for tool servers that prefer a single persistent duplex
// connection over HTTP+SSE's request/POST split.
type WSTransport struct {
	config *ServerConfig
	logger *slog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	pending   map[string]chan *JSONRPCResponse
	pendingMu sync.Mutex
	events    chan *JSONRPCNotification
	requests  chan *JSONRPCRequest
	nextID    atomic.Int64

	connected atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewWSTransport creates a new WebSocket transport.
func NewWSTransport(cfg *ServerConfig) *WSTransport {
	return &WSTransport{
		config:   cfg,
		logger:   slog.Default().With("mcp_server", cfg.ID, "transport", "websocket"),
		pending:  make(map[string]chan *JSONRPCResponse),
		events:   make(chan *JSONRPCNotification, 100),
		requests: make(chan *JSONRPCRequest, 100),
		stopChan: make(chan struct{}),
	}
}

// Connect dials the WebSocket endpoint.
func (t *WSTransport) Connect(ctx context.Context) error {
	if t.config.URL == "" {
		return fmt.Errorf("URL is required for websocket transport")
	}

	wsURL := t.config.URL
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	header := http.Header{}
	for k, v := range t.config.Headers {
		header.Set(k, v)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, header)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	t.conn = conn
	t.connected.Store(true)

	t.wg.Add(1)
	go t.readLoop()

	return nil
}

// Close closes the WebSocket connection.
func (t *WSTransport) Close() error {
	t.connected.Store(false)
	close(t.stopChan)

	if t.conn != nil {
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = t.conn.Close()
	}

	t.wg.Wait()
	return nil
}

// Call sends a request and waits for a response.
func (t *WSTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}

	id := fmt.Sprintf("%d", t.nextID.Add(1))
	req := JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = paramsJSON
	}

	respChan := make(chan *JSONRPCResponse, 1)
	t.pendingMu.Lock()
	t.pending[id] = respChan
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	t.connMu.Lock()
	err := t.conn.WriteJSON(req)
	t.connMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	timeout := t.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("request timeout after %v", timeout)
	case <-t.stopChan:
		return nil, fmt.Errorf("transport closed")
	}
}

// Notify sends a notification (no response expected).
func (t *WSTransport) Notify(ctx context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("not connected")
	}
	notif := JSONRPCNotification{JSONRPC: "2.0", Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = paramsJSON
	}

	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.conn.WriteJSON(notif)
}

// Respond sends a response to a server-initiated request.
func (t *WSTransport) Respond(ctx context.Context, id any, result any, rpcErr *JSONRPCError) error {
	if !t.connected.Load() {
		return fmt.Errorf("not connected")
	}
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	if rpcErr == nil && result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resp.Result = data
	}

	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.conn.WriteJSON(resp)
}

// Events returns the notification channel.
func (t *WSTransport) Events() <-chan *JSONRPCNotification { return t.events }

// Requests returns the server-initiated request channel.
func (t *WSTransport) Requests() <-chan *JSONRPCRequest { return t.requests }

// Connected reports whether the socket is open.
func (t *WSTransport) Connected() bool { return t.connected.Load() }

func (t *WSTransport) readLoop() {
	defer t.wg.Done()
	defer t.connected.Store(false)

	for {
		var raw json.RawMessage
		if err := t.conn.ReadJSON(&raw); err != nil {
			select {
			case <-t.stopChan:
			default:
				t.logger.Debug("websocket read error", "error", err)
			}
			return
		}
		t.processMessage(raw)
	}
}

func (t *WSTransport) processMessage(raw json.RawMessage) {
	var resp JSONRPCResponse
	if err := json.Unmarshal(raw, &resp); err == nil && resp.ID != nil {
		id := fmt.Sprintf("%v", resp.ID)
		t.pendingMu.Lock()
		if ch, ok := t.pending[id]; ok {
			select {
			case ch <- &resp:
			default:
			}
			delete(t.pending, id)
		}
		t.pendingMu.Unlock()
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(raw, &req); err == nil && req.Method != "" && req.ID != nil {
		select {
		case t.requests <- &req:
		default:
			t.logger.Warn("request channel full, dropping")
		}
		return
	}

	var notif JSONRPCNotification
	if err := json.Unmarshal(raw, &notif); err == nil && notif.Method != "" {
		select {
		case t.events <- &notif:
		default:
			t.logger.Warn("notification channel full, dropping")
		}
	}
}
