// Package websocket implements the forward-WebSocket style protocol
// adapter: the bot dials out to a broker, receives a stream of post_type
// events, and sends API calls as echo-correlated request/response frames
// over the same connection.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/rakunlabs/atbot/internal/adapter"
)

const (
	reconnectDelay  = 5 * time.Second
	pingInterval    = 30 * time.Second
	pingTimeout     = 10 * time.Second
	apiCallTimeout  = 5 * time.Second
	connectDeadline = 10 * time.Second
)

// Adapter implements adapter.Adapter over a client WebSocket connection.
type Adapter struct {
	botID       string
	url         string
	accessToken string
	selfTrigger bool

	mu       sync.Mutex
	handler  adapter.Handler
	conn     *websocket.Conn
	connMu   sync.Mutex
	stopped  chan struct{}
	stopOnce sync.Once

	pending *pendingCalls

	connectedMu sync.RWMutex
	connected   bool
}

// New returns a Constructor for the WebSocket adapter.
func New() adapter.Constructor {
	return func(botID string, config map[string]any, secrets map[string]string) (adapter.Adapter, error) {
		host, _ := config["ws_host"].(string)
		if host == "" {
			return nil, fmt.Errorf("websocket: 'ws_host' is required")
		}
		port, ok := toInt(config["ws_port"])
		if !ok {
			return nil, fmt.Errorf("websocket: 'ws_port' is required")
		}
		selfTrigger, _ := config["self_trigger"].(bool)

		return &Adapter{
			botID:       botID,
			url:         fmt.Sprintf("ws://%s:%d/", host, port),
			accessToken: secrets["access_token"],
			selfTrigger: selfTrigger,
			stopped:     make(chan struct{}),
			pending:     newPendingCalls(),
		}, nil
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func (a *Adapter) ProtocolName() string  { return "websocket" }
func (a *Adapter) CacheKeyField() string { return "" }

func (a *Adapter) SetMessageHandler(h adapter.Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handler == nil {
		a.handler = h
	}
}

// Start dials the broker and begins the read loop in the background,
// blocking until the first connection succeeds or connectDeadline elapses.
func (a *Adapter) Start(ctx context.Context) error {
	connected := make(chan struct{})
	go a.run(connected)

	select {
	case <-connected:
		return nil
	case <-time.After(connectDeadline):
		return fmt.Errorf("websocket: connect to %s timed out", a.url)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) Stop(_ context.Context) error {
	a.stopOnce.Do(func() { close(a.stopped) })

	a.connMu.Lock()
	conn := a.conn
	a.connMu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	return nil
}

func (a *Adapter) setConnected(v bool) {
	a.connectedMu.Lock()
	a.connected = v
	a.connectedMu.Unlock()
}

func (a *Adapter) isConnected() bool {
	a.connectedMu.RLock()
	defer a.connectedMu.RUnlock()
	return a.connected
}

// run owns the reconnect loop: dial, pump frames until the connection
// drops, wait reconnectDelay, repeat, until Stop is called.
func (a *Adapter) run(connected chan struct{}) {
	first := true
	for {
		select {
		case <-a.stopped:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(a.url, a.authHeader())
		if err != nil {
			a.waitReconnect()
			continue
		}

		a.connMu.Lock()
		a.conn = conn
		a.connMu.Unlock()
		a.setConnected(true)

		if first {
			close(connected)
			first = false
		}

		a.pump(conn)

		a.setConnected(false)
		select {
		case <-a.stopped:
			return
		default:
		}
		a.waitReconnect()
	}
}

func (a *Adapter) waitReconnect() {
	select {
	case <-time.After(reconnectDelay):
	case <-a.stopped:
	}
}

func (a *Adapter) authHeader() map[string][]string {
	if a.accessToken == "" {
		return nil
	}
	return map[string][]string{"Authorization": {"Bearer " + a.accessToken}}
}

// pump runs the ping/read goroutines for one connection lifetime and
// blocks until the connection closes.
func (a *Adapter) pump(conn *websocket.Conn) {
	done := make(chan struct{})

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout))

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingTimeout))
			}
		}
	}()

	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		a.onMessage(raw)
	}
}

// onMessage dispatches one raw frame: either it answers a pending API call
// (carries status/retcode and an echo) or it is routed as an inbound event.
func (a *Adapter) onMessage(raw []byte) {
	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return
	}

	if _, hasStatus := probe["status"]; hasStatus {
		a.pending.resolve(probe)
		return
	}
	if _, hasRetcode := probe["retcode"]; hasRetcode {
		a.pending.resolve(probe)
		return
	}

	postType, _ := probe["post_type"].(string)
	if postType == "message_sent" && !a.selfTrigger {
		return
	}

	ev, ok := toEvent(a.botID, postType, probe)
	if !ok {
		return
	}

	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	if h != nil {
		go h(context.Background(), ev)
	}
}

// CallAPI sends an echo-tagged action frame and blocks for its matching
// response, timing out after apiCallTimeout.
func (a *Adapter) CallAPI(ctx context.Context, action string, params map[string]any) (any, error) {
	a.connMu.Lock()
	conn := a.conn
	a.connMu.Unlock()
	if conn == nil || !a.isConnected() {
		return nil, fmt.Errorf("websocket: not connected")
	}

	echo := uuid.NewString()
	wait := a.pending.register(echo)
	defer a.pending.cancel(echo)

	frame, err := json.Marshal(map[string]any{
		"action": action,
		"params": params,
		"echo":   echo,
	})
	if err != nil {
		return nil, fmt.Errorf("websocket: marshal request: %w", err)
	}

	a.connMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, frame)
	a.connMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("websocket: write request: %w", err)
	}

	select {
	case resp := <-wait:
		status, _ := resp["status"].(string)
		retcode, _ := toInt(resp["retcode"])
		if status == "ok" || retcode == 0 {
			return resp["data"], nil
		}
		msg, _ := resp["message"].(string)
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("websocket: api %q failed: %s", action, msg)
	case <-time.After(apiCallTimeout):
		return nil, fmt.Errorf("websocket: api %q timed out", action)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
