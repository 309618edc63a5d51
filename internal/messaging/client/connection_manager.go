package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultRetryInterval constant delay between reconnect attempts
const DefaultRetryInterval = 3 * time.Second

// State lifecycle of the client connection
type State int32

const (
	// StateIdle Connect not called yet
	StateIdle State = iota
	// StateConnecting dialing the server
	StateConnecting
	// StateOpen connected, notifications flow
	StateOpen
	// StateReconnecting waiting before the next attempt
	StateReconnecting
	// StateAuthFailed credential refused, needs a fresh credential
	StateAuthFailed
	// StateClosed closed by the caller
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateReconnecting:
		return "RECONNECTING"
	case StateAuthFailed:
		return "AUTH_FAILED"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

var (
	// ErrMissingCredential Connect called without a credential
	ErrMissingCredential = errors.New("missing credential")
	// ErrAlreadyConnected Connect called twice
	ErrAlreadyConnected = errors.New("connection manager already started")
)

// Option configure ConnectionManager
type Option func(*ConnectionManager)

// WithRetryInterval override the reconnect delay
func WithRetryInterval(d time.Duration) Option {
	return func(m *ConnectionManager) {
		if d > 0 {
			m.retry = d
		}
	}
}

// WithDialer override the websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(m *ConnectionManager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// ConnectionManager own one persistent notification connection and keep it alive
type ConnectionManager struct {
	serverURL string
	dialer    *websocket.Dialer
	retry     time.Duration

	state atomic.Int32

	mu          sync.Mutex
	conn        *websocket.Conn
	onNotify    []func(domain.Notification)
	onReconnect []func()
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewConnectionManager create ConnectionManager for a ws:// or wss:// endpoint
func NewConnectionManager(serverURL string, opts ...Option) *ConnectionManager {
	m := &ConnectionManager{
		serverURL: serverURL,
		dialer:    websocket.DefaultDialer,
		retry:     DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State current state
func (m *ConnectionManager) State() State {
	return State(m.state.Load())
}

// OnNotify register a handler for every server frame
func (m *ConnectionManager) OnNotify(handler func(domain.Notification)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNotify = append(m.onNotify, handler)
}

// OnReconnect register a handler called after every successful reconnect.
// Pushes sent while disconnected are lost, handlers should refetch.
func (m *ConnectionManager) OnReconnect(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, handler)
}

// Connect start the connection loop in the background.
// After StateAuthFailed, Connect with a fresh credential starts over.
func (m *ConnectionManager) Connect(ctx context.Context, credential string) error {
	if credential == "" {
		// 已在運作中的連線不受影響
		m.mu.Lock()
		if m.done == nil {
			m.setState(StateAuthFailed)
		}
		m.mu.Unlock()
		return ErrMissingCredential
	}

	target, err := url.Parse(m.serverURL)
	if err != nil {
		return err
	}
	q := target.Query()
	q.Set("token", credential)
	target.RawQuery = q.Encode()

	m.mu.Lock()
	if m.done != nil {
		if m.State() != StateAuthFailed {
			m.mu.Unlock()
			return ErrAlreadyConnected
		}
		// run 在 AuthFailed 之後就結束，等它退出再重新開始
		prev, prevCancel := m.done, m.cancel
		m.mu.Unlock()
		<-prev
		prevCancel()

		m.mu.Lock()
		if m.done != prev || m.State() != StateAuthFailed {
			m.mu.Unlock()
			return ErrAlreadyConnected
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(ctx, target.String(), done)
	return nil
}

// Close stop reconnecting and close the live connection
func (m *ConnectionManager) Close() error {
	m.state.Store(int32(StateClosed))

	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	// cancel 之後才讀 conn，run 不會再存入新的連線
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	var err error
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = conn.Close()
	}
	<-done
	return err
}

func (m *ConnectionManager) run(ctx context.Context, target string, done chan struct{}) {
	defer close(done)

	connected := false
	for {
		if ctx.Err() != nil {
			return
		}
		m.setState(StateConnecting)

		conn, resp, err := m.dialer.DialContext(ctx, target, nil)
		if err != nil {
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				// 憑證失效不重試，等外部換新 token
				logger.Log.Warn("notification connection refused", zap.Int("status", resp.StatusCode))
				m.setState(StateAuthFailed)
				return
			}
			logger.Log.Debug("notification dial failed", zap.Error(err))
			if !m.wait(ctx) {
				return
			}
			continue
		}

		m.mu.Lock()
		if ctx.Err() != nil {
			m.mu.Unlock()
			conn.Close()
			return
		}
		m.conn = conn
		m.mu.Unlock()
		m.setState(StateOpen)

		if connected {
			m.fireReconnect()
		}
		connected = true

		m.readLoop(conn)

		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		conn.Close()

		if !m.wait(ctx) {
			return
		}
	}
}

// setState 不覆蓋 Close 設定的狀態
func (m *ConnectionManager) setState(s State) {
	for {
		cur := m.state.Load()
		if State(cur) == StateClosed {
			return
		}
		if m.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// wait constant backoff, false when ctx ended
func (m *ConnectionManager) wait(ctx context.Context) bool {
	m.setState(StateReconnecting)
	t := time.NewTimer(m.retry)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *ConnectionManager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if m.State() != StateClosed {
				logger.Log.Debug("notification connection dropped", zap.Error(err))
			}
			return
		}

		var n domain.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			logger.Log.Warn("drop malformed notification", zap.Error(err))
			continue
		}

		m.mu.Lock()
		handlers := slices.Clone(m.onNotify)
		m.mu.Unlock()
		for _, h := range handlers {
			h(n)
		}
	}
}

func (m *ConnectionManager) fireReconnect() {
	m.mu.Lock()
	handlers := slices.Clone(m.onReconnect)
	m.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}
