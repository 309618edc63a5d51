package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/pkg/logger"
	"daycare_messaging_service/pkg/metrics"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultWriteWait bound of a single notification write
const DefaultWriteWait = 10 * time.Second

var errConnClosed = errors.New("connection closed")

// Conn transport of one live connection
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Connection one registered live connection
type Connection struct {
	ID       string
	UserID   string
	TenantID string

	conn    Conn
	writeMu sync.Mutex
	state   atomic.Int32
}

// State current lifecycle state
func (c *Connection) State() domain.ConnState {
	return domain.ConnState(c.state.Load())
}

// write 同一條連線同時只有一個 writer
func (c *Connection) write(messageType int, data []byte, wait time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.State() != domain.ConnOpen {
		return errConnClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// Ping write a ping control frame
func (c *Connection) Ping(wait time.Duration) error {
	return c.write(websocket.PingMessage, nil, wait)
}

type tenantRegistry struct {
	mu    sync.RWMutex
	users map[string]map[*Connection]struct{}
}

// Hub live connection registry, partitioned per tenant
type Hub struct {
	mu        sync.Mutex
	tenants   map[string]*tenantRegistry
	writeWait time.Duration
	frame     []byte
	inflight  sync.WaitGroup
}

// NewHub create Hub
func NewHub(writeWait time.Duration) *Hub {
	if writeWait <= 0 {
		writeWait = DefaultWriteWait
	}
	frame, _ := json.Marshal(domain.Notification{Type: domain.NotificationNewMessage})
	return &Hub{
		tenants:   make(map[string]*tenantRegistry),
		writeWait: writeWait,
		frame:     frame,
	}
}

func (h *Hub) registry(tenantID string, create bool) *tenantRegistry {
	h.mu.Lock()
	defer h.mu.Unlock()

	reg, ok := h.tenants[tenantID]
	if !ok && create {
		reg = &tenantRegistry{users: make(map[string]map[*Connection]struct{})}
		h.tenants[tenantID] = reg
	}
	return reg
}

// Register associate conn with p, a user may hold several connections
func (h *Hub) Register(p domain.Principal, conn Conn) *Connection {
	c := &Connection{
		ID:       uuid.New().String(),
		UserID:   p.UserID,
		TenantID: p.TenantID,
		conn:     conn,
	}
	c.state.Store(int32(domain.ConnConnecting))

	reg := h.registry(p.TenantID, true)
	reg.mu.Lock()
	conns, ok := reg.users[p.UserID]
	if !ok {
		conns = make(map[*Connection]struct{})
		reg.users[p.UserID] = conns
	}
	conns[c] = struct{}{}
	c.state.Store(int32(domain.ConnOpen))
	reg.mu.Unlock()

	metrics.ActiveConnections.WithLabelValues(p.TenantID).Inc()
	logger.Log.Debug("connection registered",
		zap.String("tenant", p.TenantID),
		zap.String("user", p.UserID),
		zap.String("conn", c.ID),
	)
	return c
}

// Unregister remove c, calling it twice is a no-op
func (h *Hub) Unregister(c *Connection) {
	if !c.state.CompareAndSwap(int32(domain.ConnOpen), int32(domain.ConnClosed)) {
		return
	}

	if reg := h.registry(c.TenantID, false); reg != nil {
		reg.mu.Lock()
		if conns, ok := reg.users[c.UserID]; ok {
			delete(conns, c)
			if len(conns) == 0 {
				delete(reg.users, c.UserID)
			}
		}
		reg.mu.Unlock()
	}

	metrics.ActiveConnections.WithLabelValues(c.TenantID).Dec()
	logger.Log.Debug("connection unregistered",
		zap.String("tenant", c.TenantID),
		zap.String("user", c.UserID),
		zap.String("conn", c.ID),
	)
}

// ConnectionCount open connections of one user
func (h *Hub) ConnectionCount(tenantID, userID string) int {
	reg := h.registry(tenantID, false)
	if reg == nil {
		return 0
	}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.users[userID])
}

// NotifyThread push one new_message frame to every open connection of every viewer.
// Each write runs in its own goroutine with a deadline; failures are logged and dropped.
func (h *Hub) NotifyThread(_ context.Context, ev domain.ThreadEvent) error {
	reg := h.registry(ev.TenantID, false)
	if reg == nil {
		return nil
	}

	reg.mu.RLock()
	var targets []*Connection
	for _, userID := range ev.Viewers {
		for c := range reg.users[userID] {
			targets = append(targets, c)
		}
	}
	reg.mu.RUnlock()

	for _, c := range targets {
		h.inflight.Add(1)
		go h.send(c, ev.Thread)
	}
	return nil
}

func (h *Hub) send(c *Connection, thread domain.ThreadKey) {
	defer h.inflight.Done()

	if err := c.write(websocket.TextMessage, h.frame, h.writeWait); err != nil {
		metrics.NotificationsDropped.Inc()
		logger.Log.Warn("drop new_message notification",
			zap.String("tenant", c.TenantID),
			zap.String("user", c.UserID),
			zap.String("conn", c.ID),
			zap.String("thread", thread.String()),
			zap.Error(err),
		)
		return
	}
	metrics.NotificationsDelivered.Inc()
}

// Wait block until in-flight notification writes finish
func (h *Hub) Wait() {
	h.inflight.Wait()
}
