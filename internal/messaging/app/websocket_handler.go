package app

import (
	"context"
	"time"

	"daycare_messaging_service/internal/messaging/domain"
	"daycare_messaging_service/pkg/logger"
	"daycare_messaging_service/pkg/middlewares"
	"daycare_messaging_service/pkg/token"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// DefaultPingPeriod interval between server pings
const DefaultPingPeriod = 30 * time.Second

// WebsocketHandler register live connections in the Hub
type WebsocketHandler struct {
	hub        *Hub
	pingPeriod time.Duration
	writeWait  time.Duration
}

// NewWebsocketHandler create WebsocketHandler
func NewWebsocketHandler(hub *Hub, pingPeriod, writeWait time.Duration) *WebsocketHandler {
	if pingPeriod <= 0 {
		pingPeriod = DefaultPingPeriod
	}
	if writeWait <= 0 {
		writeWait = DefaultWriteWait
	}
	return &WebsocketHandler{hub: hub, pingPeriod: pingPeriod, writeWait: writeWait}
}

// PrincipalFromClaims map verified token claims to a Principal
func PrincipalFromClaims(claims *token.Claims) domain.Principal {
	return domain.Principal{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Role:     domain.Role(claims.Role),
	}
}

// HandleConnection 是 WebSocket 連線的進入點，token 已在 upgrade 前驗證
func (h *WebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	claims, ok := conn.Locals(middlewares.TokenClaims).(*token.Claims)
	if !ok || claims == nil {
		logger.Log.Warn("websocket without verified claims")
		conn.Close()
		return
	}
	p := PrincipalFromClaims(claims)

	c := h.hub.Register(p, conn)
	ctxClose, cancel := context.WithCancel(ctx)

	defer func() {
		cancel()
		h.hub.Unregister(c)
		conn.Close()
		logger.Log.Info("websocket close", zap.String("tenant", p.TenantID), zap.String("user", p.UserID), zap.String("conn", c.ID))
	}()

	// 連線存活以 pong 延長 read deadline
	pongWait := h.pingPeriod * 2
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// 定期發送 Ping
	go func() {
		ticker := time.NewTicker(h.pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.Ping(h.writeWait); err != nil {
					logger.Log.Debug("ping failed", zap.String("conn", c.ID), zap.Error(err))
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	// client 不需要送資料，讀取只用來偵測斷線
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Warn("websocket read error", zap.String("conn", c.ID), zap.Error(err))
			}
			return
		}
	}
}
