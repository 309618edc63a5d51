package router

import (
	"context"

	"daycare_messaging_service/internal/messaging/app"
	"daycare_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 註冊訊息服務的路由
// @title Daycare Messaging API
// @version 1.0
// @description Messaging between daycare staff and parents
// @BasePath /
func RegisterRoutes(r *fiber.App, httpHandler *app.HTTPHandler, wsHandler *app.WebsocketHandler) {
	r.Get("/healthz", app.ConnectCheck)
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	r.Post("/debug/log/:mode", app.DebugLogFlag)

	msg := r.Group("/messages", middlewares.JWTMiddleware())
	msg.Post("", httpHandler.SendMessage)
	msg.Get("/conversations", httpHandler.ListConversations)
	msg.Post("/thread/mark-read", httpHandler.MarkRead)
	msg.Get("/thread/:kind/:id?", httpHandler.ListThread)
	msg.Get("/unread/:kind/:id?", httpHandler.UnreadCount)

	// token 在 upgrade 之前驗證，失敗直接回 401
	r.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}, middlewares.JWTMiddleware())

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHandler.HandleConnection(context.Background(), c)
	}))
}
