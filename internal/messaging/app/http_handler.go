package app

import (
	"daycare_messaging_service/internal/messaging/domain"
	errprocess "daycare_messaging_service/pkg/err"
	"daycare_messaging_service/pkg/logger"
	"daycare_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// HTTPHandler REST surface of the messaging core
type HTTPHandler struct {
	send          *SendMessageUseCase
	threads       *ThreadUseCase
	conversations *ConversationUseCase
}

// NewHTTPHandler create HTTPHandler
func NewHTTPHandler(send *SendMessageUseCase, threads *ThreadUseCase, conversations *ConversationUseCase) *HTTPHandler {
	return &HTTPHandler{send: send, threads: threads, conversations: conversations}
}

// MarkReadRequest body of mark-read
type MarkReadRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func principal(c *fiber.Ctx) (domain.Principal, bool) {
	claims, ok := middlewares.ClaimsFrom(c)
	if !ok {
		return domain.Principal{}, false
	}
	return PrincipalFromClaims(claims), true
}

func writeError(c *fiber.Ctx, err error) error {
	status := errprocess.HTTPStatus(err)
	kind := errprocess.KindOf(err)
	if kind == errprocess.KindNotFound {
		kind = errprocess.KindPermissionDenied
	}
	if status >= fiber.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": errprocess.PublicMessage(err),
		"code":  kind,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token"})
}

// SendMessage godoc
// @Summary Send a message
// @Description Append a broadcast, group or individual message
// @Tags Messages
// @Accept json
// @Produce json
// @Param body body domain.ComposeRequest true "message"
// @Success 201 {object} domain.Message
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Permission denied"
// @Router /messages [post]
func (h *HTTPHandler) SendMessage(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}

	var req domain.ComposeRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errprocess.Validation("malformed request body"))
	}

	msg, err := h.send.Execute(c.UserContext(), p, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// ListConversations godoc
// @Summary Inbox of the caller
// @Tags Messages
// @Produce json
// @Success 200 {object} map[string][]domain.Conversation
// @Router /messages/conversations [get]
func (h *HTTPHandler) ListConversations(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}

	convs, err := h.conversations.List(c.UserContext(), p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

// ListThread godoc
// @Summary Messages of one thread
// @Description page 1 holds the newest messages, each page is ordered oldest first
// @Tags Messages
// @Produce json
// @Param kind path string true "broadcast, group or individual"
// @Param id path string false "group id or parent id"
// @Param page query int false "page, default 1"
// @Param per_page query int false "page size, default 20, max 100"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Permission denied"
// @Router /messages/thread/{kind}/{id} [get]
func (h *HTTPHandler) ListThread(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}

	key, err := domain.ParseThreadKey(c.Params("kind"), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	msgs, info, err := h.threads.ListThread(c.UserContext(), p, key, domain.Page{
		Page:    c.QueryInt("page", 1),
		PerPage: c.QueryInt("per_page", 0),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"messages":   msgs,
		"pagination": info,
	})
}

// UnreadCount godoc
// @Summary Unread count of one thread
// @Tags Messages
// @Produce json
// @Param kind path string true "broadcast, group or individual"
// @Param id path string false "group id or parent id"
// @Success 200 {object} map[string]int
// @Router /messages/unread/{kind}/{id} [get]
func (h *HTTPHandler) UnreadCount(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}

	key, err := domain.ParseThreadKey(c.Params("kind"), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	n, err := h.threads.UnreadCount(c.UserContext(), p, key)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": n})
}

// MarkRead godoc
// @Summary Mark a thread as read
// @Tags Messages
// @Accept json
// @Param body body MarkReadRequest true "thread"
// @Success 204
// @Failure 403 {object} map[string]string "Permission denied"
// @Router /messages/thread/mark-read [post]
func (h *HTTPHandler) MarkRead(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return unauthorized(c)
	}

	var req MarkReadRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errprocess.Validation("malformed request body"))
	}
	key, err := domain.ParseThreadKey(req.Kind, req.ID)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.threads.MarkRead(c.UserContext(), p, key); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
