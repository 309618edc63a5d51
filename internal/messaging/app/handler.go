package app

import (
	"fmt"

	"daycare_messaging_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ConnectCheck liveness check
// @Summary Health check
// @Tags Shared
// @Success 200 {string} string "ok"
// @Router /healthz [get]
func ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// DebugLogFlag toggle debug log flag
// @Summary Toggle Debug Log Flag
// @Description Enable or disable debug logging of this instance
// @Tags Shared
// @Param mode path string true "on or off"
// @Success 200 {string} string "debug mode updated"
// @Failure 400 {string} string "Invalid mode"
// @Router /debug/log/{mode} [post]
func DebugLogFlag(c *fiber.Ctx) error {
	var status bool
	switch c.Params("mode") {
	case "on", "true":
		status = true
	case "off", "false":
	default:
		return c.SendStatus(fiber.StatusBadRequest)
	}

	logger.Log.SetDebugMode(status)
	logger.Log.Info("debug", zap.Bool("status", status))
	return c.SendString(fmt.Sprintf("debug mode is : %t", status))
}
