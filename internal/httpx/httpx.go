// Package httpx maps service results and errors onto the standard response
// envelope. The socket transport produces the same envelope through the
// realtime package, so a client parses one shape everywhere.
package httpx

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/harborchat/harbor-backend/internal/apperr"
	"github.com/harborchat/harbor-backend/internal/logger"
	"github.com/harborchat/harbor-backend/internal/realtime"
)

// Success writes the success envelope with the given status code.
func Success(c *fiber.Ctx, statusCode int, data interface{}, meta map[string]interface{}) error {
	return c.Status(statusCode).JSON(realtime.NewSuccessEnvelope(statusCode, data, meta))
}

// Error writes the failure envelope for any error. Internal causes are logged
// here and never leak to the client.
func Error(c *fiber.Ctx, err error) error {
	appErr := apperr.From(err)
	if appErr.Kind == apperr.KindInternal {
		logger.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Msg("request failed")
	}
	if appErr.Kind == apperr.KindRateLimited && appErr.RetryAfterSeconds > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(appErr.RetryAfterSeconds))
	}
	status := appErr.Status()
	return c.Status(status).JSON(realtime.NewErrorEnvelope(status, appErr.Code, appErr.Message))
}

// ParseUintParam reads a numeric route parameter, rejecting junk with a
// validation error.
func ParseUintParam(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid " + name)
	}
	return uint(id), nil
}

// UserID returns the authenticated user id placed in locals by the auth
// middleware.
func UserID(c *fiber.Ctx) string {
	if id, ok := c.Locals("userID").(string); ok {
		return id
	}
	return ""
}
