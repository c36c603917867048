package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/harborchat/harbor-backend/internal/httpx"
	"github.com/harborchat/harbor-backend/internal/throttle"
)

// Throttle applies the shared rate limit to HTTP traffic. The socket
// transport runs the same check per inbound event, keyed identically, so
// limits cannot be dodged by switching transports.
func Throttle(th *throttle.Throttler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := throttle.Descriptor{
			Tracker: c.IP(),
			Route:   throttle.RouteGlobal,
		}
		if err := th.Check(c.UserContext(), d); err != nil {
			return httpx.Error(c, err)
		}
		return c.Next()
	}
}
