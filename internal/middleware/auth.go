package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/harborchat/harbor-backend/internal/realtime"
)

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).
		JSON(realtime.NewErrorEnvelope(fiber.StatusUnauthorized, "UNAUTHORIZED", message))
}

// Auth validates the bearer token and stores the caller's subject id in
// locals as "userID". Every identity-bearing route sits behind this.
func Auth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := subjectFromHeader(c.Get("Authorization"), secret)
		if err != nil {
			return unauthorized(c, err.Error())
		}
		c.Locals("userID", userID)
		return c.Next()
	}
}

// SubjectFromToken parses and validates a raw JWT, returning the subject id.
// The socket handshake uses this directly since it authenticates via a query
// parameter rather than a header.
func SubjectFromToken(raw, secret string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errInvalidToken
	}
	return sub, nil
}

var errInvalidToken = fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")

func subjectFromHeader(header, secret string) (string, error) {
	if header == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Missing authorization header")
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header")
	}
	return SubjectFromToken(raw, secret)
}
