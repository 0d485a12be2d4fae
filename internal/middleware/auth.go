// Package middleware provides authentication and authorization middleware for the application.
package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"puzzlemarket/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

const localsPlayerID = "playerID"

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
		"code":  "UNAUTHORIZED",
	})
}

// AuthRequired is a middleware that enforces authentication for protected routes.
// Tokens are issued by the identity service; the player ID travels in "sub".
func AuthRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return unauthorized(c, "Authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return unauthorized(c, "Invalid authorization header format")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	if cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWTAudience))
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return unauthorized(c, "Invalid or expired token")
	}

	subStr, err := token.Claims.GetSubject()
	if err != nil || subStr == "" {
		return unauthorized(c, "Invalid token structure - missing subject")
	}

	playerID, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil || playerID == 0 {
		return unauthorized(c, "Invalid player ID in token")
	}

	c.Locals(localsPlayerID, uint(playerID))
	c.SetUserContext(WithPlayer(c.UserContext(), uint(playerID)))

	return c.Next()
}

// PlayerID returns the authenticated player ID stored by AuthRequired.
func PlayerID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(localsPlayerID).(uint)
	return id, ok && id != 0
}

// AdminChecker reports whether a player holds marketplace admin rights.
type AdminChecker func(ctx context.Context, playerID uint) (bool, error)

// AdminRequired rejects non-admin players. It must run after AuthRequired.
func AdminRequired(isAdmin AdminChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		playerID, ok := PlayerID(c)
		if !ok {
			return unauthorized(c, "Authentication required")
		}
		admin, err := isAdmin(c.UserContext(), playerID)
		if err != nil {
			Logger.ErrorContext(c.UserContext(), "admin lookup failed", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal server error",
				"code":  "INTERNAL_ERROR",
			})
		}
		if !admin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin privileges required",
				"code":  "NOT_AUTHORIZED",
			})
		}
		return c.Next()
	}
}
