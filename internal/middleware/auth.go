package middleware

import (
	"strconv"
	"strings"

	"ripple/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	userID, err := userIDFromHeader(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Locals("userID", userID)
	return c.Next()
}

// OptionalAuth resolves the user ID when a valid token is present but lets
// anonymous requests through. Public feed routes use it so liked state and
// private-post visibility follow the viewer.
func OptionalAuth(c *fiber.Ctx) error {
	if c.Get("Authorization") == "" {
		return c.Next()
	}
	if userID, err := userIDFromHeader(c); err == nil {
		c.Locals("userID", userID)
	}
	return c.Next()
}

func userIDFromHeader(c *fiber.Ctx) (uint, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header format")
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}

	subStr, ok := claims["sub"].(string)
	if !ok {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Invalid token subject")
	}

	userIDVal, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Invalid user ID in token")
	}

	return uint(userIDVal), nil
}
