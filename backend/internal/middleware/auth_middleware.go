package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/user/tradevault/backend/internal/auth"
)

// Protected is a middleware function to verify JWT authentication.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid authorization header format"})
		}

		tokenString := parts[1]
		claims, err := auth.ValidateJWT(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		// Store user information in context for downstream handlers
		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)
		if claims.MiddlemanID != nil {
			c.Locals("middlemanID", *claims.MiddlemanID)
		}

		return c.Next()
	}
}

// MiddlemanOnly requires a token carrying a verified middleman identity.
// It must run after Protected.
func MiddlemanOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals("middlemanID").(uuid.UUID); !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Middleman credentials required"})
		}
		return c.Next()
	}
}
