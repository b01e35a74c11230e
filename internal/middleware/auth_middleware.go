package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/harborline/tablepos/internal/core"
	"github.com/harborline/tablepos/internal/service"
)

// AuthMiddleware validates the bearer token and puts the operator's
// terminal session into the request context. Every authorization-sensitive
// handler reads the operator from there; there is no ambient session.
func AuthMiddleware(authService *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies("auth_token")

		if token == "" {
			authHeader := c.Get("Authorization")
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) == 2 && parts[0] == "Bearer" {
					token = parts[1]
				}
			}
		}

		// EventSource cannot set Authorization headers in browsers.
		// Allow token query param fallback for the SSE endpoint only.
		if token == "" && strings.HasSuffix(c.Path(), "/events") {
			token = strings.TrimSpace(c.Query("token"))
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized: no token provided",
			})
		}

		session, err := authService.ValidateToken(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized: invalid token",
			})
		}

		c.Locals("operator_id", session.OperatorID)
		c.Locals("operator_name", session.Name)
		c.Locals("operator_role", string(session.Role))
		c.Locals("auth_token", token)

		return c.Next()
	}
}

// RequireRoles enforces role-based access control after AuthMiddleware
func RequireRoles(allowedRoles ...core.OperatorRole) fiber.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		allowed[string(role)] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("operator_role").(string)
		if role == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden: role not found in session",
			})
		}

		if _, ok := allowed[role]; !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden: insufficient permissions",
			})
		}

		return c.Next()
	}
}

// Operator rebuilds the acting operator from the request context
func Operator(c *fiber.Ctx) *core.Operator {
	id, _ := c.Locals("operator_id").(string)
	name, _ := c.Locals("operator_name").(string)
	roleValue, _ := c.Locals("operator_role").(string)

	role, err := core.ParseOperatorRole(roleValue)
	if err != nil {
		role = core.OperatorRoleStaff
	}

	return &core.Operator{
		ID:       id,
		Name:     name,
		Role:     role,
		IsActive: true,
	}
}
