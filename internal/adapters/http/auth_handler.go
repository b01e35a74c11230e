package http

import (
	"github.com/gofiber/fiber/v2"
)

// LoginPIN authenticates an operator by PIN and issues a terminal token
// POST /api/auth/login-pin
func (h *Handler) LoginPIN(c *fiber.Ctx) error {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	token, operator, err := h.auth.LoginWithPIN(c.Context(), req.PIN)
	if err != nil {
		return respondError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     "auth_token",
		Value:    token,
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{
		"token": token,
		"operator": fiber.Map{
			"id":   operator.ID,
			"name": operator.Name,
			"role": operator.Role,
		},
	})
}

// Logout revokes the terminal session
// POST /api/auth/logout
func (h *Handler) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals("auth_token").(string)
	if token != "" {
		if err := h.auth.Logout(c.Context(), token); err != nil {
			return respondError(c, err)
		}
	}

	c.ClearCookie("auth_token")
	return c.JSON(fiber.Map{"message": "logged out"})
}
