package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/harborline/tablepos/internal/core"
	"github.com/harborline/tablepos/internal/middleware"
	"github.com/harborline/tablepos/internal/service"
)

// PayCash settles a ticket with cash
// POST /api/tickets/:id/pay/cash
func (h *Handler) PayCash(c *fiber.Ctx) error {
	var req struct {
		Tendered float64 `json:"tendered"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	change, err := h.settlement.ProcessCash(c.Context(), c.Params("id"), req.Tendered)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "ticket paid",
		"change":  change,
	})
}

// PayCard settles a ticket by card
// POST /api/tickets/:id/pay/card
func (h *Handler) PayCard(c *fiber.Ctx) error {
	if err := h.settlement.ProcessCard(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "ticket paid"})
}

// PaySplit settles a ticket part cash, part card
// POST /api/tickets/:id/pay/split
func (h *Handler) PaySplit(c *fiber.Ctx) error {
	var req struct {
		CashPortion float64 `json:"cash_portion"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.settlement.ProcessSplit(c.Context(), c.Params("id"), req.CashPortion); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "ticket paid"})
}

// ApplyDiscount stores a discount on a ticket through the authorization gate
// POST /api/tickets/:id/discount
func (h *Handler) ApplyDiscount(c *fiber.Ctx) error {
	var req struct {
		Percent    *float64 `json:"percent"`
		Fixed      *float64 `json:"fixed"`
		Reason     string   `json:"reason"`
		ManagerPIN string   `json:"manager_pin"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	operator := middleware.Operator(c)
	amount, err := h.settlement.ApplyDiscount(c.Context(), service.DiscountInput{
		TicketID:   c.Params("id"),
		Percent:    req.Percent,
		Fixed:      req.Fixed,
		Reason:     req.Reason,
		Operator:   operator,
		ManagerPIN: req.ManagerPIN,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":  "discount applied",
		"discount": amount,
	})
}

// OpenSettlementSession starts a split-by-guest checkout
// POST /api/tickets/:id/settlement
func (h *Handler) OpenSettlementSession(c *fiber.Ctx) error {
	operator := middleware.Operator(c)
	view, err := h.settlement.OpenSession(c.Context(), c.Params("id"), operator.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// GetSettlementSession returns the current state of a session
// GET /api/settlement/:sessionId
func (h *Handler) GetSettlementSession(c *fiber.Ctx) error {
	view, err := h.settlement.GetSession(c.Params("sessionId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// SelectSettlementUnit toggles selection on one unit row
// POST /api/settlement/:sessionId/select
func (h *Handler) SelectSettlementUnit(c *fiber.Ctx) error {
	var req struct {
		LineID    string `json:"line_id"`
		UnitIndex int    `json:"unit_index"`
		Selected  bool   `json:"selected"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	view, err := h.settlement.SelectUnit(c.Params("sessionId"), req.LineID, req.UnitIndex, req.Selected)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// PaySettlementSelection settles the selected unit rows
// POST /api/settlement/:sessionId/pay
func (h *Handler) PaySettlementSelection(c *fiber.Ctx) error {
	var req struct {
		Method      string  `json:"method"`
		Tendered    float64 `json:"tendered"`
		CashPortion float64 `json:"cash_portion"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	method, err := core.ParsePaymentMethod(req.Method)
	if err != nil {
		return respondError(c, err)
	}

	result, err := h.settlement.PaySelection(c.Context(), c.Params("sessionId"), method, req.Tendered, req.CashPortion)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// AbandonSettlementSession drops a session without closing the ticket
// DELETE /api/settlement/:sessionId
func (h *Handler) AbandonSettlementSession(c *fiber.Ctx) error {
	if err := h.settlement.AbandonSession(c.Params("sessionId")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "session abandoned"})
}
