package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/harborline/tablepos/internal/core"
	"github.com/harborline/tablepos/internal/middleware"
	"github.com/harborline/tablepos/internal/service"
)

// CreateTicket opens a new ticket
// POST /api/tickets
func (h *Handler) CreateTicket(c *fiber.Ctx) error {
	var req struct {
		Kind    string  `json:"kind"`
		TableID *string `json:"table_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	kind, err := core.ParseTicketKind(req.Kind)
	if err != nil {
		return respondError(c, err)
	}

	operator := middleware.Operator(c)
	ticket, err := h.tickets.CreateTicket(c.Context(), kind, req.TableID, operator.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ticket)
}

// GetTicket retrieves a ticket with its lines
// GET /api/tickets/:id
func (h *Handler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ticket)
}

// GetCounterTickets lists open counter-pickup and delivery tickets
// GET /api/tickets/counter
func (h *Handler) GetCounterTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.ActiveCounterTickets(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tickets)
}

// AddLine adds a product to a ticket. With an empty id in the path segment
// "new", a counter or delivery ticket is created on the fly.
// POST /api/tickets/:id/lines
func (h *Handler) AddLine(c *fiber.Ctx) error {
	var req struct {
		Kind        string  `json:"kind"`
		ProductID   string  `json:"product_id"`
		Quantity    int     `json:"quantity"`
		HalfPortion bool    `json:"half_portion"`
		UnitPrice   float64 `json:"unit_price"`
		Note        string  `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	ticketID := c.Params("id")
	kind := core.TicketKindDineIn
	if ticketID == "new" {
		ticketID = ""
		parsed, err := core.ParseTicketKind(req.Kind)
		if err != nil {
			return respondError(c, err)
		}
		kind = parsed
	}

	operator := middleware.Operator(c)
	newTicketID, lineID, err := h.tickets.AddLine(c.Context(), service.AddLineInput{
		TicketID:    ticketID,
		Kind:        kind,
		OperatorID:  operator.ID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		HalfPortion: req.HalfPortion,
		UnitPrice:   req.UnitPrice,
		Note:        req.Note,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ticket_id": newTicketID,
		"line_id":   lineID,
	})
}

// UpdateLineQuantity sets a line's quantity; zero cancels the line
// PATCH /api/lines/:id/quantity
func (h *Handler) UpdateLineQuantity(c *fiber.Ctx) error {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.tickets.SetLineQuantity(c.Context(), c.Params("id"), req.Quantity); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "quantity updated"})
}

// UpdateLinePrice changes a line's unit price
// PATCH /api/lines/:id/price
func (h *Handler) UpdateLinePrice(c *fiber.Ctx) error {
	var req struct {
		Price float64 `json:"price"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.tickets.ChangeLinePrice(c.Context(), c.Params("id"), req.Price); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "price updated"})
}

// UpdateLineNote sets a line's note
// PATCH /api/lines/:id/note
func (h *Handler) UpdateLineNote(c *fiber.Ctx) error {
	var req struct {
		Note string `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.tickets.SetLineNote(c.Context(), c.Params("id"), req.Note); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "note updated"})
}

// CancelLine voids a line
// POST /api/lines/:id/cancel
func (h *Handler) CancelLine(c *fiber.Ctx) error {
	if err := h.tickets.CancelLine(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "line cancelled"})
}

// CompLine marks a line complimentary through the authorization gate
// POST /api/lines/:id/comp
func (h *Handler) CompLine(c *fiber.Ctx) error {
	var req struct {
		Reason     string `json:"reason"`
		ManagerPIN string `json:"manager_pin"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	operator := middleware.Operator(c)
	if err := h.settlement.ApplyComp(c.Context(), c.Params("id"), req.Reason, operator, req.ManagerPIN); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "line comped"})
}

// RequestBill moves a ticket to bill-requested
// POST /api/tickets/:id/request-bill
func (h *Handler) RequestBill(c *fiber.Ctx) error {
	if err := h.tickets.RequestBill(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "bill requested"})
}

// CancelTicket voids a ticket with a reason
// POST /api/tickets/:id/cancel
func (h *Handler) CancelTicket(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	operator := middleware.Operator(c)
	if err := h.tickets.CancelTicket(c.Context(), c.Params("id"), req.Reason, operator.ID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "ticket cancelled"})
}

// AbandonTicket releases an empty ticket when the operator navigates away
// POST /api/tickets/:id/abandon
func (h *Handler) AbandonTicket(c *fiber.Ctx) error {
	abandoned, err := h.tickets.AbandonIfEmpty(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"abandoned": abandoned})
}
