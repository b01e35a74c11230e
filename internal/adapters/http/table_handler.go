package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/harborline/tablepos/internal/core"
)

// GetTables returns the floor view, optionally filtered by zone
// GET /api/tables?zone=TERRACE
func (h *Handler) GetTables(c *fiber.Ctx) error {
	if zoneParam := c.Query("zone"); zoneParam != "" {
		zone, err := core.ParseTableZone(zoneParam)
		if err != nil {
			return respondError(c, err)
		}
		tables, err := h.tables.GetByZone(c.Context(), zone)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(tables)
	}

	tables, err := h.tables.GetFloor(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tables)
}

// GetTableTicket returns the active ticket bound to a table
// GET /api/tables/:id/ticket
func (h *Handler) GetTableTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.ActiveTicketForTable(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ticket)
}

// CreateTable adds a table to the floor
// POST /api/tables
func (h *Handler) CreateTable(c *fiber.Ctx) error {
	var req struct {
		Number   string `json:"number"`
		Zone     string `json:"zone"`
		Capacity int    `json:"capacity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	zone, err := core.ParseTableZone(req.Zone)
	if err != nil {
		return respondError(c, err)
	}

	table, err := h.tables.CreateTable(c.Context(), req.Number, zone, req.Capacity)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(table)
}

// UpdateTable changes a table's number, zone or capacity
// PATCH /api/tables/:id
func (h *Handler) UpdateTable(c *fiber.Ctx) error {
	var req struct {
		Number   string `json:"number"`
		Zone     string `json:"zone"`
		Capacity int    `json:"capacity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	zone, err := core.ParseTableZone(req.Zone)
	if err != nil {
		return respondError(c, err)
	}

	table := &core.Table{
		ID:       c.Params("id"),
		Number:   req.Number,
		Zone:     zone,
		Capacity: req.Capacity,
	}
	if err := h.tables.UpdateTable(c.Context(), table); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "table updated"})
}

// DeactivateTable removes a table from the floor
// DELETE /api/tables/:id
func (h *Handler) DeactivateTable(c *fiber.Ctx) error {
	if err := h.tables.DeactivateTable(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "table deactivated"})
}

// ReconcileTables reports tables whose status disagrees with their tickets
// GET /api/tables/reconcile
func (h *Handler) ReconcileTables(c *fiber.Ctx) error {
	mismatches, err := h.tables.Reconcile(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"mismatches": mismatches,
		"count":      len(mismatches),
	})
}
