package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/harborline/tablepos/internal/core"
)

// ReportOverview returns today's sales summary
// GET /api/reports/overview
func (h *Handler) ReportOverview(c *fiber.Ctx) error {
	overview, err := h.reports.Overview(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(overview)
}

// ReportTrend returns daily revenue over the last n days
// GET /api/reports/trend?days=7
func (h *Handler) ReportTrend(c *fiber.Ctx) error {
	days, _ := strconv.Atoi(c.Query("days", "7"))
	trend, err := h.reports.RevenueTrend(c.Context(), days)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(trend)
}

// ReportTopProducts returns the best sellers
// GET /api/reports/top-products?limit=10
func (h *Handler) ReportTopProducts(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	products, err := h.reports.TopProducts(c.Context(), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(products)
}

// ReportPaidTickets lists paid tickets in a closed-at range
// GET /api/reports/tickets?from=2026-01-01&to=2026-01-31
func (h *Handler) ReportPaidTickets(c *fiber.Ctx) error {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return respondError(c, core.ErrValidation)
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return respondError(c, core.ErrValidation)
	}

	tickets, err := h.reports.PaidTicketsBetween(c.Context(), from, to.Add(24*time.Hour))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tickets)
}

// ReportDailyPDF renders one day of settled tickets as a PDF
// GET /api/reports/daily.pdf?date=2026-08-30
func (h *Handler) ReportDailyPDF(c *fiber.Ctx) error {
	pdfBytes, filename, err := h.reports.DailySalesReportPDF(c.Context(), c.Query("date"))
	if err != nil {
		return respondError(c, err)
	}

	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(pdfBytes)
}
