package http

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/harborline/tablepos/internal/core"
	"github.com/harborline/tablepos/internal/events"
	"github.com/harborline/tablepos/internal/service"
)

// Handler handles HTTP requests for the POS terminals
type Handler struct {
	tickets    *service.TicketService
	settlement *service.SettlementService
	tables     *service.TableService
	auth       *service.AuthService
	reports    *service.ReportService
	products   core.ProductRepository
	eventBus   *events.EventBus
}

// NewHandler creates a new HTTP handler
func NewHandler(
	tickets *service.TicketService,
	settlement *service.SettlementService,
	tables *service.TableService,
	auth *service.AuthService,
	reports *service.ReportService,
	products core.ProductRepository,
	eventBus *events.EventBus,
) *Handler {
	return &Handler{
		tickets:    tickets,
		settlement: settlement,
		tables:     tables,
		auth:       auth,
		reports:    reports,
		products:   products,
		eventBus:   eventBus,
	}
}

// respondError maps the failure taxonomy onto HTTP status codes
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, core.ErrInvalidState), errors.Is(err, core.ErrInsufficientAmount):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, core.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, core.ErrAuthorizationDenied):
		status = fiber.StatusForbidden
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// Health handles health checks
// GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// GetMenu returns all active products grouped by category
// GET /api/menu
func (h *Handler) GetMenu(c *fiber.Ctx) error {
	menu, err := h.products.GetMenu(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(menu)
}

// SSEEvents handles Server-Sent Events for real-time floor updates
// GET /api/events
func (h *Handler) SSEEvents(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	ctx, cancel := context.WithCancel(c.Context())
	defer cancel()

	subscriberID := uuid.New().String()
	eventChan := h.eventBus.Subscribe(ctx, subscriberID)

	c.Write([]byte("event: connected\ndata: {\"message\":\"connected\"}\n\n"))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-eventChan:
				if !ok {
					return
				}

				sseData, err := events.FormatSSE(event)
				if err != nil {
					slog.Warn("failed to format SSE event", "type", event.Type, "error", err)
					continue
				}

				if _, err := w.Write([]byte(sseData)); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}

			case <-ticker.C:
				if _, err := w.Write([]byte(": heartbeat\n\n")); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}
