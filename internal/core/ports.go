package core

import (
	"context"
	"time"
)

// TicketRepository defines the persistence contract for tickets.
type TicketRepository interface {
	Create(ctx context.Context, ticket *Ticket) error
	GetByID(ctx context.Context, id string) (*Ticket, error)
	GetActiveByTable(ctx context.Context, tableID string) (*Ticket, error)
	GetActiveCounter(ctx context.Context) ([]*Ticket, error)
	UpdateStatus(ctx context.Context, id string, status TicketStatus) error
	UpdateTotal(ctx context.Context, id string, total float64) error
	ApplyDiscount(ctx context.Context, id string, amount float64, reason string) error
	Cancel(ctx context.Context, id string, reason string, cancelledBy string) error

	// Close settles the ticket and, when tableID is non-nil, frees the
	// table inside the same database transaction. It fails with
	// ErrConflict if the ticket is already paid; any failure rolls the
	// whole operation back.
	Close(ctx context.Context, id string, method PaymentMethod, cash, card float64, tableID *string) error
}

// LineRepository defines the persistence contract for ticket lines.
type LineRepository interface {
	GetByID(ctx context.Context, id string) (*Line, error)
	ListActive(ctx context.Context, ticketID string) ([]Line, error)

	// FindMergeable returns the Pending, unnoted line matching product,
	// half-portion flag and unit price exactly, or nil.
	FindMergeable(ctx context.Context, ticketID, productID string, halfPortion bool, unitPrice float64) (*Line, error)

	Create(ctx context.Context, line *Line) error
	IncrementQuantity(ctx context.Context, id string, delta int) error
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	UpdatePrice(ctx context.Context, id string, price float64) error
	UpdateNote(ctx context.Context, id string, note string) error
	UpdateStatus(ctx context.Context, id string, status LineStatus) error
	MarkComped(ctx context.Context, id string, reason string) error

	// SplitForPrice decrements the line by one unit and inserts a new
	// quantity-1 line at the new price, preserving the price history of
	// the remaining units. Returns the id of the new line.
	SplitForPrice(ctx context.Context, id string, newPrice float64) (string, error)

	// SumActive computes the ticket total from source lines: the sum of
	// quantity times unit price over lines that are neither cancelled nor
	// comped.
	SumActive(ctx context.Context, ticketID string) (float64, error)
}

// TableRepository defines the persistence contract for tables.
type TableRepository interface {
	GetByID(ctx context.Context, id string) (*Table, error)
	GetAll(ctx context.Context) ([]*Table, error)
	GetByZone(ctx context.Context, zone TableZone) ([]*Table, error)
	UpdateStatus(ctx context.Context, id string, status TableStatus) error
	Create(ctx context.Context, table *Table) error
	Update(ctx context.Context, table *Table) error
	Deactivate(ctx context.Context, id string) error
}

// OperatorRepository defines the persistence contract for operators.
type OperatorRepository interface {
	GetByID(ctx context.Context, id string) (*Operator, error)
	GetActiveByRoles(ctx context.Context, roles ...OperatorRole) ([]*Operator, error)
	Create(ctx context.Context, operator *Operator) error
}

// ProductRepository exposes the read-only menu surface needed by the order
// screen. Catalog administration lives outside the core.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetMenu(ctx context.Context) (map[string][]*Product, error)
}

// ReportRepository exposes read-only rollups over closed tickets. Paid
// tickets are immutable, so these reads are stable without locking.
type ReportRepository interface {
	PaidBetween(ctx context.Context, from, to time.Time) ([]*Ticket, error)
	Overview(ctx context.Context) (*SalesOverview, error)
	RevenueTrend(ctx context.Context, days int) ([]*RevenueTrendPoint, error)
	TopProducts(ctx context.Context, limit int) ([]*TopProduct, error)
}

// SessionRepository manages operator terminal sessions in Redis.
type SessionRepository interface {
	Get(ctx context.Context, token string) (*TerminalSession, error)
	Set(ctx context.Context, token string, session *TerminalSession, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}

// SalesOverview summarizes today's settled business.
type SalesOverview struct {
	Revenue       float64 `json:"revenue"`
	TicketCount   int     `json:"ticket_count"`
	AverageTicket float64 `json:"average_ticket"`
	DiscountTotal float64 `json:"discount_total"`
	CashTotal     float64 `json:"cash_total"`
	CardTotal     float64 `json:"card_total"`
}

// RevenueTrendPoint is one day of settled revenue.
type RevenueTrendPoint struct {
	Date        string  `json:"date"`
	Revenue     float64 `json:"revenue"`
	TicketCount int     `json:"ticket_count"`
}

// TopProduct is a product ranked by settled revenue.
type TopProduct struct {
	ProductName  string  `json:"product_name"`
	QuantitySold int     `json:"quantity_sold"`
	Revenue      float64 `json:"revenue"`
}
