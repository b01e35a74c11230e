package core

import (
	"fmt"
	"time"
)

// Ticket represents an open check: dine-in, counter pickup or delivery.
type Ticket struct {
	ID             string        `json:"id"`
	TableID        *string       `json:"table_id,omitempty"` // nil for counter/delivery tickets
	OperatorID     string        `json:"operator_id"`
	Kind           TicketKind    `json:"kind"`
	Status         TicketStatus  `json:"status"`
	Total          float64       `json:"total"`
	Discount       float64       `json:"discount"`
	DiscountReason string        `json:"discount_reason"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	CashAmount     float64       `json:"cash_amount"`
	CardAmount     float64       `json:"card_amount"`
	Note           string        `json:"note"`
	CreatedAt      time.Time     `json:"created_at"`
	ClosedAt       *time.Time    `json:"closed_at,omitempty"`
	CancelReason   string        `json:"cancel_reason,omitempty"`
	CancelledBy    string        `json:"cancelled_by,omitempty"`
	Lines          []Line        `json:"lines"`
}

// AmountDue is the amount left to collect: total minus discount.
func (t *Ticket) AmountDue() float64 {
	return t.Total - t.Discount
}

// IsClosed reports whether the ticket reached a terminal status.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusPaid || t.Status == TicketStatusCancelled
}

// Line is one order entry on a ticket. The unit price is snapshotted at add
// time; later catalog price changes never affect existing lines.
type Line struct {
	ID          string     `json:"id"`
	TicketID    string     `json:"ticket_id"`
	ProductID   string     `json:"product_id"`
	Quantity    int        `json:"quantity"`
	UnitPrice   float64    `json:"unit_price"`
	HalfPortion bool       `json:"half_portion"`
	Note        string     `json:"note"`
	Status      LineStatus `json:"status"`
	CompReason  string     `json:"comp_reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProductName string     `json:"product_name"` // Populated from JOIN
}

// EffectiveTotal returns the billable amount of the line: comped lines
// contribute zero.
func (l *Line) EffectiveTotal() float64 {
	if l.Status == LineStatusComped {
		return 0
	}
	return float64(l.Quantity) * l.UnitPrice
}

// CountsTowardTotal reports whether the line participates in the ticket
// total: cancelled and comped lines are excluded.
func (l *Line) CountsTowardTotal() bool {
	return l.Status != LineStatusCancelled && l.Status != LineStatusComped
}

// Table represents a physical table on the floor plan.
type Table struct {
	ID       string      `json:"id"`
	Number   string      `json:"number"`
	Zone     TableZone   `json:"zone"`
	Status   TableStatus `json:"status"`
	Capacity int         `json:"capacity"`
	IsActive bool        `json:"is_active"`
}

// Operator is a staff member able to act on tickets.
type Operator struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Role      OperatorRole `json:"role"`
	PinHash   string       `json:"-"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}

// Elevated reports whether the operator may approve discounts and comps
// without a secondary credential.
func (o *Operator) Elevated() bool {
	return o.Role == OperatorRoleManager || o.Role == OperatorRoleAdmin
}

// Product represents a menu item shown on the order screen.
type Product struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Price            float64  `json:"price"`
	HalfPortionPrice *float64 `json:"half_portion_price,omitempty"`
	IsActive         bool     `json:"is_active"`
}

// TerminalSession is an operator's login session, stored in Redis so logins
// can be revoked server-side before the JWT expires.
type TerminalSession struct {
	OperatorID string       `json:"operator_id"`
	Name       string       `json:"name"`
	Role       OperatorRole `json:"role"`
	IssuedAt   time.Time    `json:"issued_at"`
}

// TicketKind distinguishes table service from counter and delivery flows.
type TicketKind string

const (
	TicketKindDineIn   TicketKind = "DINE_IN"
	TicketKindCounter  TicketKind = "COUNTER"
	TicketKindDelivery TicketKind = "DELIVERY"
)

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "OPEN"
	TicketStatusBillRequested TicketStatus = "BILL_REQUESTED"
	TicketStatusPaid          TicketStatus = "PAID"
	TicketStatusCancelled     TicketStatus = "CANCELLED"
)

// PaymentMethod records how a closed ticket was settled.
type PaymentMethod string

const (
	PaymentMethodNone  PaymentMethod = ""
	PaymentMethodCash  PaymentMethod = "CASH"
	PaymentMethodCard  PaymentMethod = "CARD"
	PaymentMethodSplit PaymentMethod = "SPLIT"
)

// LineStatus represents the preparation/billing state of a single line.
type LineStatus string

const (
	LineStatusPending       LineStatus = "PENDING"
	LineStatusInPreparation LineStatus = "IN_PREPARATION"
	LineStatusDone          LineStatus = "DONE"
	LineStatusCancelled     LineStatus = "CANCELLED"
	LineStatusComped        LineStatus = "COMPED"
)

// TableStatus represents the occupancy state of a table.
type TableStatus string

const (
	TableStatusFree          TableStatus = "FREE"
	TableStatusOccupied      TableStatus = "OCCUPIED"
	TableStatusBillRequested TableStatus = "BILL_REQUESTED"
	TableStatusReserved      TableStatus = "RESERVED"
)

// TableZone groups tables on the floor plan.
type TableZone string

const (
	TableZoneInside  TableZone = "INSIDE"
	TableZoneOutside TableZone = "OUTSIDE"
	TableZoneTerrace TableZone = "TERRACE"
)

// OperatorRole is the privilege tier of an operator.
type OperatorRole string

const (
	OperatorRoleStaff   OperatorRole = "STAFF"
	OperatorRoleManager OperatorRole = "MANAGER"
	OperatorRoleAdmin   OperatorRole = "ADMIN"
)

// GatedAction names the financial actions behind the authorization gate.
type GatedAction string

const (
	GatedActionDiscount GatedAction = "DISCOUNT"
	GatedActionComp     GatedAction = "COMP"
)

// The Parse functions below are the serialization mapping for the
// string-encoded enums at the storage boundary. Unknown stored values fail
// validation instead of silently defaulting.

// ParseTicketKind validates a stored ticket kind.
func ParseTicketKind(s string) (TicketKind, error) {
	switch TicketKind(s) {
	case TicketKindDineIn, TicketKindCounter, TicketKindDelivery:
		return TicketKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown ticket kind %q", ErrValidation, s)
}

// ParseTicketStatus validates a stored ticket status.
func ParseTicketStatus(s string) (TicketStatus, error) {
	switch TicketStatus(s) {
	case TicketStatusOpen, TicketStatusBillRequested, TicketStatusPaid, TicketStatusCancelled:
		return TicketStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown ticket status %q", ErrValidation, s)
}

// ParsePaymentMethod validates a stored payment method. The empty string is
// valid: tickets that are still open have no payment method.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentMethodNone, PaymentMethodCash, PaymentMethodCard, PaymentMethodSplit:
		return PaymentMethod(s), nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrValidation, s)
}

// ParseLineStatus validates a stored line status.
func ParseLineStatus(s string) (LineStatus, error) {
	switch LineStatus(s) {
	case LineStatusPending, LineStatusInPreparation, LineStatusDone, LineStatusCancelled, LineStatusComped:
		return LineStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown line status %q", ErrValidation, s)
}

// ParseTableStatus validates a stored table status.
func ParseTableStatus(s string) (TableStatus, error) {
	switch TableStatus(s) {
	case TableStatusFree, TableStatusOccupied, TableStatusBillRequested, TableStatusReserved:
		return TableStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown table status %q", ErrValidation, s)
}

// ParseTableZone validates a stored table zone.
func ParseTableZone(s string) (TableZone, error) {
	switch TableZone(s) {
	case TableZoneInside, TableZoneOutside, TableZoneTerrace:
		return TableZone(s), nil
	}
	return "", fmt.Errorf("%w: unknown table zone %q", ErrValidation, s)
}

// ParseOperatorRole validates a stored operator role.
func ParseOperatorRole(s string) (OperatorRole, error) {
	switch OperatorRole(s) {
	case OperatorRoleStaff, OperatorRoleManager, OperatorRoleAdmin:
		return OperatorRole(s), nil
	}
	return "", fmt.Errorf("%w: unknown operator role %q", ErrValidation, s)
}
