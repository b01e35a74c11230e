package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harborline/tablepos/internal/core"
	"github.com/harborline/tablepos/internal/events"
)

// TicketService handles the ticket lifecycle: opening tickets, mutating
// lines, and the total recompute that follows every mutation.
type TicketService struct {
	ticketRepo  core.TicketRepository
	lineRepo    core.LineRepository
	productRepo core.ProductRepository
	tables      *TableService
	eventBus    *events.EventBus
	locks       *TicketLocks
}

// NewTicketService creates a new ticket service
func NewTicketService(
	ticketRepo core.TicketRepository,
	lineRepo core.LineRepository,
	productRepo core.ProductRepository,
	tables *TableService,
	eventBus *events.EventBus,
	locks *TicketLocks,
) *TicketService {
	return &TicketService{
		ticketRepo:  ticketRepo,
		lineRepo:    lineRepo,
		productRepo: productRepo,
		tables:      tables,
		eventBus:    eventBus,
		locks:       locks,
	}
}

// CreateTicket opens a new ticket. Dine-in tickets must reference a table;
// a table with an active ticket cannot get a second one.
func (s *TicketService) CreateTicket(ctx context.Context, kind core.TicketKind, tableID *string, operatorID string) (*core.Ticket, error) {
	if kind == core.TicketKindDineIn && (tableID == nil || *tableID == "") {
		return nil, fmt.Errorf("%w: dine-in ticket requires a table", core.ErrValidation)
	}
	if operatorID == "" {
		return nil, fmt.Errorf("%w: operator is required", core.ErrValidation)
	}

	if tableID != nil && *tableID != "" {
		if _, err := s.tables.tableRepo.GetByID(ctx, *tableID); err != nil {
			return nil, err
		}
		if _, err := s.ticketRepo.GetActiveByTable(ctx, *tableID); err == nil {
			return nil, fmt.Errorf("%w: table %s already has an active ticket", core.ErrConflict, *tableID)
		} else if !core.IsNotFound(err) {
			return nil, err
		}
	} else {
		tableID = nil
	}

	ticket := &core.Ticket{
		ID:         uuid.New().String(),
		TableID:    tableID,
		OperatorID: operatorID,
		Kind:       kind,
		Status:     core.TicketStatusOpen,
		Total:      0,
		CreatedAt:  time.Now(),
		Lines:      []core.Line{},
	}

	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.eventBus.PublishTicketOpened(ticket.ID)
	return ticket, nil
}

// AddLineInput carries one add-item request. An empty TicketID with a
// counter or delivery kind creates the ticket on the spot; UnitPrice zero
// means "use the catalog price".
type AddLineInput struct {
	TicketID    string
	Kind        core.TicketKind
	TableID     *string
	OperatorID  string
	ProductID   string
	Quantity    int
	HalfPortion bool
	UnitPrice   float64
	Note        string
}

// AddLine appends a product to a ticket, merging into an existing plain
// Pending line for the same product and price when one exists. Returns the
// ticket id (which may have been lazily created) and the affected line id.
func (s *TicketService) AddLine(ctx context.Context, in AddLineInput) (string, string, error) {
	if in.Quantity <= 0 {
		return "", "", fmt.Errorf("%w: quantity must be positive", core.ErrValidation)
	}
	if in.UnitPrice < 0 {
		return "", "", fmt.Errorf("%w: unit price cannot be negative", core.ErrValidation)
	}

	product, err := s.productRepo.GetByID(ctx, in.ProductID)
	if err != nil {
		return "", "", err
	}

	unitPrice := in.UnitPrice
	if unitPrice == 0 {
		unitPrice = product.Price
		if in.HalfPortion {
			if product.HalfPortionPrice == nil {
				return "", "", fmt.Errorf("%w: product %s has no half portion price", core.ErrValidation, product.Name)
			}
			unitPrice = *product.HalfPortionPrice
		}
	}

	ticketID := in.TicketID
	if ticketID == "" {
		// Counter and delivery tickets materialize on the first item.
		if in.Kind != core.TicketKindCounter && in.Kind != core.TicketKindDelivery {
			return "", "", fmt.Errorf("%w: ticket id is required for %s", core.ErrValidation, in.Kind)
		}
		ticket, err := s.CreateTicket(ctx, in.Kind, nil, in.OperatorID)
		if err != nil {
			return "", "", err
		}
		ticketID = ticket.ID
	}

	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return "", "", err
	}
	if ticket.Status != core.TicketStatusOpen {
		return "", "", fmt.Errorf("%w: ticket %s is %s", core.ErrInvalidState, ticketID, ticket.Status)
	}

	var lineID string
	if in.Note == "" {
		existing, err := s.lineRepo.FindMergeable(ctx, ticketID, in.ProductID, in.HalfPortion, unitPrice)
		if err != nil {
			return "", "", err
		}
		if existing != nil {
			if err := s.lineRepo.IncrementQuantity(ctx, existing.ID, in.Quantity); err != nil {
				return "", "", err
			}
			lineID = existing.ID
		}
	}

	if lineID == "" {
		line := &core.Line{
			ID:          uuid.New().String(),
			TicketID:    ticketID,
			ProductID:   in.ProductID,
			Quantity:    in.Quantity,
			UnitPrice:   unitPrice,
			HalfPortion: in.HalfPortion,
			Note:        in.Note,
			Status:      core.LineStatusPending,
			CreatedAt:   time.Now(),
		}
		if err := s.lineRepo.Create(ctx, line); err != nil {
			return "", "", err
		}
		lineID = line.ID
	}

	if err := s.recompute(ctx, ticketID); err != nil {
		return "", "", err
	}

	if ticket.TableID != nil {
		if err := s.tables.Occupy(ctx, *ticket.TableID); err != nil {
			return "", "", err
		}
	}

	s.eventBus.PublishLineAdded(ticketID, lineID)
	return ticketID, lineID, nil
}

// SetLineQuantity sets a line's quantity. A quantity of zero or below
// cancels the line outright.
func (s *TicketService) SetLineQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity <= 0 {
		return s.CancelLine(ctx, lineID)
	}

	line, err := s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return err
	}

	s.locks.Lock(line.TicketID)
	defer s.locks.Unlock(line.TicketID)

	if _, err := s.openTicket(ctx, line.TicketID); err != nil {
		return err
	}

	if err := s.lineRepo.UpdateQuantity(ctx, line.ID, quantity); err != nil {
		return err
	}
	return s.recompute(ctx, line.TicketID)
}

// ChangeLinePrice changes a line's unit price. When the line holds more
// than one unit, one unit splits off at the new price so the remaining
// units keep their original price.
func (s *TicketService) ChangeLinePrice(ctx context.Context, lineID string, newPrice float64) error {
	if newPrice <= 0 {
		return fmt.Errorf("%w: price must be positive", core.ErrValidation)
	}

	line, err := s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return err
	}

	s.locks.Lock(line.TicketID)
	defer s.locks.Unlock(line.TicketID)

	if _, err := s.openTicket(ctx, line.TicketID); err != nil {
		return err
	}

	// Re-read under the lock; a concurrent quantity change decides the
	// split-versus-in-place branch.
	line, err = s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return err
	}

	if line.Quantity > 1 {
		if _, err := s.lineRepo.SplitForPrice(ctx, line.ID, newPrice); err != nil {
			return err
		}
	} else {
		if err := s.lineRepo.UpdatePrice(ctx, line.ID, newPrice); err != nil {
			return err
		}
	}

	return s.recompute(ctx, line.TicketID)
}

// CancelLine cancels a line and drops it from the total
func (s *TicketService) CancelLine(ctx context.Context, lineID string) error {
	line, err := s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return err
	}

	s.locks.Lock(line.TicketID)
	defer s.locks.Unlock(line.TicketID)

	if _, err := s.openTicket(ctx, line.TicketID); err != nil {
		return err
	}

	if err := s.lineRepo.UpdateStatus(ctx, line.ID, core.LineStatusCancelled); err != nil {
		return err
	}
	return s.recompute(ctx, line.TicketID)
}

// SetLineNote updates a line's free-text note. No total impact.
func (s *TicketService) SetLineNote(ctx context.Context, lineID string, note string) error {
	line, err := s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return err
	}

	s.locks.Lock(line.TicketID)
	defer s.locks.Unlock(line.TicketID)

	if _, err := s.openTicket(ctx, line.TicketID); err != nil {
		return err
	}
	return s.lineRepo.UpdateNote(ctx, line.ID, note)
}

// CompLine marks a line complimentary. The line stays visible on the ticket
// but contributes nothing to the total. Authorization happens upstream.
func (s *TicketService) CompLine(ctx context.Context, lineID string, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: comp reason is required", core.ErrValidation)
	}

	line, err := s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return err
	}

	s.locks.Lock(line.TicketID)
	defer s.locks.Unlock(line.TicketID)

	if _, err := s.openTicket(ctx, line.TicketID); err != nil {
		return err
	}

	if err := s.lineRepo.MarkComped(ctx, line.ID, reason); err != nil {
		return err
	}
	if err := s.recompute(ctx, line.TicketID); err != nil {
		return err
	}

	s.eventBus.PublishLineComped(line.ID, reason)
	return nil
}

// RequestBill moves an open ticket to bill-requested and flags the bound
// table for the floor view
func (s *TicketService) RequestBill(ctx context.Context, ticketID string) error {
	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.Status != core.TicketStatusOpen {
		return fmt.Errorf("%w: ticket %s is %s", core.ErrInvalidState, ticketID, ticket.Status)
	}

	// Table first: if the ticket write fails afterwards, both entities
	// still read as busy and Reconcile sees no mismatch.
	if ticket.TableID != nil {
		if err := s.tables.MarkBillRequested(ctx, *ticket.TableID); err != nil {
			return err
		}
	}

	return s.ticketRepo.UpdateStatus(ctx, ticketID, core.TicketStatusBillRequested)
}

// CancelTicket voids a ticket, recording the reason and who cancelled it,
// and releases the bound table
func (s *TicketService) CancelTicket(ctx context.Context, ticketID string, reason string, cancelledBy string) error {
	if reason == "" {
		return fmt.Errorf("%w: cancel reason is required", core.ErrValidation)
	}

	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.IsClosed() {
		return fmt.Errorf("%w: ticket %s is %s", core.ErrInvalidState, ticketID, ticket.Status)
	}

	if err := s.ticketRepo.Cancel(ctx, ticketID, reason, cancelledBy); err != nil {
		return err
	}

	if ticket.TableID != nil {
		if err := s.tables.Release(ctx, *ticket.TableID); err != nil {
			return err
		}
	}

	s.eventBus.PublishTicketCancelled(ticketID)
	return nil
}

// AbandonIfEmpty releases a ticket that has no remaining active lines, so
// walking away from an untouched table does not leave it marked occupied.
// Returns true when the ticket was abandoned.
func (s *TicketService) AbandonIfEmpty(ctx context.Context, ticketID string) (bool, error) {
	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if ticket.Status != core.TicketStatusOpen {
		return false, nil
	}
	if len(ticket.Lines) > 0 {
		return false, nil
	}

	if err := s.ticketRepo.Cancel(ctx, ticketID, "abandoned empty", ticket.OperatorID); err != nil {
		return false, err
	}

	if ticket.TableID != nil {
		if err := s.tables.Release(ctx, *ticket.TableID); err != nil {
			return false, err
		}
	}

	return true, nil
}

// GetTicket retrieves a ticket with its lines
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*core.Ticket, error) {
	return s.ticketRepo.GetByID(ctx, ticketID)
}

// ActiveTicketForTable retrieves the open ticket bound to a table
func (s *TicketService) ActiveTicketForTable(ctx context.Context, tableID string) (*core.Ticket, error) {
	return s.ticketRepo.GetActiveByTable(ctx, tableID)
}

// ActiveCounterTickets lists open counter-pickup and delivery tickets
func (s *TicketService) ActiveCounterTickets(ctx context.Context) ([]*core.Ticket, error) {
	return s.ticketRepo.GetActiveCounter(ctx)
}

// recompute rebuilds the ticket total from its lines. Every mutation ends
// here, so the stored total never drifts from the line rows.
func (s *TicketService) recompute(ctx context.Context, ticketID string) error {
	total, err := s.lineRepo.SumActive(ctx, ticketID)
	if err != nil {
		return err
	}
	return s.ticketRepo.UpdateTotal(ctx, ticketID, total)
}

// openTicket loads a ticket and rejects mutations when it is no longer
// open. Callers must hold the ticket lock so the status cannot flip
// between this check and their writes.
func (s *TicketService) openTicket(ctx context.Context, ticketID string) (*core.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != core.TicketStatusOpen {
		return nil, fmt.Errorf("%w: ticket %s is %s", core.ErrInvalidState, ticket.ID, ticket.Status)
	}

	return ticket, nil
}
