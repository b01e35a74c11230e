package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/harborline/tablepos/internal/core"
	"github.com/harborline/tablepos/internal/events"
)

// TableService coordinates table occupancy with the lifecycle of the ticket
// bound to each table. Status changes happen through explicit calls from the
// ticket and settlement services, never by side effect.
type TableService struct {
	tableRepo  core.TableRepository
	ticketRepo core.TicketRepository
	eventBus   *events.EventBus
}

// NewTableService creates a new table service
func NewTableService(tableRepo core.TableRepository, ticketRepo core.TicketRepository, eventBus *events.EventBus) *TableService {
	return &TableService{
		tableRepo:  tableRepo,
		ticketRepo: ticketRepo,
		eventBus:   eventBus,
	}
}

// GetFloor retrieves all active tables for the floor view
func (s *TableService) GetFloor(ctx context.Context) ([]*core.Table, error) {
	return s.tableRepo.GetAll(ctx)
}

// GetByZone retrieves active tables in a zone
func (s *TableService) GetByZone(ctx context.Context, zone core.TableZone) ([]*core.Table, error) {
	return s.tableRepo.GetByZone(ctx, zone)
}

// Occupy marks a table occupied on the first line of its bound ticket.
// Already-occupied tables are left alone so repeated adds are cheap.
func (s *TableService) Occupy(ctx context.Context, tableID string) error {
	table, err := s.tableRepo.GetByID(ctx, tableID)
	if err != nil {
		return err
	}

	if table.Status == core.TableStatusOccupied {
		return nil
	}
	if table.Status == core.TableStatusBillRequested {
		return fmt.Errorf("%w: table %s already has a bill requested", core.ErrInvalidState, tableID)
	}

	if err := s.tableRepo.UpdateStatus(ctx, tableID, core.TableStatusOccupied); err != nil {
		return err
	}

	s.eventBus.PublishTableStatusChanged(tableID, string(core.TableStatusOccupied))
	return nil
}

// MarkBillRequested moves an occupied table to bill-requested
func (s *TableService) MarkBillRequested(ctx context.Context, tableID string) error {
	table, err := s.tableRepo.GetByID(ctx, tableID)
	if err != nil {
		return err
	}

	if table.Status != core.TableStatusOccupied {
		return fmt.Errorf("%w: table %s is %s, expected %s", core.ErrInvalidState, tableID, table.Status, core.TableStatusOccupied)
	}

	if err := s.tableRepo.UpdateStatus(ctx, tableID, core.TableStatusBillRequested); err != nil {
		return err
	}

	s.eventBus.PublishTableStatusChanged(tableID, string(core.TableStatusBillRequested))
	return nil
}

// Release frees a table when its bound ticket closes, cancels, or is
// abandoned empty
func (s *TableService) Release(ctx context.Context, tableID string) error {
	if err := s.tableRepo.UpdateStatus(ctx, tableID, core.TableStatusFree); err != nil {
		return err
	}

	s.eventBus.PublishTableStatusChanged(tableID, string(core.TableStatusFree))
	return nil
}

// TableMismatch reports a table whose status disagrees with the presence of
// an open ticket bound to it.
type TableMismatch struct {
	TableID       string           `json:"table_id"`
	Number        string           `json:"number"`
	TableStatus   core.TableStatus `json:"table_status"`
	HasOpenTicket bool             `json:"has_open_ticket"`
}

// Reconcile checks every active table against the tickets bound to it. A
// table must never show Occupied or BillRequested without an open ticket,
// and an open ticket must never point at a Free table.
func (s *TableService) Reconcile(ctx context.Context) ([]TableMismatch, error) {
	tables, err := s.tableRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var mismatches []TableMismatch
	for _, table := range tables {
		hasOpenTicket := true
		if _, err := s.ticketRepo.GetActiveByTable(ctx, table.ID); err != nil {
			if !core.IsNotFound(err) {
				return nil, err
			}
			hasOpenTicket = false
		}

		busy := table.Status == core.TableStatusOccupied || table.Status == core.TableStatusBillRequested
		if busy != hasOpenTicket {
			mismatches = append(mismatches, TableMismatch{
				TableID:       table.ID,
				Number:        table.Number,
				TableStatus:   table.Status,
				HasOpenTicket: hasOpenTicket,
			})
		}
	}

	return mismatches, nil
}

// CreateTable adds a new table to the floor
func (s *TableService) CreateTable(ctx context.Context, number string, zone core.TableZone, capacity int) (*core.Table, error) {
	if number == "" {
		return nil, fmt.Errorf("%w: table number is required", core.ErrValidation)
	}
	if capacity <= 0 {
		capacity = 4
	}

	table := &core.Table{
		ID:       uuid.New().String(),
		Number:   number,
		Zone:     zone,
		Status:   core.TableStatusFree,
		Capacity: capacity,
		IsActive: true,
	}

	if err := s.tableRepo.Create(ctx, table); err != nil {
		return nil, err
	}

	return table, nil
}

// UpdateTable changes a table's number, zone or capacity
func (s *TableService) UpdateTable(ctx context.Context, table *core.Table) error {
	if table.Number == "" {
		return fmt.Errorf("%w: table number is required", core.ErrValidation)
	}
	return s.tableRepo.Update(ctx, table)
}

// DeactivateTable soft-deletes a table. Tables with an open ticket cannot be
// removed from the floor.
func (s *TableService) DeactivateTable(ctx context.Context, tableID string) error {
	if _, err := s.ticketRepo.GetActiveByTable(ctx, tableID); err == nil {
		return fmt.Errorf("%w: table %s has an open ticket", core.ErrConflict, tableID)
	} else if !core.IsNotFound(err) {
		return err
	}

	return s.tableRepo.Deactivate(ctx, tableID)
}
