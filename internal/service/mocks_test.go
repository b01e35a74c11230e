package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harborline/tablepos/internal/core"
	"github.com/harborline/tablepos/internal/events"
)

// fakeStore is an in-memory stand-in for the persistence layer, shared by
// the fake repositories so cross-entity behavior (close freeing a table)
// can be observed.
type fakeStore struct {
	mu        sync.Mutex
	tickets   map[string]*core.Ticket
	lines     map[string]*core.Line
	lineOrder []string
	tables    map[string]*core.Table
	operators map[string]*core.Operator
	products  map[string]*core.Product

	// failNextClose makes the next Close fail after the point of no
	// return, simulating a mid-transaction storage failure. The fake must
	// leave no partial writes behind, same as a rolled-back transaction.
	failNextClose bool

	// failNextStatusUpdate makes the next ticket status write fail.
	failNextStatusUpdate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tickets:   make(map[string]*core.Ticket),
		lines:     make(map[string]*core.Line),
		tables:    make(map[string]*core.Table),
		operators: make(map[string]*core.Operator),
		products:  make(map[string]*core.Product),
	}
}

func (s *fakeStore) activeLines(ticketID string) []core.Line {
	var lines []core.Line
	for _, id := range s.lineOrder {
		line := s.lines[id]
		if line.TicketID == ticketID && line.Status != core.LineStatusCancelled {
			lines = append(lines, *line)
		}
	}
	return lines
}

type fakeTicketRepo struct{ store *fakeStore }

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *core.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copied := *ticket
	r.store.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*core.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
	}
	copied := *ticket
	copied.Lines = r.store.activeLines(id)
	return &copied, nil
}

func (r *fakeTicketRepo) GetActiveByTable(ctx context.Context, tableID string) (*core.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, ticket := range r.store.tickets {
		if ticket.TableID != nil && *ticket.TableID == tableID && !ticket.IsClosed() {
			copied := *ticket
			copied.Lines = r.store.activeLines(ticket.ID)
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: no active ticket for table %s", core.ErrNotFound, tableID)
}

func (r *fakeTicketRepo) GetActiveCounter(ctx context.Context) ([]*core.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var tickets []*core.Ticket
	for _, ticket := range r.store.tickets {
		if ticket.TableID == nil && !ticket.IsClosed() {
			copied := *ticket
			copied.Lines = r.store.activeLines(ticket.ID)
			tickets = append(tickets, &copied)
		}
	}
	return tickets, nil
}

func (r *fakeTicketRepo) UpdateStatus(ctx context.Context, id string, status core.TicketStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
	}
	if r.store.failNextStatusUpdate {
		r.store.failNextStatusUpdate = false
		return errors.New("storage failure during status update")
	}
	ticket.Status = status
	return nil
}

func (r *fakeTicketRepo) UpdateTotal(ctx context.Context, id string, total float64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
	}
	ticket.Total = total
	return nil
}

func (r *fakeTicketRepo) ApplyDiscount(ctx context.Context, id string, amount float64, reason string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
	}
	ticket.Discount = amount
	ticket.DiscountReason = reason
	return nil
}

func (r *fakeTicketRepo) Cancel(ctx context.Context, id string, reason string, cancelledBy string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
	}
	now := time.Now()
	ticket.Status = core.TicketStatusCancelled
	ticket.CancelReason = reason
	ticket.CancelledBy = cancelledBy
	ticket.ClosedAt = &now
	return nil
}

func (r *fakeTicketRepo) Close(ctx context.Context, id string, method core.PaymentMethod, cash, card float64, tableID *string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
	}
	if ticket.Status == core.TicketStatusPaid {
		return fmt.Errorf("%w: ticket %s is already paid", core.ErrConflict, id)
	}
	if ticket.Status == core.TicketStatusCancelled {
		return fmt.Errorf("%w: ticket %s is cancelled", core.ErrInvalidState, id)
	}

	if r.store.failNextClose {
		r.store.failNextClose = false
		return errors.New("storage failure during close")
	}

	now := time.Now()
	ticket.Status = core.TicketStatusPaid
	ticket.PaymentMethod = method
	ticket.CashAmount = cash
	ticket.CardAmount = card
	ticket.ClosedAt = &now

	if tableID != nil {
		table, ok := r.store.tables[*tableID]
		if !ok {
			return fmt.Errorf("%w: table %s", core.ErrNotFound, *tableID)
		}
		table.Status = core.TableStatusFree
	}

	return nil
}

type fakeLineRepo struct{ store *fakeStore }

func (r *fakeLineRepo) GetByID(ctx context.Context, id string) (*core.Line, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	line, ok := r.store.lines[id]
	if !ok {
		return nil, fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	copied := *line
	return &copied, nil
}

func (r *fakeLineRepo) ListActive(ctx context.Context, ticketID string) ([]core.Line, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.activeLines(ticketID), nil
}

func (r *fakeLineRepo) FindMergeable(ctx context.Context, ticketID, productID string, halfPortion bool, unitPrice float64) (*core.Line, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range r.store.lineOrder {
		line := r.store.lines[id]
		if line.TicketID == ticketID &&
			line.ProductID == productID &&
			line.HalfPortion == halfPortion &&
			line.UnitPrice == unitPrice &&
			line.Note == "" &&
			line.Status == core.LineStatusPending {
			copied := *line
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeLineRepo) Create(ctx context.Context, line *core.Line) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copied := *line
	r.store.lines[line.ID] = &copied
	r.store.lineOrder = append(r.store.lineOrder, line.ID)
	return nil
}

func (r *fakeLineRepo) IncrementQuantity(ctx context.Context, id string, delta int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	line, ok := r.store.lines[id]
	if !ok {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	line.Quantity += delta
	return nil
}

func (r *fakeLineRepo) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	line, ok := r.store.lines[id]
	if !ok {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	line.Quantity = quantity
	return nil
}

func (r *fakeLineRepo) UpdatePrice(ctx context.Context, id string, price float64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	line, ok := r.store.lines[id]
	if !ok {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	line.UnitPrice = price
	return nil
}

func (r *fakeLineRepo) UpdateNote(ctx context.Context, id string, note string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	line, ok := r.store.lines[id]
	if !ok {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	line.Note = note
	return nil
}

func (r *fakeLineRepo) UpdateStatus(ctx context.Context, id string, status core.LineStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	line, ok := r.store.lines[id]
	if !ok {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	line.Status = status
	return nil
}

func (r *fakeLineRepo) MarkComped(ctx context.Context, id string, reason string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	line, ok := r.store.lines[id]
	if !ok {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	line.Status = core.LineStatusComped
	line.CompReason = reason
	return nil
}

func (r *fakeLineRepo) SplitForPrice(ctx context.Context, id string, newPrice float64) (string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	line, ok := r.store.lines[id]
	if !ok {
		return "", fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	line.Quantity--

	newID := fmt.Sprintf("%s-split-%d", id, len(r.store.lineOrder))
	split := *line
	split.ID = newID
	split.Quantity = 1
	split.UnitPrice = newPrice
	split.CreatedAt = time.Now()
	r.store.lines[newID] = &split
	r.store.lineOrder = append(r.store.lineOrder, newID)
	return newID, nil
}

func (r *fakeLineRepo) SumActive(ctx context.Context, ticketID string) (float64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	total := 0.0
	for _, line := range r.store.lines {
		if line.TicketID == ticketID && line.CountsTowardTotal() {
			total += float64(line.Quantity) * line.UnitPrice
		}
	}
	return total, nil
}

type fakeTableRepo struct{ store *fakeStore }

func (r *fakeTableRepo) GetByID(ctx context.Context, id string) (*core.Table, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	table, ok := r.store.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: table %s", core.ErrNotFound, id)
	}
	copied := *table
	return &copied, nil
}

func (r *fakeTableRepo) GetAll(ctx context.Context) ([]*core.Table, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var tables []*core.Table
	for _, table := range r.store.tables {
		if table.IsActive {
			copied := *table
			tables = append(tables, &copied)
		}
	}
	return tables, nil
}

func (r *fakeTableRepo) GetByZone(ctx context.Context, zone core.TableZone) ([]*core.Table, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var tables []*core.Table
	for _, table := range r.store.tables {
		if table.IsActive && table.Zone == zone {
			copied := *table
			tables = append(tables, &copied)
		}
	}
	return tables, nil
}

func (r *fakeTableRepo) UpdateStatus(ctx context.Context, id string, status core.TableStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	table, ok := r.store.tables[id]
	if !ok {
		return fmt.Errorf("%w: table %s", core.ErrNotFound, id)
	}
	table.Status = status
	return nil
}

func (r *fakeTableRepo) Create(ctx context.Context, table *core.Table) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.tables {
		if existing.Number == table.Number {
			return fmt.Errorf("%w: table number %s exists", core.ErrConflict, table.Number)
		}
	}
	copied := *table
	r.store.tables[table.ID] = &copied
	return nil
}

func (r *fakeTableRepo) Update(ctx context.Context, table *core.Table) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.tables[table.ID]
	if !ok {
		return fmt.Errorf("%w: table %s", core.ErrNotFound, table.ID)
	}
	existing.Number = table.Number
	existing.Zone = table.Zone
	existing.Capacity = table.Capacity
	return nil
}

func (r *fakeTableRepo) Deactivate(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	table, ok := r.store.tables[id]
	if !ok {
		return fmt.Errorf("%w: table %s", core.ErrNotFound, id)
	}
	table.IsActive = false
	return nil
}

type fakeOperatorRepo struct{ store *fakeStore }

func (r *fakeOperatorRepo) GetByID(ctx context.Context, id string) (*core.Operator, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	operator, ok := r.store.operators[id]
	if !ok {
		return nil, fmt.Errorf("%w: operator %s", core.ErrNotFound, id)
	}
	copied := *operator
	return &copied, nil
}

func (r *fakeOperatorRepo) GetActiveByRoles(ctx context.Context, roles ...core.OperatorRole) ([]*core.Operator, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var operators []*core.Operator
	for _, operator := range r.store.operators {
		if !operator.IsActive {
			continue
		}
		for _, role := range roles {
			if operator.Role == role {
				copied := *operator
				operators = append(operators, &copied)
				break
			}
		}
	}
	return operators, nil
}

func (r *fakeOperatorRepo) Create(ctx context.Context, operator *core.Operator) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copied := *operator
	r.store.operators[operator.ID] = &copied
	return nil
}

type fakeProductRepo struct{ store *fakeStore }

func (r *fakeProductRepo) GetByID(ctx context.Context, id string) (*core.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	product, ok := r.store.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", core.ErrNotFound, id)
	}
	copied := *product
	return &copied, nil
}

func (r *fakeProductRepo) GetMenu(ctx context.Context) (map[string][]*core.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	menu := make(map[string][]*core.Product)
	for _, product := range r.store.products {
		if product.IsActive {
			copied := *product
			menu[product.Category] = append(menu[product.Category], &copied)
		}
	}
	return menu, nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*core.TerminalSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*core.TerminalSession)}
}

func (r *fakeSessionRepo) Get(ctx context.Context, token string) (*core.TerminalSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[token]
	if !ok {
		return nil, fmt.Errorf("%w: terminal session", core.ErrNotFound)
	}
	return session, nil
}

func (r *fakeSessionRepo) Set(ctx context.Context, token string, session *core.TerminalSession, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[token] = session
	return nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

// testEnv bundles the fakes and services for one test case
type testEnv struct {
	store      *fakeStore
	tickets    *TicketService
	settlement *SettlementService
	tables     *TableService
	auth       *AuthService
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	eventBus := events.NewEventBus()
	locks := NewTicketLocks()

	ticketRepo := &fakeTicketRepo{store: store}
	lineRepo := &fakeLineRepo{store: store}
	tableRepo := &fakeTableRepo{store: store}
	operatorRepo := &fakeOperatorRepo{store: store}
	productRepo := &fakeProductRepo{store: store}

	tables := NewTableService(tableRepo, ticketRepo, eventBus)
	tickets := NewTicketService(ticketRepo, lineRepo, productRepo, tables, eventBus, locks)
	auth := NewAuthService(operatorRepo, newFakeSessionRepo(), "test-secret", time.Hour)
	settlement := NewSettlementService(ticketRepo, tickets, auth, eventBus, locks)

	return &testEnv{
		store:      store,
		tickets:    tickets,
		settlement: settlement,
		tables:     tables,
		auth:       auth,
	}
}

func (e *testEnv) addTable(id, number string) {
	e.store.tables[id] = &core.Table{
		ID:       id,
		Number:   number,
		Zone:     core.TableZoneInside,
		Status:   core.TableStatusFree,
		Capacity: 4,
		IsActive: true,
	}
}

func (e *testEnv) addProduct(id, name string, price float64) {
	e.store.products[id] = &core.Product{
		ID:       id,
		Name:     name,
		Category: "Mains",
		Price:    price,
		IsActive: true,
	}
}

func (e *testEnv) addOperator(id, name string, role core.OperatorRole, pinHash string) {
	e.store.operators[id] = &core.Operator{
		ID:       id,
		Name:     name,
		Role:     role,
		PinHash:  pinHash,
		IsActive: true,
	}
}

func (e *testEnv) ticket(id string) *core.Ticket {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	ticket := *e.store.tickets[id]
	ticket.Lines = e.store.activeLines(id)
	return &ticket
}

func (e *testEnv) line(id string) *core.Line {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	line := *e.store.lines[id]
	return &line
}

func (e *testEnv) table(id string) *core.Table {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	table := *e.store.tables[id]
	return &table
}
