package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harborline/tablepos/internal/core"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Repository implements the core persistence contracts using GORM with the
// pgx driver.
type Repository struct {
	db                 *gorm.DB
	ticketRepository   *ticketRepository
	lineRepository     *lineRepository
	tableRepository    *tableRepository
	operatorRepository *operatorRepository
	productRepository  *productRepository
	reportRepository   *reportRepository
}

// ticketRepository implements TicketRepository methods
type ticketRepository struct {
	*Repository
}

// lineRepository implements LineRepository methods
type lineRepository struct {
	*Repository
}

// tableRepository implements TableRepository methods
type tableRepository struct {
	*Repository
}

// operatorRepository implements OperatorRepository methods
type operatorRepository struct {
	*Repository
}

// productRepository implements ProductRepository methods
type productRepository struct {
	*Repository
}

// reportRepository implements ReportRepository methods
type reportRepository struct {
	*Repository
}

// NewRepository creates a new Postgres repository instance
func NewRepository(dbURL string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}
	repo.ticketRepository = &ticketRepository{Repository: repo}
	repo.lineRepository = &lineRepository{Repository: repo}
	repo.tableRepository = &tableRepository{Repository: repo}
	repo.operatorRepository = &operatorRepository{Repository: repo}
	repo.productRepository = &productRepository{Repository: repo}
	repo.reportRepository = &reportRepository{Repository: repo}
	return repo, nil
}

// TicketRepository returns the TicketRepository interface implementation
func (r *Repository) TicketRepository() core.TicketRepository {
	return r.ticketRepository
}

// LineRepository returns the LineRepository interface implementation
func (r *Repository) LineRepository() core.LineRepository {
	return r.lineRepository
}

// TableRepository returns the TableRepository interface implementation
func (r *Repository) TableRepository() core.TableRepository {
	return r.tableRepository
}

// OperatorRepository returns the OperatorRepository interface implementation
func (r *Repository) OperatorRepository() core.OperatorRepository {
	return r.operatorRepository
}

// ProductRepository returns the ProductRepository interface implementation
func (r *Repository) ProductRepository() core.ProductRepository {
	return r.productRepository
}

// ReportRepository returns the ReportRepository interface implementation
func (r *Repository) ReportRepository() core.ReportRepository {
	return r.reportRepository
}

// TicketRepository implementation

// Create inserts a new ticket
func (r *ticketRepository) Create(ctx context.Context, ticket *core.Ticket) error {
	model := TicketModelFromDomain(ticket)
	if err := r.db.WithContext(ctx).Table("tickets").Create(model).Error; err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

// GetByID retrieves a ticket by its ID with its active lines
func (r *ticketRepository) GetByID(ctx context.Context, id string) (*core.Ticket, error) {
	var model TicketModel
	if err := r.db.WithContext(ctx).Table("tickets").Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	ticket, err := model.ToDomain()
	if err != nil {
		return nil, err
	}

	lines, err := r.lineRepository.ListActive(ctx, id)
	if err != nil {
		return nil, err
	}
	ticket.Lines = lines

	return ticket, nil
}

// GetActiveByTable retrieves the most recent open or bill-requested ticket
// bound to a table, or ErrNotFound when the table has none.
func (r *ticketRepository) GetActiveByTable(ctx context.Context, tableID string) (*core.Ticket, error) {
	var model TicketModel
	err := r.db.WithContext(ctx).Table("tickets").
		Where("table_id = ? AND status IN ?", tableID, activeTicketStatuses()).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no active ticket for table %s", core.ErrNotFound, tableID)
		}
		return nil, fmt.Errorf("failed to get active ticket: %w", err)
	}

	ticket, err := model.ToDomain()
	if err != nil {
		return nil, err
	}

	lines, err := r.lineRepository.ListActive(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.Lines = lines

	return ticket, nil
}

// GetActiveCounter retrieves open counter-pickup and delivery tickets
func (r *ticketRepository) GetActiveCounter(ctx context.Context) ([]*core.Ticket, error) {
	var models []TicketModel
	err := r.db.WithContext(ctx).Table("tickets").
		Where("table_id IS NULL AND status IN ? AND kind IN ?",
			activeTicketStatuses(),
			[]string{string(core.TicketKindCounter), string(core.TicketKindDelivery)}).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get counter tickets: %w", err)
	}

	tickets := make([]*core.Ticket, 0, len(models))
	for i := range models {
		ticket, err := models[i].ToDomain()
		if err != nil {
			return nil, err
		}
		lines, err := r.lineRepository.ListActive(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		ticket.Lines = lines
		tickets = append(tickets, ticket)
	}

	return tickets, nil
}

// UpdateStatus updates the status of a ticket
func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status core.TicketStatus) error {
	result := r.db.WithContext(ctx).Table("tickets").
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update ticket status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
	}
	return nil
}

// UpdateTotal writes the recomputed ticket total
func (r *ticketRepository) UpdateTotal(ctx context.Context, id string, total float64) error {
	result := r.db.WithContext(ctx).Table("tickets").
		Where("id = ?", id).
		Update("total", total)
	if result.Error != nil {
		return fmt.Errorf("failed to update ticket total: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
	}
	return nil
}

// ApplyDiscount persists the discount amount and reason
func (r *ticketRepository) ApplyDiscount(ctx context.Context, id string, amount float64, reason string) error {
	result := r.db.WithContext(ctx).Table("tickets").
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"discount":        amount,
			"discount_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to apply discount: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
	}
	return nil
}

// Cancel marks a ticket cancelled with an audit trail
func (r *ticketRepository) Cancel(ctx context.Context, id string, reason string, cancelledBy string) error {
	result := r.db.WithContext(ctx).Table("tickets").
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        string(core.TicketStatusCancelled),
			"cancel_reason": reason,
			"cancelled_by":  cancelledBy,
			"closed_at":     time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to cancel ticket: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
	}
	return nil
}

// Close settles a ticket and frees its bound table in one transaction.
// Either both writes persist or neither does; the status re-check happens
// inside the transaction so a concurrent close surfaces as ErrConflict.
func (r *ticketRepository) Close(ctx context.Context, id string, method core.PaymentMethod, cash, card float64, tableID *string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model TicketModel
		if err := tx.Table("tickets").Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: ticket %s", core.ErrNotFound, id)
			}
			return fmt.Errorf("failed to load ticket for close: %w", err)
		}

		if model.Status == string(core.TicketStatusPaid) {
			return fmt.Errorf("%w: ticket %s is already paid", core.ErrConflict, id)
		}
		if model.Status == string(core.TicketStatusCancelled) {
			return fmt.Errorf("%w: ticket %s is cancelled", core.ErrInvalidState, id)
		}

		result := tx.Table("tickets").
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":         string(core.TicketStatusPaid),
				"payment_method": string(method),
				"cash_amount":    cash,
				"card_amount":    card,
				"closed_at":      time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to close ticket: %w", result.Error)
		}

		if tableID != nil {
			result = tx.Table("tables").
				Where("id = ?", *tableID).
				Update("status", string(core.TableStatusFree))
			if result.Error != nil {
				return fmt.Errorf("failed to free table: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("%w: table %s", core.ErrNotFound, *tableID)
			}
		}

		return nil
	})
}

// LineRepository implementation

// GetByID retrieves a line by its ID
func (r *lineRepository) GetByID(ctx context.Context, id string) (*core.Line, error) {
	var model LineModel
	if err := r.db.WithContext(ctx).Table("ticket_lines").Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: line %s", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get line: %w", err)
	}
	return model.ToDomain()
}

// ListActive retrieves a ticket's lines with product names, excluding
// cancelled lines. Comped lines stay visible with a zero effective total.
func (r *lineRepository) ListActive(ctx context.Context, ticketID string) ([]core.Line, error) {
	type LineWithProduct struct {
		LineModel
		ProductName string `gorm:"column:product_name"`
	}

	var rows []LineWithProduct
	if err := r.db.WithContext(ctx).Table("ticket_lines").
		Select("ticket_lines.*, products.name as product_name").
		Joins("LEFT JOIN products ON ticket_lines.product_id = products.id").
		Where("ticket_lines.ticket_id = ? AND ticket_lines.status <> ?", ticketID, string(core.LineStatusCancelled)).
		Order("ticket_lines.created_at").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get ticket lines: %w", err)
	}

	lines := make([]core.Line, 0, len(rows))
	for i := range rows {
		line, err := rows[i].LineModel.ToDomain()
		if err != nil {
			return nil, err
		}
		line.ProductName = rows[i].ProductName
		lines = append(lines, *line)
	}

	return lines, nil
}

// FindMergeable returns the Pending, unnoted line matching product,
// half-portion flag and unit price exactly, or nil when no line qualifies.
func (r *lineRepository) FindMergeable(ctx context.Context, ticketID, productID string, halfPortion bool, unitPrice float64) (*core.Line, error) {
	var model LineModel
	err := r.db.WithContext(ctx).Table("ticket_lines").
		Where("ticket_id = ? AND product_id = ? AND half_portion = ? AND unit_price = ? AND (note IS NULL OR note = '') AND status = ?",
			ticketID, productID, halfPortion, unitPrice, string(core.LineStatusPending)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // No mergeable line (not an error)
		}
		return nil, fmt.Errorf("failed to find mergeable line: %w", err)
	}
	return model.ToDomain()
}

// Create inserts a new line
func (r *lineRepository) Create(ctx context.Context, line *core.Line) error {
	model := LineModelFromDomain(line)
	if err := r.db.WithContext(ctx).Table("ticket_lines").Create(model).Error; err != nil {
		return fmt.Errorf("failed to create line: %w", err)
	}
	return nil
}

// IncrementQuantity adds delta to a line's quantity
func (r *lineRepository) IncrementQuantity(ctx context.Context, id string, delta int) error {
	result := r.db.WithContext(ctx).Table("ticket_lines").
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to increment line quantity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	return nil
}

// UpdateQuantity sets a line's quantity
func (r *lineRepository) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	result := r.db.WithContext(ctx).Table("ticket_lines").
		Where("id = ?", id).
		Update("quantity", quantity)
	if result.Error != nil {
		return fmt.Errorf("failed to update line quantity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	return nil
}

// UpdatePrice sets a line's unit price
func (r *lineRepository) UpdatePrice(ctx context.Context, id string, price float64) error {
	result := r.db.WithContext(ctx).Table("ticket_lines").
		Where("id = ?", id).
		Update("unit_price", price)
	if result.Error != nil {
		return fmt.Errorf("failed to update line price: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	return nil
}

// UpdateNote sets a line's free-text note
func (r *lineRepository) UpdateNote(ctx context.Context, id string, note string) error {
	result := r.db.WithContext(ctx).Table("ticket_lines").
		Where("id = ?", id).
		Update("note", note)
	if result.Error != nil {
		return fmt.Errorf("failed to update line note: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	return nil
}

// UpdateStatus sets a line's status
func (r *lineRepository) UpdateStatus(ctx context.Context, id string, status core.LineStatus) error {
	result := r.db.WithContext(ctx).Table("ticket_lines").
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update line status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	return nil
}

// MarkComped flags a line complimentary and records the reason
func (r *lineRepository) MarkComped(ctx context.Context, id string, reason string) error {
	result := r.db.WithContext(ctx).Table("ticket_lines").
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      string(core.LineStatusComped),
			"comp_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to comp line: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
	}
	return nil
}

// SplitForPrice decrements the line by one unit and inserts a quantity-1
// line at the new price so the remaining units keep their price history.
func (r *lineRepository) SplitForPrice(ctx context.Context, id string, newPrice float64) (string, error) {
	newID := uuid.New().String()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model LineModel
		if err := tx.Table("ticket_lines").Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: line %s", core.ErrNotFound, id)
			}
			return fmt.Errorf("failed to load line for split: %w", err)
		}

		result := tx.Table("ticket_lines").
			Where("id = ?", id).
			Update("quantity", gorm.Expr("quantity - 1"))
		if result.Error != nil {
			return fmt.Errorf("failed to decrement line quantity: %w", result.Error)
		}

		split := LineModel{
			ID:          newID,
			TicketID:    model.TicketID,
			ProductID:   model.ProductID,
			Quantity:    1,
			UnitPrice:   newPrice,
			HalfPortion: model.HalfPortion,
			Note:        model.Note,
			Status:      model.Status,
			CreatedAt:   time.Now(),
		}
		if err := tx.Table("ticket_lines").Create(&split).Error; err != nil {
			return fmt.Errorf("failed to create split line: %w", err)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return newID, nil
}

// SumActive computes the ticket total from source lines: quantity times
// unit price over lines that are neither cancelled nor comped.
func (r *lineRepository) SumActive(ctx context.Context, ticketID string) (float64, error) {
	var total sql.NullFloat64
	err := r.db.WithContext(ctx).Table("ticket_lines").
		Select("SUM(quantity * unit_price)").
		Where("ticket_id = ? AND status NOT IN ?", ticketID,
			[]string{string(core.LineStatusCancelled), string(core.LineStatusComped)}).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum ticket lines: %w", err)
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Float64, nil
}

// TableRepository implementation

// GetByID retrieves a table by its ID
func (r *tableRepository) GetByID(ctx context.Context, id string) (*core.Table, error) {
	var model TableModel
	if err := r.db.WithContext(ctx).Table("tables").Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: table %s", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	return model.ToDomain()
}

// GetAll retrieves all active tables ordered by zone and number
func (r *tableRepository) GetAll(ctx context.Context) ([]*core.Table, error) {
	var models []TableModel
	if err := r.db.WithContext(ctx).Table("tables").
		Where("is_active = ?", true).
		Order("zone, number").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	tables := make([]*core.Table, 0, len(models))
	for i := range models {
		table, err := models[i].ToDomain()
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// GetByZone retrieves active tables in a zone
func (r *tableRepository) GetByZone(ctx context.Context, zone core.TableZone) ([]*core.Table, error) {
	var models []TableModel
	if err := r.db.WithContext(ctx).Table("tables").
		Where("zone = ? AND is_active = ?", string(zone), true).
		Order("number").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get tables by zone: %w", err)
	}

	tables := make([]*core.Table, 0, len(models))
	for i := range models {
		table, err := models[i].ToDomain()
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// UpdateStatus updates the occupancy status of a table
func (r *tableRepository) UpdateStatus(ctx context.Context, id string, status core.TableStatus) error {
	result := r.db.WithContext(ctx).Table("tables").
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update table status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: table %s", core.ErrNotFound, id)
	}
	return nil
}

// Create inserts a new table
func (r *tableRepository) Create(ctx context.Context, table *core.Table) error {
	model := TableModelFromDomain(table)
	if err := r.db.WithContext(ctx).Table("tables").Create(model).Error; err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Update updates a table's number, zone and capacity
func (r *tableRepository) Update(ctx context.Context, table *core.Table) error {
	result := r.db.WithContext(ctx).Table("tables").
		Where("id = ?", table.ID).
		Updates(map[string]interface{}{
			"number":   table.Number,
			"zone":     string(table.Zone),
			"capacity": table.Capacity,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update table: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: table %s", core.ErrNotFound, table.ID)
	}
	return nil
}

// Deactivate soft-deletes a table
func (r *tableRepository) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Table("tables").
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate table: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: table %s", core.ErrNotFound, id)
	}
	return nil
}

// OperatorRepository implementation

// GetByID retrieves an operator by ID
func (r *operatorRepository) GetByID(ctx context.Context, id string) (*core.Operator, error) {
	var model OperatorModel
	if err := r.db.WithContext(ctx).Table("operators").Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: operator %s", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return model.ToDomain()
}

// GetActiveByRoles retrieves active operators holding any of the given roles
func (r *operatorRepository) GetActiveByRoles(ctx context.Context, roles ...core.OperatorRole) ([]*core.Operator, error) {
	roleValues := make([]string, len(roles))
	for i, role := range roles {
		roleValues[i] = string(role)
	}

	var models []OperatorModel
	if err := r.db.WithContext(ctx).Table("operators").
		Where("role IN ? AND is_active = ?", roleValues, true).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get operators by role: %w", err)
	}

	operators := make([]*core.Operator, 0, len(models))
	for i := range models {
		operator, err := models[i].ToDomain()
		if err != nil {
			return nil, err
		}
		operators = append(operators, operator)
	}
	return operators, nil
}

// Create inserts a new operator
func (r *operatorRepository) Create(ctx context.Context, operator *core.Operator) error {
	model := OperatorModelFromDomain(operator)
	if err := r.db.WithContext(ctx).Table("operators").Create(model).Error; err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

// ProductRepository implementation

// GetByID retrieves a product by its ID
func (r *productRepository) GetByID(ctx context.Context, id string) (*core.Product, error) {
	var model ProductModel
	if err := r.db.WithContext(ctx).Table("products").Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return model.ToDomain(), nil
}

// GetMenu retrieves all active products grouped by category
func (r *productRepository) GetMenu(ctx context.Context) (map[string][]*core.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Table("products").
		Where("is_active = ?", true).
		Order("category, name").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get menu: %w", err)
	}

	menu := make(map[string][]*core.Product)
	for i := range models {
		product := models[i].ToDomain()
		menu[product.Category] = append(menu[product.Category], product)
	}

	return menu, nil
}

// ReportRepository implementation

// PaidBetween retrieves paid tickets closed in the given range, with lines.
// Paid tickets are frozen, so this read is stable alongside mutations.
func (r *reportRepository) PaidBetween(ctx context.Context, from, to time.Time) ([]*core.Ticket, error) {
	var models []TicketModel
	if err := r.db.WithContext(ctx).Table("tickets").
		Where("status = ? AND closed_at >= ? AND closed_at < ?", string(core.TicketStatusPaid), from, to).
		Order("closed_at").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get paid tickets: %w", err)
	}

	tickets := make([]*core.Ticket, 0, len(models))
	for i := range models {
		ticket, err := models[i].ToDomain()
		if err != nil {
			return nil, err
		}
		lines, err := r.lineRepository.ListActive(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		ticket.Lines = lines
		tickets = append(tickets, ticket)
	}

	return tickets, nil
}

// Overview retrieves today's settled sales metrics
func (r *reportRepository) Overview(ctx context.Context) (*core.SalesOverview, error) {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	type todayStats struct {
		Revenue       float64
		TicketCount   int
		DiscountTotal float64
		CashTotal     float64
		CardTotal     float64
	}
	var stats todayStats
	if err := r.db.WithContext(ctx).Table("tickets").
		Select("COALESCE(SUM(total - discount), 0) as revenue, COUNT(*) as ticket_count, COALESCE(SUM(discount), 0) as discount_total, COALESCE(SUM(cash_amount), 0) as cash_total, COALESCE(SUM(card_amount), 0) as card_total").
		Where("status = ? AND closed_at >= ?", string(core.TicketStatusPaid), startOfDay).
		Scan(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to get today's stats: %w", err)
	}

	overview := &core.SalesOverview{
		Revenue:       stats.Revenue,
		TicketCount:   stats.TicketCount,
		DiscountTotal: stats.DiscountTotal,
		CashTotal:     stats.CashTotal,
		CardTotal:     stats.CardTotal,
	}
	if stats.TicketCount > 0 {
		overview.AverageTicket = stats.Revenue / float64(stats.TicketCount)
	}

	return overview, nil
}

// RevenueTrend retrieves daily settled revenue for the given number of days
func (r *reportRepository) RevenueTrend(ctx context.Context, days int) ([]*core.RevenueTrendPoint, error) {
	startDate := time.Now().AddDate(0, 0, -days)

	type trendResult struct {
		Date        string
		Revenue     float64
		TicketCount int
	}

	var results []trendResult
	if err := r.db.WithContext(ctx).Table("tickets").
		Select("DATE(closed_at) as date, COALESCE(SUM(total - discount), 0) as revenue, COUNT(*) as ticket_count").
		Where("status = ? AND closed_at >= ?", string(core.TicketStatusPaid), startDate).
		Group("DATE(closed_at)").
		Order("date ASC").
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to get revenue trend: %w", err)
	}

	trend := make([]*core.RevenueTrendPoint, len(results))
	for i, row := range results {
		trend[i] = &core.RevenueTrendPoint{
			Date:        row.Date,
			Revenue:     row.Revenue,
			TicketCount: row.TicketCount,
		}
	}

	return trend, nil
}

// TopProducts retrieves top-selling products by settled revenue over the
// last 30 days. Comped and cancelled lines do not count.
func (r *reportRepository) TopProducts(ctx context.Context, limit int) ([]*core.TopProduct, error) {
	startDate := time.Now().AddDate(0, 0, -30)

	type productResult struct {
		ProductName  string
		QuantitySold int
		Revenue      float64
	}

	var results []productResult
	if err := r.db.WithContext(ctx).Table("ticket_lines").
		Select("products.name as product_name, SUM(ticket_lines.quantity) as quantity_sold, SUM(ticket_lines.quantity * ticket_lines.unit_price) as revenue").
		Joins("JOIN tickets ON ticket_lines.ticket_id = tickets.id").
		Joins("JOIN products ON ticket_lines.product_id = products.id").
		Where("tickets.status = ? AND tickets.closed_at >= ? AND ticket_lines.status NOT IN ?",
			string(core.TicketStatusPaid), startDate,
			[]string{string(core.LineStatusCancelled), string(core.LineStatusComped)}).
		Group("products.name").
		Order("revenue DESC").
		Limit(limit).
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to get top products: %w", err)
	}

	products := make([]*core.TopProduct, len(results))
	for i, row := range results {
		products[i] = &core.TopProduct{
			ProductName:  row.ProductName,
			QuantitySold: row.QuantitySold,
			Revenue:      row.Revenue,
		}
	}

	return products, nil
}

func activeTicketStatuses() []string {
	return []string{
		string(core.TicketStatusOpen),
		string(core.TicketStatusBillRequested),
	}
}

// Database Models (with GORM tags)

// TicketModel represents the tickets table structure
type TicketModel struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey;default:uuid_generate_v4()"`
	TableID        sql.NullString `gorm:"column:table_id;type:uuid;index"`
	OperatorID     string         `gorm:"column:operator_id;type:uuid;not null"`
	Kind           string         `gorm:"column:kind;type:varchar(20);not null"`
	Status         string         `gorm:"column:status;type:varchar(20);not null;default:'OPEN';index"`
	Total          float64        `gorm:"column:total;type:decimal(10,2);not null;default:0"`
	Discount       float64        `gorm:"column:discount;type:decimal(10,2);not null;default:0"`
	DiscountReason sql.NullString `gorm:"column:discount_reason;type:varchar(255)"`
	PaymentMethod  sql.NullString `gorm:"column:payment_method;type:varchar(20)"`
	CashAmount     float64        `gorm:"column:cash_amount;type:decimal(10,2);not null;default:0"`
	CardAmount     float64        `gorm:"column:card_amount;type:decimal(10,2);not null;default:0"`
	Note           sql.NullString `gorm:"column:note;type:text"`
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamp;not null;default:CURRENT_TIMESTAMP"`
	ClosedAt       sql.NullTime   `gorm:"column:closed_at;type:timestamp"`
	CancelReason   sql.NullString `gorm:"column:cancel_reason;type:varchar(255)"`
	CancelledBy    sql.NullString `gorm:"column:cancelled_by;type:uuid"`
}

func (TicketModel) TableName() string {
	return "tickets"
}

// TicketModelFromDomain creates TicketModel from core.Ticket
func TicketModelFromDomain(ticket *core.Ticket) *TicketModel {
	model := &TicketModel{
		ID:         ticket.ID,
		OperatorID: ticket.OperatorID,
		Kind:       string(ticket.Kind),
		Status:     string(ticket.Status),
		Total:      ticket.Total,
		Discount:   ticket.Discount,
		CashAmount: ticket.CashAmount,
		CardAmount: ticket.CardAmount,
		CreatedAt:  ticket.CreatedAt,
	}

	if ticket.TableID != nil {
		model.TableID = sql.NullString{String: *ticket.TableID, Valid: true}
	}
	if ticket.DiscountReason != "" {
		model.DiscountReason = sql.NullString{String: ticket.DiscountReason, Valid: true}
	}
	if ticket.PaymentMethod != core.PaymentMethodNone {
		model.PaymentMethod = sql.NullString{String: string(ticket.PaymentMethod), Valid: true}
	}
	if ticket.Note != "" {
		model.Note = sql.NullString{String: ticket.Note, Valid: true}
	}
	if ticket.ClosedAt != nil {
		model.ClosedAt = sql.NullTime{Time: *ticket.ClosedAt, Valid: true}
	}
	if ticket.CancelReason != "" {
		model.CancelReason = sql.NullString{String: ticket.CancelReason, Valid: true}
	}
	if ticket.CancelledBy != "" {
		model.CancelledBy = sql.NullString{String: ticket.CancelledBy, Valid: true}
	}

	return model
}

// ToDomain converts TicketModel to core.Ticket, validating stored enums
func (m *TicketModel) ToDomain() (*core.Ticket, error) {
	kind, err := core.ParseTicketKind(m.Kind)
	if err != nil {
		return nil, err
	}
	status, err := core.ParseTicketStatus(m.Status)
	if err != nil {
		return nil, err
	}

	method := core.PaymentMethodNone
	if m.PaymentMethod.Valid {
		method, err = core.ParsePaymentMethod(m.PaymentMethod.String)
		if err != nil {
			return nil, err
		}
	}

	ticket := &core.Ticket{
		ID:            m.ID,
		OperatorID:    m.OperatorID,
		Kind:          kind,
		Status:        status,
		Total:         m.Total,
		Discount:      m.Discount,
		PaymentMethod: method,
		CashAmount:    m.CashAmount,
		CardAmount:    m.CardAmount,
		CreatedAt:     m.CreatedAt,
		Lines:         []core.Line{}, // Populated separately
	}

	if m.TableID.Valid {
		tableID := m.TableID.String
		ticket.TableID = &tableID
	}
	if m.DiscountReason.Valid {
		ticket.DiscountReason = m.DiscountReason.String
	}
	if m.Note.Valid {
		ticket.Note = m.Note.String
	}
	if m.ClosedAt.Valid {
		closedAt := m.ClosedAt.Time
		ticket.ClosedAt = &closedAt
	}
	if m.CancelReason.Valid {
		ticket.CancelReason = m.CancelReason.String
	}
	if m.CancelledBy.Valid {
		ticket.CancelledBy = m.CancelledBy.String
	}

	return ticket, nil
}

// LineModel represents the ticket_lines table structure
type LineModel struct {
	ID          string         `gorm:"column:id;type:uuid;primaryKey;default:uuid_generate_v4()"`
	TicketID    string         `gorm:"column:ticket_id;type:uuid;not null;index"`
	ProductID   string         `gorm:"column:product_id;type:uuid;not null"`
	Quantity    int            `gorm:"column:quantity;type:integer;not null"`
	UnitPrice   float64        `gorm:"column:unit_price;type:decimal(10,2);not null"`
	HalfPortion bool           `gorm:"column:half_portion;type:boolean;not null;default:false"`
	Note        sql.NullString `gorm:"column:note;type:varchar(255)"`
	Status      string         `gorm:"column:status;type:varchar(20);not null;default:'PENDING'"`
	CompReason  sql.NullString `gorm:"column:comp_reason;type:varchar(255)"`
	CreatedAt   time.Time      `gorm:"column:created_at;type:timestamp;not null;default:CURRENT_TIMESTAMP"`
}

func (LineModel) TableName() string {
	return "ticket_lines"
}

// LineModelFromDomain creates LineModel from core.Line
func LineModelFromDomain(line *core.Line) *LineModel {
	model := &LineModel{
		ID:          line.ID,
		TicketID:    line.TicketID,
		ProductID:   line.ProductID,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice,
		HalfPortion: line.HalfPortion,
		Status:      string(line.Status),
		CreatedAt:   line.CreatedAt,
	}

	if line.Note != "" {
		model.Note = sql.NullString{String: line.Note, Valid: true}
	}
	if line.CompReason != "" {
		model.CompReason = sql.NullString{String: line.CompReason, Valid: true}
	}

	return model
}

// ToDomain converts LineModel to core.Line, validating the stored status
func (m *LineModel) ToDomain() (*core.Line, error) {
	status, err := core.ParseLineStatus(m.Status)
	if err != nil {
		return nil, err
	}

	line := &core.Line{
		ID:          m.ID,
		TicketID:    m.TicketID,
		ProductID:   m.ProductID,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		HalfPortion: m.HalfPortion,
		Status:      status,
		CreatedAt:   m.CreatedAt,
	}

	if m.Note.Valid {
		line.Note = m.Note.String
	}
	if m.CompReason.Valid {
		line.CompReason = m.CompReason.String
	}

	return line, nil
}

// TableModel represents the tables table structure
type TableModel struct {
	ID       string `gorm:"column:id;type:uuid;primaryKey;default:uuid_generate_v4()"`
	Number   string `gorm:"column:number;type:varchar(20);not null;uniqueIndex"`
	Zone     string `gorm:"column:zone;type:varchar(20);not null"`
	Status   string `gorm:"column:status;type:varchar(20);not null;default:'FREE'"`
	Capacity int    `gorm:"column:capacity;type:integer;not null;default:4"`
	IsActive bool   `gorm:"column:is_active;type:boolean;not null;default:true"`
}

func (TableModel) TableName() string {
	return "tables"
}

// TableModelFromDomain creates TableModel from core.Table
func TableModelFromDomain(table *core.Table) *TableModel {
	return &TableModel{
		ID:       table.ID,
		Number:   table.Number,
		Zone:     string(table.Zone),
		Status:   string(table.Status),
		Capacity: table.Capacity,
		IsActive: table.IsActive,
	}
}

// ToDomain converts TableModel to core.Table, validating stored enums
func (m *TableModel) ToDomain() (*core.Table, error) {
	zone, err := core.ParseTableZone(m.Zone)
	if err != nil {
		return nil, err
	}
	status, err := core.ParseTableStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return &core.Table{
		ID:       m.ID,
		Number:   m.Number,
		Zone:     zone,
		Status:   status,
		Capacity: m.Capacity,
		IsActive: m.IsActive,
	}, nil
}

// OperatorModel represents the operators table structure
type OperatorModel struct {
	ID        string         `gorm:"column:id;type:uuid;primaryKey;default:uuid_generate_v4()"`
	Name      string         `gorm:"column:name;type:varchar(255);not null"`
	Role      string         `gorm:"column:role;type:varchar(20);not null;default:'STAFF'"`
	PinHash   sql.NullString `gorm:"column:pin_hash;type:varchar(255)"`
	IsActive  bool           `gorm:"column:is_active;type:boolean;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;not null;default:CURRENT_TIMESTAMP"`
}

func (OperatorModel) TableName() string {
	return "operators"
}

// OperatorModelFromDomain creates OperatorModel from core.Operator
func OperatorModelFromDomain(operator *core.Operator) *OperatorModel {
	model := &OperatorModel{
		ID:        operator.ID,
		Name:      operator.Name,
		Role:      string(operator.Role),
		IsActive:  operator.IsActive,
		CreatedAt: operator.CreatedAt,
	}
	if operator.PinHash != "" {
		model.PinHash = sql.NullString{String: operator.PinHash, Valid: true}
	}
	return model
}

// ToDomain converts OperatorModel to core.Operator, validating the role
func (m *OperatorModel) ToDomain() (*core.Operator, error) {
	role, err := core.ParseOperatorRole(m.Role)
	if err != nil {
		return nil, err
	}

	operator := &core.Operator{
		ID:        m.ID,
		Name:      m.Name,
		Role:      role,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
	}
	if m.PinHash.Valid {
		operator.PinHash = m.PinHash.String
	}

	return operator, nil
}

// ProductModel represents the products table structure
type ProductModel struct {
	ID               string          `gorm:"column:id;type:uuid;primaryKey;default:uuid_generate_v4()"`
	Name             string          `gorm:"column:name;type:varchar(255);not null"`
	Category         string          `gorm:"column:category;type:varchar(100);not null"`
	Price            float64         `gorm:"column:price;type:decimal(10,2);not null"`
	HalfPortionPrice sql.NullFloat64 `gorm:"column:half_portion_price;type:decimal(10,2)"`
	IsActive         bool            `gorm:"column:is_active;type:boolean;not null;default:true"`
}

func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts ProductModel to core.Product
func (m *ProductModel) ToDomain() *core.Product {
	product := &core.Product{
		ID:       m.ID,
		Name:     m.Name,
		Category: m.Category,
		Price:    m.Price,
		IsActive: m.IsActive,
	}
	if m.HalfPortionPrice.Valid {
		price := m.HalfPortionPrice.Float64
		product.HalfPortionPrice = &price
	}
	return product
}
