package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harborline/tablepos/internal/core"
)

// UnitRow is one payable unit of a ticket line inside a settlement session.
// A line of quantity N explodes into N rows indexed 0..N-1; the rows exist
// only in memory and never outlive the session.
type UnitRow struct {
	LineID      string  `json:"line_id"`
	UnitIndex   int     `json:"unit_index"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Selected    bool    `json:"selected"`
	Settled     bool    `json:"settled"`
	Comped      bool    `json:"comped"`
}

// Session tracks one split-by-guest checkout: which unit rows are selected,
// which are already settled, and how much has been paid by which method.
type Session struct {
	ID          string
	TicketID    string
	OperatorID  string
	Rows        []*UnitRow
	CashPaid    float64
	CardPaid    float64
	Accumulated float64
	CreatedAt   time.Time

	mu sync.Mutex
}

// SessionManager holds live settlement sessions keyed by session id.
// Sessions are a checkout-screen concern and are dropped on completion
// or abandon.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates an empty session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

func (m *SessionManager) add(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
}

func (m *SessionManager) get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: settlement session %s", core.ErrNotFound, id)
	}
	return session, nil
}

func (m *SessionManager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// SessionView is the handler-facing snapshot of a session
type SessionView struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	Rows        []UnitRow `json:"rows"`
	SelectedDue float64   `json:"selected_due"`
	Accumulated float64   `json:"accumulated"`
	Remaining   float64   `json:"remaining"`
	Completed   bool      `json:"completed"`
}

// OpenSession starts a split-by-guest checkout for a ticket, exploding its
// lines into unit rows. Comped lines appear but are not payable.
func (s *SettlementService) OpenSession(ctx context.Context, ticketID string, operatorID string) (*SessionView, error) {
	ticket, err := s.openForSettlement(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:         uuid.New().String(),
		TicketID:   ticketID,
		OperatorID: operatorID,
		CreatedAt:  time.Now(),
	}

	for i := range ticket.Lines {
		line := &ticket.Lines[i]
		if line.Status == core.LineStatusCancelled {
			continue
		}
		comped := line.Status == core.LineStatusComped
		for unit := 0; unit < line.Quantity; unit++ {
			session.Rows = append(session.Rows, &UnitRow{
				LineID:      line.ID,
				UnitIndex:   unit,
				ProductName: line.ProductName,
				Price:       line.UnitPrice,
				Comped:      comped,
			})
		}
	}

	if len(session.Rows) == 0 {
		return nil, fmt.Errorf("%w: ticket %s has nothing to settle", core.ErrValidation, ticketID)
	}

	s.sessions.add(session)
	return session.view(), nil
}

// SelectUnit toggles selection on a unit row. Settled and comped rows
// cannot be selected again, which is what keeps a line of quantity N from
// ever paying more than N units.
func (s *SettlementService) SelectUnit(sessionID string, lineID string, unitIndex int, selected bool) (*SessionView, error) {
	session, err := s.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	for _, row := range session.Rows {
		if row.LineID == lineID && row.UnitIndex == unitIndex {
			if row.Settled || row.Comped {
				return nil, fmt.Errorf("%w: unit is not payable", core.ErrInvalidState)
			}
			row.Selected = selected
			return session.viewLocked(), nil
		}
	}

	return nil, fmt.Errorf("%w: unit row %s/%d", core.ErrNotFound, lineID, unitIndex)
}

// PaySessionResult reports the outcome of one partial payment
type PaySessionResult struct {
	Change    float64      `json:"change"`
	Completed bool         `json:"completed"`
	Session   *SessionView `json:"session"`
}

// PaySelection settles the currently selected unit rows with the same
// tender math as single-shot settlement. Nothing touches the database until
// the last unit row settles; then the ticket closes exactly once with its
// persisted total and the session is dropped.
func (s *SettlementService) PaySelection(ctx context.Context, sessionID string, method core.PaymentMethod, tendered float64, cashPortion float64) (*PaySessionResult, error) {
	session, err := s.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	var selected []*UnitRow
	due := 0.0
	completing := true
	for _, row := range session.Rows {
		if row.Settled || row.Comped {
			continue
		}
		if row.Selected {
			selected = append(selected, row)
			due += row.Price
		} else {
			completing = false
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no unit rows selected", core.ErrValidation)
	}

	change := 0.0
	cashPaid := 0.0
	cardPaid := 0.0
	switch method {
	case core.PaymentMethodCash:
		if tendered < due {
			return nil, fmt.Errorf("%w: tendered %.2f below due %.2f", core.ErrInsufficientAmount, tendered, due)
		}
		change = tendered - due
		cashPaid = due
	case core.PaymentMethodCard:
		cardPaid = due
	case core.PaymentMethodSplit:
		if cashPortion < 0 || cashPortion > due {
			return nil, fmt.Errorf("%w: cash portion %.2f outside [0, %.2f]", core.ErrValidation, cashPortion, due)
		}
		cashPaid = cashPortion
		cardPaid = due - cashPortion
	default:
		return nil, fmt.Errorf("%w: unknown payment method %q", core.ErrValidation, method)
	}

	// When this payment covers the last outstanding units, close the
	// ticket before committing anything to the session. A failed close
	// leaves the selection intact so the caller can simply retry.
	if completing {
		ticket, err := s.ticketRepo.GetByID(ctx, session.TicketID)
		if err != nil {
			return nil, err
		}

		finalCash := session.CashPaid + cashPaid
		finalCard := session.CardPaid + cardPaid
		finalMethod := core.PaymentMethodCash
		switch {
		case finalCash > 0 && finalCard > 0:
			finalMethod = core.PaymentMethodSplit
		case finalCard > 0:
			finalMethod = core.PaymentMethodCard
		}

		s.locks.Lock(session.TicketID)
		err = s.close(ctx, ticket, finalMethod, finalCash, finalCard)
		s.locks.Unlock(session.TicketID)
		if err != nil {
			return nil, err
		}
	}

	session.CashPaid += cashPaid
	session.CardPaid += cardPaid
	for _, row := range selected {
		row.Selected = false
		row.Settled = true
	}
	session.Accumulated += due

	if !completing {
		return &PaySessionResult{Change: change, Session: session.viewLocked()}, nil
	}

	view := session.viewLocked()
	view.Completed = true
	s.sessions.remove(session.ID)

	return &PaySessionResult{Change: change, Completed: true, Session: view}, nil
}

// GetSession returns a snapshot of a live session
func (s *SettlementService) GetSession(sessionID string) (*SessionView, error) {
	session, err := s.sessions.get(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.viewLocked(), nil
}

// AbandonSession drops a session without touching the ticket
func (s *SettlementService) AbandonSession(sessionID string) error {
	if _, err := s.sessions.get(sessionID); err != nil {
		return err
	}
	s.sessions.remove(sessionID)
	return nil
}

func (sess *Session) view() *SessionView {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.viewLocked()
}

func (sess *Session) viewLocked() *SessionView {
	view := &SessionView{
		ID:          sess.ID,
		TicketID:    sess.TicketID,
		Accumulated: sess.Accumulated,
	}
	for _, row := range sess.Rows {
		view.Rows = append(view.Rows, *row)
		if row.Selected && !row.Settled && !row.Comped {
			view.SelectedDue += row.Price
		}
		if !row.Settled && !row.Comped {
			view.Remaining += row.Price
		}
	}
	return view
}
