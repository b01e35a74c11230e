package service

import (
	"context"
	"fmt"

	"github.com/harborline/tablepos/internal/core"
	"github.com/harborline/tablepos/internal/events"
)

// SettlementService turns an open ticket into a paid one: tender math,
// discounts, comps, and the atomic close that frees the bound table.
type SettlementService struct {
	ticketRepo core.TicketRepository
	tickets    *TicketService
	auth       *AuthService
	eventBus   *events.EventBus
	locks      *TicketLocks
	sessions   *SessionManager
}

// NewSettlementService creates a new settlement service
func NewSettlementService(
	ticketRepo core.TicketRepository,
	tickets *TicketService,
	auth *AuthService,
	eventBus *events.EventBus,
	locks *TicketLocks,
) *SettlementService {
	return &SettlementService{
		ticketRepo: ticketRepo,
		tickets:    tickets,
		auth:       auth,
		eventBus:   eventBus,
		locks:      locks,
		sessions:   NewSessionManager(),
	}
}

// AmountDue returns total minus discount for a ticket
func (s *SettlementService) AmountDue(ctx context.Context, ticketID string) (float64, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return 0, err
	}
	return ticket.AmountDue(), nil
}

// ProcessCash settles a ticket with cash. The tendered amount must cover
// the amount due; the difference comes back as change.
func (s *SettlementService) ProcessCash(ctx context.Context, ticketID string, tendered float64) (float64, error) {
	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.openForSettlement(ctx, ticketID)
	if err != nil {
		return 0, err
	}

	due := ticket.AmountDue()
	if tendered < due {
		return 0, fmt.Errorf("%w: tendered %.2f below due %.2f", core.ErrInsufficientAmount, tendered, due)
	}
	change := tendered - due

	if err := s.close(ctx, ticket, core.PaymentMethodCash, tendered, 0); err != nil {
		return 0, err
	}

	return change, nil
}

// ProcessCard settles the full amount due by card
func (s *SettlementService) ProcessCard(ctx context.Context, ticketID string) error {
	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.openForSettlement(ctx, ticketID)
	if err != nil {
		return err
	}

	return s.close(ctx, ticket, core.PaymentMethodCard, 0, ticket.AmountDue())
}

// ProcessSplit settles a ticket part cash, part card. The cash portion
// must not exceed the amount due; card covers the rest.
func (s *SettlementService) ProcessSplit(ctx context.Context, ticketID string, cashPortion float64) error {
	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.openForSettlement(ctx, ticketID)
	if err != nil {
		return err
	}

	due := ticket.AmountDue()
	if cashPortion < 0 || cashPortion > due {
		return fmt.Errorf("%w: cash portion %.2f outside [0, %.2f]", core.ErrValidation, cashPortion, due)
	}

	return s.close(ctx, ticket, core.PaymentMethodSplit, cashPortion, due-cashPortion)
}

// DiscountInput carries one discount request. Exactly one of Percent and
// Fixed must be set; ManagerPIN is consulted only when the acting operator
// is base tier.
type DiscountInput struct {
	TicketID   string
	Percent    *float64
	Fixed      *float64
	Reason     string
	Operator   *core.Operator
	ManagerPIN string
}

// ApplyDiscount stores a discount on an open ticket after the authorization
// gate clears. The computed amount clamps to [0, total].
func (s *SettlementService) ApplyDiscount(ctx context.Context, in DiscountInput) (float64, error) {
	if in.Reason == "" {
		return 0, fmt.Errorf("%w: discount reason is required", core.ErrValidation)
	}
	if (in.Percent == nil) == (in.Fixed == nil) {
		return 0, fmt.Errorf("%w: exactly one of percent or fixed amount is required", core.ErrValidation)
	}

	if _, err := s.authorizeGated(ctx, in.Operator, core.GatedActionDiscount, in.ManagerPIN); err != nil {
		return 0, err
	}

	s.locks.Lock(in.TicketID)
	defer s.locks.Unlock(in.TicketID)

	ticket, err := s.openForSettlement(ctx, in.TicketID)
	if err != nil {
		return 0, err
	}

	var amount float64
	if in.Percent != nil {
		amount = ticket.Total * *in.Percent / 100
	} else {
		amount = *in.Fixed
	}
	if amount < 0 {
		amount = 0
	}
	if amount > ticket.Total {
		amount = ticket.Total
	}

	if err := s.ticketRepo.ApplyDiscount(ctx, in.TicketID, amount, in.Reason); err != nil {
		return 0, err
	}

	s.eventBus.PublishDiscountApplied(in.TicketID, amount)
	return amount, nil
}

// ApplyComp comps a line through the authorization gate
func (s *SettlementService) ApplyComp(ctx context.Context, lineID string, reason string, operator *core.Operator, managerPIN string) error {
	if _, err := s.authorizeGated(ctx, operator, core.GatedActionComp, managerPIN); err != nil {
		return err
	}
	return s.tickets.CompLine(ctx, lineID, reason)
}

// CloseTicket finalizes a ticket as paid. The underlying write is a single
// transaction covering the ticket and its bound table; a ticket that is
// already paid fails with ErrConflict and nothing changes.
func (s *SettlementService) CloseTicket(ctx context.Context, ticketID string, method core.PaymentMethod, cash, card float64) error {
	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}

	return s.close(ctx, ticket, method, cash, card)
}

// openForSettlement loads a ticket and rejects ones that already closed
func (s *SettlementService) openForSettlement(ctx context.Context, ticketID string) (*core.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == core.TicketStatusPaid {
		return nil, fmt.Errorf("%w: ticket %s is already paid", core.ErrConflict, ticketID)
	}
	if ticket.Status == core.TicketStatusCancelled {
		return nil, fmt.Errorf("%w: ticket %s is cancelled", core.ErrInvalidState, ticketID)
	}
	return ticket, nil
}

// close runs the atomic ticket-close and announces the outcome. The repo
// re-checks status inside its transaction, so a concurrent close still
// surfaces as ErrConflict here.
func (s *SettlementService) close(ctx context.Context, ticket *core.Ticket, method core.PaymentMethod, cash, card float64) error {
	if err := s.ticketRepo.Close(ctx, ticket.ID, method, cash, card, ticket.TableID); err != nil {
		return err
	}

	s.eventBus.PublishTicketClosed(ticket.ID, string(method))
	if ticket.TableID != nil {
		s.eventBus.PublishTableStatusChanged(*ticket.TableID, string(core.TableStatusFree))
	}

	return nil
}

// authorizeGated runs the approval gate for discount and comp actions.
// Elevated operators pass directly; base-tier operators need a valid
// manager PIN, and a failed check discards the pending action.
func (s *SettlementService) authorizeGated(ctx context.Context, operator *core.Operator, action core.GatedAction, managerPIN string) (string, error) {
	if operator == nil {
		return "", fmt.Errorf("%w: operator is required", core.ErrValidation)
	}

	if s.auth.Authorize(operator, action) == DecisionAllowed {
		return operator.ID, nil
	}

	approver, err := s.auth.VerifyManagerCredential(ctx, managerPIN)
	if err != nil {
		return "", err
	}
	return approver.ID, nil
}
