package service

import (
	"context"
	"errors"
	"testing"

	"github.com/harborline/tablepos/internal/core"
)

// sessionTicket seeds a dine-in ticket with one line of 3 units at 10.00.
func sessionTicket(t *testing.T, env *testEnv) (*core.Ticket, string) {
	t.Helper()
	env.addProduct("prod-a", "Product A", 10.00)
	ticket := openDineInTicket(t, env)

	_, lineID, err := env.tickets.AddLine(context.Background(), AddLineInput{
		TicketID: ticket.ID, OperatorID: "op-1", ProductID: "prod-a", Quantity: 3,
	})
	if err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	return env.ticket(ticket.ID), lineID
}

func TestOpenSessionExplodesUnits(t *testing.T) {
	env := newTestEnv()
	ticket, lineID := sessionTicket(t, env)

	view, err := env.settlement.OpenSession(context.Background(), ticket.ID, "op-1")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if len(view.Rows) != 3 {
		t.Fatalf("rows = %d, want one per unit", len(view.Rows))
	}
	for i, row := range view.Rows {
		if row.LineID != lineID || row.UnitIndex != i || row.Price != 10.00 {
			t.Errorf("row %d = %+v, want unit %d of line %s at 10.00", i, row, i, lineID)
		}
	}
	if view.Remaining != 30.00 {
		t.Errorf("remaining = %.2f, want 30.00", view.Remaining)
	}
}

func TestOpenSessionRejectsEmptyTicket(t *testing.T) {
	env := newTestEnv()
	ticket := openDineInTicket(t, env)

	_, err := env.settlement.OpenSession(context.Background(), ticket.ID, "op-1")
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestPaySelectionSplitByGuest(t *testing.T) {
	env := newTestEnv()
	ticket, lineID := sessionTicket(t, env)
	ctx := context.Background()

	view, err := env.settlement.OpenSession(ctx, ticket.ID, "op-1")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	// First guest pays one unit in cash.
	if _, err := env.settlement.SelectUnit(view.ID, lineID, 0, true); err != nil {
		t.Fatalf("SelectUnit: %v", err)
	}
	result, err := env.settlement.PaySelection(ctx, view.ID, core.PaymentMethodCash, 10.00, 0)
	if err != nil {
		t.Fatalf("PaySelection cash: %v", err)
	}
	if result.Change != 0 {
		t.Errorf("change = %.2f, want 0", result.Change)
	}
	if result.Completed {
		t.Fatal("session completed with units outstanding")
	}
	if result.Session.Accumulated != 10.00 || result.Session.Remaining != 20.00 {
		t.Errorf("accumulated/remaining = %.2f/%.2f, want 10.00/20.00",
			result.Session.Accumulated, result.Session.Remaining)
	}

	// The ticket itself must not close yet.
	if got := env.ticket(ticket.ID).Status; got != core.TicketStatusOpen {
		t.Fatalf("ticket status = %s before final unit, want %s", got, core.TicketStatusOpen)
	}

	// Second guest takes the remaining two units on card.
	if _, err := env.settlement.SelectUnit(view.ID, lineID, 1, true); err != nil {
		t.Fatalf("SelectUnit: %v", err)
	}
	if _, err := env.settlement.SelectUnit(view.ID, lineID, 2, true); err != nil {
		t.Fatalf("SelectUnit: %v", err)
	}
	result, err = env.settlement.PaySelection(ctx, view.ID, core.PaymentMethodCard, 0, 0)
	if err != nil {
		t.Fatalf("PaySelection card: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected session to complete")
	}

	closed := env.ticket(ticket.ID)
	if closed.Status != core.TicketStatusPaid {
		t.Errorf("status = %s, want %s", closed.Status, core.TicketStatusPaid)
	}
	if closed.PaymentMethod != core.PaymentMethodSplit {
		t.Errorf("method = %s, want %s", closed.PaymentMethod, core.PaymentMethodSplit)
	}
	if closed.CashAmount != 10.00 || closed.CardAmount != 20.00 {
		t.Errorf("amounts = %.2f cash / %.2f card, want 10.00 / 20.00",
			closed.CashAmount, closed.CardAmount)
	}
	if got := env.table("table-1").Status; got != core.TableStatusFree {
		t.Errorf("table status = %s, want %s", got, core.TableStatusFree)
	}

	// The session is gone once the ticket closes.
	if _, err := env.settlement.GetSession(view.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound after completion, got %v", err)
	}
}

func TestPaySelectionInsufficientCash(t *testing.T) {
	env := newTestEnv()
	ticket, lineID := sessionTicket(t, env)
	ctx := context.Background()

	view, err := env.settlement.OpenSession(ctx, ticket.ID, "op-1")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if _, err := env.settlement.SelectUnit(view.ID, lineID, 0, true); err != nil {
		t.Fatalf("SelectUnit: %v", err)
	}

	if _, err := env.settlement.PaySelection(ctx, view.ID, core.PaymentMethodCash, 5.00, 0); !errors.Is(err, core.ErrInsufficientAmount) {
		t.Fatalf("expected ErrInsufficientAmount, got %v", err)
	}

	// Nothing settled; the selection survives for a retry.
	current, err := env.settlement.GetSession(view.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if current.Accumulated != 0 {
		t.Errorf("accumulated = %.2f, want 0", current.Accumulated)
	}
	if !current.Rows[0].Selected || current.Rows[0].Settled {
		t.Errorf("row 0 = %+v, want still selected and unsettled", current.Rows[0])
	}
}

func TestPaySelectionRequiresSelection(t *testing.T) {
	env := newTestEnv()
	ticket, _ := sessionTicket(t, env)
	ctx := context.Background()

	view, err := env.settlement.OpenSession(ctx, ticket.ID, "op-1")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	if _, err := env.settlement.PaySelection(ctx, view.ID, core.PaymentMethodCash, 10.00, 0); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation with nothing selected, got %v", err)
	}
}

func TestSettledUnitCannotBeReselected(t *testing.T) {
	env := newTestEnv()
	ticket, lineID := sessionTicket(t, env)
	ctx := context.Background()

	view, err := env.settlement.OpenSession(ctx, ticket.ID, "op-1")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if _, err := env.settlement.SelectUnit(view.ID, lineID, 0, true); err != nil {
		t.Fatalf("SelectUnit: %v", err)
	}
	if _, err := env.settlement.PaySelection(ctx, view.ID, core.PaymentMethodCash, 10.00, 0); err != nil {
		t.Fatalf("PaySelection: %v", err)
	}

	if _, err := env.settlement.SelectUnit(view.ID, lineID, 0, true); !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on settled unit, got %v", err)
	}
}

func TestCompedUnitsAppearButAreNotPayable(t *testing.T) {
	env := newTestEnv()
	env.addProduct("prod-a", "Product A", 10.00)
	env.addProduct("prod-b", "Product B", 15.00)
	ticket := openDineInTicket(t, env)
	ctx := context.Background()

	_, compedLine, err := env.tickets.AddLine(ctx, AddLineInput{
		TicketID: ticket.ID, OperatorID: "op-1", ProductID: "prod-a", Quantity: 1,
	})
	if err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if _, _, err := env.tickets.AddLine(ctx, AddLineInput{
		TicketID: ticket.ID, OperatorID: "op-1", ProductID: "prod-b", Quantity: 1,
	}); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if err := env.tickets.CompLine(ctx, compedLine, "kitchen delay"); err != nil {
		t.Fatalf("CompLine: %v", err)
	}

	view, err := env.settlement.OpenSession(ctx, ticket.ID, "op-1")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if len(view.Rows) != 2 {
		t.Fatalf("rows = %d, want comped unit still listed", len(view.Rows))
	}
	if view.Remaining != 15.00 {
		t.Errorf("remaining = %.2f, want 15.00", view.Remaining)
	}

	if _, err := env.settlement.SelectUnit(view.ID, compedLine, 0, true); !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on comped unit, got %v", err)
	}
}

func TestPaySelectionRetriesAfterFailedClose(t *testing.T) {
	env := newTestEnv()
	ticket, lineID := sessionTicket(t, env)
	ctx := context.Background()

	view, err := env.settlement.OpenSession(ctx, ticket.ID, "op-1")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	for unit := 0; unit < 3; unit++ {
		if _, err := env.settlement.SelectUnit(view.ID, lineID, unit, true); err != nil {
			t.Fatalf("SelectUnit %d: %v", unit, err)
		}
	}

	env.store.failNextClose = true
	if _, err := env.settlement.PaySelection(ctx, view.ID, core.PaymentMethodCash, 30.00, 0); err == nil {
		t.Fatal("expected storage failure to surface")
	}

	// The failed close must not burn the selection; the session stays
	// payable and the ticket stays open.
	current, err := env.settlement.GetSession(view.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if current.Accumulated != 0 {
		t.Errorf("accumulated = %.2f, want 0", current.Accumulated)
	}
	for i, row := range current.Rows {
		if !row.Selected || row.Settled {
			t.Errorf("row %d = %+v, want still selected and unsettled", i, row)
		}
	}
	if got := env.ticket(ticket.ID).Status; got != core.TicketStatusOpen {
		t.Fatalf("ticket status = %s, want %s", got, core.TicketStatusOpen)
	}

	result, err := env.settlement.PaySelection(ctx, view.ID, core.PaymentMethodCash, 30.00, 0)
	if err != nil {
		t.Fatalf("retry PaySelection: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected retry to complete the session")
	}

	closed := env.ticket(ticket.ID)
	if closed.Status != core.TicketStatusPaid {
		t.Errorf("status = %s, want %s", closed.Status, core.TicketStatusPaid)
	}
	if closed.PaymentMethod != core.PaymentMethodCash || closed.CashAmount != 30.00 {
		t.Errorf("payment = %s %.2f, want CASH 30.00", closed.PaymentMethod, closed.CashAmount)
	}
}

func TestAbandonSessionLeavesTicketOpen(t *testing.T) {
	env := newTestEnv()
	ticket, lineID := sessionTicket(t, env)
	ctx := context.Background()

	view, err := env.settlement.OpenSession(ctx, ticket.ID, "op-1")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if _, err := env.settlement.SelectUnit(view.ID, lineID, 0, true); err != nil {
		t.Fatalf("SelectUnit: %v", err)
	}

	if err := env.settlement.AbandonSession(view.ID); err != nil {
		t.Fatalf("AbandonSession: %v", err)
	}
	if _, err := env.settlement.GetSession(view.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := env.ticket(ticket.ID).Status; got != core.TicketStatusOpen {
		t.Errorf("ticket status = %s, want %s", got, core.TicketStatusOpen)
	}
}
