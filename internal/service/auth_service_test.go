package service

import (
	"context"
	"errors"
	"testing"

	"github.com/harborline/tablepos/internal/core"
)

func TestLoginWithPIN(t *testing.T) {
	env := newTestEnv()
	env.addOperator("staff-1", "Jonas", core.OperatorRoleStaff, hashPIN(t, "1111"))
	env.addOperator("mgr-1", "Mara", core.OperatorRoleManager, hashPIN(t, "4321"))
	ctx := context.Background()

	token, operator, err := env.auth.LoginWithPIN(ctx, "1111")
	if err != nil {
		t.Fatalf("LoginWithPIN: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if operator.ID != "staff-1" {
		t.Errorf("operator = %s, want staff-1", operator.ID)
	}

	session, err := env.auth.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if session.OperatorID != "staff-1" || session.Role != core.OperatorRoleStaff {
		t.Errorf("session = %+v, want staff-1 staff session", session)
	}
}

func TestLoginWithPINRejections(t *testing.T) {
	env := newTestEnv()
	env.addOperator("staff-1", "Jonas", core.OperatorRoleStaff, hashPIN(t, "1111"))
	ctx := context.Background()

	if _, _, err := env.auth.LoginWithPIN(ctx, ""); !errors.Is(err, core.ErrValidation) {
		t.Errorf("empty pin: expected ErrValidation, got %v", err)
	}
	if _, _, err := env.auth.LoginWithPIN(ctx, "9999"); !errors.Is(err, core.ErrAuthorizationDenied) {
		t.Errorf("unknown pin: expected ErrAuthorizationDenied, got %v", err)
	}

	env.store.operators["staff-1"].IsActive = false
	if _, _, err := env.auth.LoginWithPIN(ctx, "1111"); !errors.Is(err, core.ErrAuthorizationDenied) {
		t.Errorf("inactive operator: expected ErrAuthorizationDenied, got %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv()
	env.addOperator("staff-1", "Jonas", core.OperatorRoleStaff, hashPIN(t, "1111"))
	ctx := context.Background()

	token, _, err := env.auth.LoginWithPIN(ctx, "1111")
	if err != nil {
		t.Fatalf("LoginWithPIN: %v", err)
	}
	if err := env.auth.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// The JWT itself is still unexpired; revocation must win.
	if _, err := env.auth.ValidateToken(ctx, token); !errors.Is(err, core.ErrAuthorizationDenied) {
		t.Fatalf("expected ErrAuthorizationDenied after logout, got %v", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	env := newTestEnv()

	if _, err := env.auth.ValidateToken(context.Background(), "not-a-jwt"); !errors.Is(err, core.ErrAuthorizationDenied) {
		t.Fatalf("expected ErrAuthorizationDenied, got %v", err)
	}
}

func TestVerifyManagerCredential(t *testing.T) {
	env := newTestEnv()
	env.addOperator("staff-1", "Jonas", core.OperatorRoleStaff, hashPIN(t, "1111"))
	env.addOperator("mgr-1", "Mara", core.OperatorRoleManager, hashPIN(t, "4321"))
	env.addOperator("adm-1", "Deniz", core.OperatorRoleAdmin, hashPIN(t, "9999"))
	ctx := context.Background()

	approver, err := env.auth.VerifyManagerCredential(ctx, "4321")
	if err != nil {
		t.Fatalf("VerifyManagerCredential: %v", err)
	}
	if approver.ID != "mgr-1" {
		t.Errorf("approver = %s, want mgr-1", approver.ID)
	}

	if approver, err = env.auth.VerifyManagerCredential(ctx, "9999"); err != nil {
		t.Fatalf("admin credential: %v", err)
	} else if approver.ID != "adm-1" {
		t.Errorf("approver = %s, want adm-1", approver.ID)
	}

	// A staff PIN never clears the gate.
	if _, err := env.auth.VerifyManagerCredential(ctx, "1111"); !errors.Is(err, core.ErrAuthorizationDenied) {
		t.Errorf("staff pin: expected ErrAuthorizationDenied, got %v", err)
	}
	if _, err := env.auth.VerifyManagerCredential(ctx, ""); !errors.Is(err, core.ErrAuthorizationDenied) {
		t.Errorf("empty pin: expected ErrAuthorizationDenied, got %v", err)
	}
}

func TestAuthorizeDecisions(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		role core.OperatorRole
		want Decision
	}{
		{core.OperatorRoleStaff, DecisionNeedsApproval},
		{core.OperatorRoleManager, DecisionAllowed},
		{core.OperatorRoleAdmin, DecisionAllowed},
	}
	for _, tt := range tests {
		operator := &core.Operator{ID: "x", Role: tt.role, IsActive: true}
		if got := env.auth.Authorize(operator, core.GatedActionDiscount); got != tt.want {
			t.Errorf("Authorize(%s) = %s, want %s", tt.role, got, tt.want)
		}
	}
}
