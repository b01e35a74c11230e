package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/harborline/tablepos/internal/core"
	"golang.org/x/crypto/bcrypt"
)

// Decision is the outcome of an authorization gate check
type Decision string

const (
	DecisionAllowed       Decision = "ALLOWED"
	DecisionNeedsApproval Decision = "NEEDS_APPROVAL"
)

// AuthService handles operator login, terminal sessions, and the manager
// approval gate in front of discounts and comps.
type AuthService struct {
	operatorRepo core.OperatorRepository
	sessionRepo  core.SessionRepository
	jwtSecret    string
	sessionTTL   time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(operatorRepo core.OperatorRepository, sessionRepo core.SessionRepository, jwtSecret string, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		operatorRepo: operatorRepo,
		sessionRepo:  sessionRepo,
		jwtSecret:    jwtSecret,
		sessionTTL:   sessionTTL,
	}
}

// Authorize decides whether an operator may run a gated action directly.
// Manager and admin tiers pass; base tier needs a manager credential.
func (s *AuthService) Authorize(operator *core.Operator, action core.GatedAction) Decision {
	if operator.Elevated() {
		return DecisionAllowed
	}
	return DecisionNeedsApproval
}

// VerifyManagerCredential checks a manager PIN against every active
// manager and admin operator. A failed check denies the pending action
// outright; the caller must start over.
func (s *AuthService) VerifyManagerCredential(ctx context.Context, pin string) (*core.Operator, error) {
	if pin == "" {
		return nil, fmt.Errorf("%w: manager approval required", core.ErrAuthorizationDenied)
	}

	managers, err := s.operatorRepo.GetActiveByRoles(ctx, core.OperatorRoleManager, core.OperatorRoleAdmin)
	if err != nil {
		return nil, err
	}

	for _, manager := range managers {
		if manager.PinHash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(manager.PinHash), []byte(pin)) == nil {
			return manager, nil
		}
	}

	return nil, fmt.Errorf("%w: manager credential check failed", core.ErrAuthorizationDenied)
}

// LoginWithPIN authenticates any active operator by PIN and issues a JWT
// backed by a revocable terminal session in Redis
func (s *AuthService) LoginWithPIN(ctx context.Context, pin string) (string, *core.Operator, error) {
	if pin == "" {
		return "", nil, fmt.Errorf("%w: pin is required", core.ErrValidation)
	}

	operators, err := s.operatorRepo.GetActiveByRoles(ctx, core.OperatorRoleStaff, core.OperatorRoleManager, core.OperatorRoleAdmin)
	if err != nil {
		return "", nil, err
	}

	var operator *core.Operator
	for _, candidate := range operators {
		if candidate.PinHash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(candidate.PinHash), []byte(pin)) == nil {
			operator = candidate
			break
		}
	}
	if operator == nil {
		return "", nil, fmt.Errorf("%w: unknown pin", core.ErrAuthorizationDenied)
	}

	token, err := s.generateToken(operator)
	if err != nil {
		return "", nil, err
	}

	session := &core.TerminalSession{
		OperatorID: operator.ID,
		Name:       operator.Name,
		Role:       operator.Role,
		IssuedAt:   time.Now(),
	}
	if err := s.sessionRepo.Set(ctx, token, session, s.sessionTTL); err != nil {
		return "", nil, err
	}

	return token, operator, nil
}

// Logout revokes the terminal session behind a token
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessionRepo.Delete(ctx, token)
}

// ValidateToken verifies a JWT signature and confirms the terminal session
// is still live. Logged-out tokens fail even before their JWT expiry.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*core.TerminalSession, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", core.ErrAuthorizationDenied)
	}

	session, err := s.sessionRepo.Get(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: session revoked or expired", core.ErrAuthorizationDenied)
	}

	return session, nil
}

// GetOperator retrieves an operator by id
func (s *AuthService) GetOperator(ctx context.Context, operatorID string) (*core.Operator, error) {
	return s.operatorRepo.GetByID(ctx, operatorID)
}

func (s *AuthService) generateToken(operator *core.Operator) (string, error) {
	claims := jwt.MapClaims{
		"sub":  operator.ID,
		"name": operator.Name,
		"role": string(operator.Role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(s.sessionTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
