package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/recouvra/recouvra/internal/audit"
	"github.com/recouvra/recouvra/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	sessions *SessionStore
	audit    audit.Recorder
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions *SessionStore, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Noop{}
	}
	return &Service{repo: repo, sessions: sessions, audit: recorder}
}

// Login validates credentials and mints a session token. Every failure
// reads the same to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, shared.Principal, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", shared.Principal{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", shared.Principal{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", shared.Principal{}, shared.ErrInvalidCredentials
	}

	principal := user.Principal()
	token, err := s.sessions.Create(ctx, principal)
	if err != nil {
		return "", shared.Principal{}, err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: user.ID, Action: "auth.login", Entity: "user", EntityID: user.ID})
	return token, principal, nil
}

// Logout revokes a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Resolve maps a bearer token to its principal.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Principal, error) {
	return s.sessions.Resolve(ctx, token)
}

// CreateUser provisions an account. Admin only.
func (s *Service) CreateUser(ctx context.Context, p shared.Principal, input CreateUserInput) (*User, error) {
	if p.Role != shared.RoleAdmin {
		return nil, shared.ErrForbidden
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := User{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hash),
		Role:         input.Role,
		IsActive:     true,
	}
	if err := s.repo.Insert(ctx, user); err != nil {
		return nil, err
	}
	created, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "user.create", Entity: "user", EntityID: created.ID})
	return created, nil
}

// SetActive enables or disables an account. Admin only. Existing sessions
// are left to expire on their own.
func (s *Service) SetActive(ctx context.Context, p shared.Principal, id string, active bool) error {
	if p.Role != shared.RoleAdmin {
		return shared.ErrForbidden
	}
	return s.repo.SetActive(ctx, id, active)
}
