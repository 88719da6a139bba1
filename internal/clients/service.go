package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/recouvra/recouvra/internal/audit"
	"github.com/recouvra/recouvra/internal/shared"
)

// RepositoryPort defines data access methods for clients.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateClientInput) (*Client, error)
	Get(ctx context.Context, id string) (*Client, error)
	List(ctx context.Context, filter ListFilter) ([]Client, error)
	Update(ctx context.Context, id string, input UpdateClientInput) (*Client, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	RefreshTotal(ctx context.Context, id string) error
	TouchLastContact(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// Service handles client business logic. Every operation receives the
// requesting principal explicitly; nothing is read from ambient state.
type Service struct {
	repo  RepositoryPort
	audit audit.Recorder
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Noop{}
	}
	return &Service{repo: repo, audit: recorder}
}

// List returns the clients the principal may see. Managers are pinned to
// their own portfolio regardless of the requested filter.
func (s *Service) List(ctx context.Context, p shared.Principal, filter ListFilter) ([]Client, error) {
	switch p.Role {
	case shared.RoleAdmin:
	case shared.RoleManager:
		filter.ManagerID = p.ID
	case shared.RoleClient:
		list, err := s.repo.List(ctx, ListFilter{})
		if err != nil {
			return nil, err
		}
		var out []Client
		for _, c := range list {
			if c.VisibleTo(p) {
				out = append(out, c)
			}
		}
		return out, nil
	default:
		return nil, shared.ErrForbidden
	}
	return s.repo.List(ctx, filter)
}

// Get returns a single client when visible to the principal. Invisible
// records read as absent, not forbidden.
func (s *Service) Get(ctx context.Context, p shared.Principal, id string) (*Client, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.VisibleTo(p) {
		return nil, ErrNotFound
	}
	return c, nil
}

// Create onboards a new client. Managers own what they create unless an
// explicit assignment is given.
func (s *Service) Create(ctx context.Context, p shared.Principal, input CreateClientInput) (*Client, error) {
	if p.Role != shared.RoleAdmin && p.Role != shared.RoleManager {
		return nil, shared.ErrForbidden
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	if p.Role == shared.RoleManager && input.ManagerID == nil {
		id := p.ID
		input.ManagerID = &id
	}
	c, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "client.create", Entity: "client", EntityID: c.ID})
	return c, nil
}

// Update applies a partial edit to a visible client.
func (s *Service) Update(ctx context.Context, p shared.Principal, id string, input UpdateClientInput) (*Client, error) {
	if p.Role != shared.RoleAdmin && p.Role != shared.RoleManager {
		return nil, shared.ErrForbidden
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, ErrInvalidStatus)
	}
	existing, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.Update(ctx, existing.ID, input)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "client.update", Entity: "client", EntityID: c.ID})
	return c, nil
}

// ChangeStatus moves a client on the escalation ladder, manually. Writes
// are skipped when the status already matches.
func (s *Service) ChangeStatus(ctx context.Context, p shared.Principal, id string, status Status) error {
	if p.Role != shared.RoleAdmin && p.Role != shared.RoleManager {
		return shared.ErrForbidden
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %s", shared.ErrValidation, ErrInvalidStatus)
	}
	existing, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if existing.Status == status {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: p.ID, Action: "client.status_change", Entity: "client", EntityID: id,
		Detail: string(existing.Status) + " -> " + string(status),
	})
	return nil
}

// RecordContact stamps last_contact after a manual touchpoint.
func (s *Service) RecordContact(ctx context.Context, p shared.Principal, id string, at time.Time) error {
	existing, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if at.IsZero() {
		at = time.Now()
	}
	return s.repo.TouchLastContact(ctx, existing.ID, at)
}

// Delete removes a client and, through the schema's cascade, its invoices,
// payments, communications and documents.
func (s *Service) Delete(ctx context.Context, p shared.Principal, id string) error {
	if p.Role != shared.RoleAdmin {
		return shared.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "client.delete", Entity: "client", EntityID: id})
	return nil
}

// RefreshTotal recomputes the cached outstanding total for a client.
func (s *Service) RefreshTotal(ctx context.Context, id string) error {
	return s.repo.RefreshTotal(ctx, id)
}
