package communications

import (
	"context"
	"fmt"
	"time"

	"github.com/recouvra/recouvra/internal/audit"
	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/shared"
)

// RepositoryPort defines data access methods for communications.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateCommunicationInput) (*Communication, error)
	Get(ctx context.Context, id string) (*Communication, error)
	List(ctx context.Context, filter ListFilter) ([]Communication, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// ClientDirectory resolves clients for visibility checks and last-contact
// stamping.
type ClientDirectory interface {
	Get(ctx context.Context, id string) (*clients.Client, error)
	List(ctx context.Context, filter clients.ListFilter) ([]clients.Client, error)
	TouchLastContact(ctx context.Context, id string, at time.Time) error
}

// Service handles communication business logic.
type Service struct {
	repo      RepositoryPort
	directory ClientDirectory
	audit     audit.Recorder
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, directory ClientDirectory, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Noop{}
	}
	return &Service{repo: repo, directory: directory, audit: recorder, now: time.Now}
}

// Record logs a manual communication (call, meeting, sent letter) against a
// visible client and stamps the client's last_contact.
func (s *Service) Record(ctx context.Context, p shared.Principal, input CreateCommunicationInput) (*Communication, error) {
	if p.Role != shared.RoleAdmin && p.Role != shared.RoleManager {
		return nil, shared.ErrForbidden
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	client, err := s.directory.Get(ctx, input.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.VisibleTo(p) {
		return nil, clients.ErrNotFound
	}
	if input.UserID == nil {
		actor := p.ID
		input.UserID = &actor
	}
	if input.SentAt == nil && input.ScheduledAt == nil {
		now := s.now()
		input.SentAt = &now
	}

	comm, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	if comm.SentAt != nil {
		if err := s.directory.TouchLastContact(ctx, comm.ClientID, *comm.SentAt); err != nil {
			return nil, err
		}
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "communication.record", Entity: "communication", EntityID: comm.ID})
	return comm, nil
}

// Get returns a communication when its client is visible to the principal.
func (s *Service) Get(ctx context.Context, p shared.Principal, id string) (*Communication, error) {
	comm, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	client, err := s.directory.Get(ctx, comm.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.VisibleTo(p) {
		return nil, ErrNotFound
	}
	return comm, nil
}

// List enumerates communications restricted to the principal's visible
// clients.
func (s *Service) List(ctx context.Context, p shared.Principal, filter ListFilter) ([]Communication, error) {
	if p.Role != shared.RoleAdmin {
		all, err := s.directory.List(ctx, clients.ListFilter{})
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(all))
		for _, c := range all {
			if c.VisibleTo(p) {
				ids = append(ids, c.ID)
			}
		}
		if len(ids) == 0 {
			return nil, nil
		}
		filter.ClientIDs = ids
	}
	return s.repo.List(ctx, filter)
}

// MarkStatus records a delivery-status update (delivered, read, responded,
// failed).
func (s *Service) MarkStatus(ctx context.Context, p shared.Principal, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: communications: invalid status %q", shared.ErrValidation, status)
	}
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, id, status)
}
