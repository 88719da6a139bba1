package documents

import (
	"context"
	"fmt"

	"github.com/recouvra/recouvra/internal/audit"
	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/shared"
)

// RepositoryPort defines data access methods for documents.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateDocumentInput) (*Document, error)
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, error)
	Delete(ctx context.Context, id string) error
}

// ClientDirectory resolves clients for visibility checks.
type ClientDirectory interface {
	Get(ctx context.Context, id string) (*clients.Client, error)
	List(ctx context.Context, filter clients.ListFilter) ([]clients.Client, error)
}

// Service handles document business logic.
type Service struct {
	repo      RepositoryPort
	directory ClientDirectory
	audit     audit.Recorder
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, directory ClientDirectory, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Noop{}
	}
	return &Service{repo: repo, directory: directory, audit: recorder}
}

// Register records a document against a visible client.
func (s *Service) Register(ctx context.Context, p shared.Principal, input CreateDocumentInput) (*Document, error) {
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
	if input.UploadedBy == nil {
		actor := p.ID
		input.UploadedBy = &actor
	}
	doc, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "document.register", Entity: "document", EntityID: doc.ID})
	return doc, nil
}

// Get returns a document when its client is visible to the principal.
func (s *Service) Get(ctx context.Context, p shared.Principal, id string) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	client, err := s.directory.Get(ctx, doc.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.VisibleTo(p) {
		return nil, ErrNotFound
	}
	return doc, nil
}

// List enumerates documents restricted to the principal's visible clients.
func (s *Service) List(ctx context.Context, p shared.Principal, filter ListFilter) ([]Document, error) {
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

// Delete removes a document record.
func (s *Service) Delete(ctx context.Context, p shared.Principal, id string) error {
	if p.Role != shared.RoleAdmin && p.Role != shared.RoleManager {
		return shared.ErrForbidden
	}
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "document.delete", Entity: "document", EntityID: id})
	return nil
}
