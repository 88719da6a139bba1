package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/recouvra/recouvra/internal/audit"
	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/shared"
)

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateInvoiceInput) (*Invoice, error)
	Get(ctx context.Context, id string) (*Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, error)
	ListUnpaid(ctx context.Context) ([]Invoice, error)
	RefreshStatuses(ctx context.Context, asOf time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
}

// ClientDirectory resolves clients for visibility checks and cached-total
// refreshes.
type ClientDirectory interface {
	Get(ctx context.Context, id string) (*clients.Client, error)
	List(ctx context.Context, filter clients.ListFilter) ([]clients.Client, error)
	RefreshTotal(ctx context.Context, id string) error
}

// Service handles invoice business logic.
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

// Create issues a new invoice against a visible client and refreshes the
// client's cached outstanding total.
func (s *Service) Create(ctx context.Context, p shared.Principal, input CreateInvoiceInput) (*Invoice, error) {
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
	inv, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.directory.RefreshTotal(ctx, inv.ClientID); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "invoice.create", Entity: "invoice", EntityID: inv.ID})
	return inv, nil
}

// Get returns an invoice when its client is visible to the principal.
func (s *Service) Get(ctx context.Context, p shared.Principal, id string) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	client, err := s.directory.Get(ctx, inv.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.VisibleTo(p) {
		return nil, ErrNotFound
	}
	return inv, nil
}

// List enumerates invoices restricted to the principal's visible clients.
func (s *Service) List(ctx context.Context, p shared.Principal, filter ListFilter) ([]Invoice, error) {
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
		if filter.ClientID != "" && !contains(ids, filter.ClientID) {
			return nil, nil
		}
	}
	return s.repo.List(ctx, filter)
}

// Delete removes an invoice and refreshes the client total.
func (s *Service) Delete(ctx context.Context, p shared.Principal, id string) error {
	if p.Role != shared.RoleAdmin {
		return shared.ErrForbidden
	}
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.directory.RefreshTotal(ctx, inv.ClientID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "invoice.delete", Entity: "invoice", EntityID: id})
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
