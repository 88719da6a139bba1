package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/recouvra/recouvra/internal/audit"
	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/invoices"
	"github.com/recouvra/recouvra/internal/shared"
)

// RepositoryPort defines data access methods for payments. Create runs
// inside the transaction the receipt flow opens.
type RepositoryPort interface {
	Create(ctx context.Context, tx pgx.Tx, input CreatePaymentInput) (*Payment, error)
	Get(ctx context.Context, id string) (*Payment, error)
	List(ctx context.Context, filter ListFilter) ([]Payment, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// InvoiceLedger applies a received amount to an invoice inside the same
// transaction.
type InvoiceLedger interface {
	ApplyPayment(ctx context.Context, tx pgx.Tx, id string, amount float64, asOf time.Time) (*invoices.Invoice, error)
}

// ClientDirectory resolves clients for visibility checks and cached-total
// refreshes.
type ClientDirectory interface {
	Get(ctx context.Context, id string) (*clients.Client, error)
	List(ctx context.Context, filter clients.ListFilter) ([]clients.Client, error)
	RefreshTotal(ctx context.Context, id string) error
}

// TxRunner executes a function within a database transaction. Tests swap in
// a runner that passes a nil transaction straight through.
type TxRunner func(ctx context.Context, fn func(pgx.Tx) error) error

// Service handles payment business logic.
type Service struct {
	repo      RepositoryPort
	ledger    InvoiceLedger
	directory ClientDirectory
	runTx     TxRunner
	audit     audit.Recorder
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, ledger InvoiceLedger, directory ClientDirectory, runTx TxRunner, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Noop{}
	}
	return &Service{repo: repo, ledger: ledger, directory: directory, runTx: runTx, audit: recorder, now: time.Now}
}

// Record registers a payment. A completed payment against an invoice also
// moves the invoice's paid_amount and re-derives its status, in one
// transaction, then refreshes the client's cached outstanding total.
func (s *Service) Record(ctx context.Context, p shared.Principal, input CreatePaymentInput) (*Payment, error) {
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

	var payment *Payment
	err = s.runTx(ctx, func(tx pgx.Tx) error {
		created, err := s.repo.Create(ctx, tx, input)
		if err != nil {
			return err
		}
		if created.Status == StatusCompleted && created.InvoiceID != nil {
			if _, err := s.ledger.ApplyPayment(ctx, tx, *created.InvoiceID, created.Amount, s.now()); err != nil {
				return err
			}
		}
		payment = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.directory.RefreshTotal(ctx, payment.ClientID); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "payment.record", Entity: "payment", EntityID: payment.ID})
	return payment, nil
}

// Get returns a payment when its client is visible to the principal.
func (s *Service) Get(ctx context.Context, p shared.Principal, id string) (*Payment, error) {
	payment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	client, err := s.directory.Get(ctx, payment.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.VisibleTo(p) {
		return nil, ErrNotFound
	}
	return payment, nil
}

// List enumerates payments restricted to the principal's visible clients.
func (s *Service) List(ctx context.Context, p shared.Principal, filter ListFilter) ([]Payment, error) {
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

// Settle moves a scheduled or pending payment to its final status. Settling
// to completed runs the same receipt flow as Record: the amount lands on the
// linked invoice in one transaction and the client's cached total is
// refreshed afterwards.
func (s *Service) Settle(ctx context.Context, p shared.Principal, id string, status Status) error {
	if p.Role != shared.RoleAdmin && p.Role != shared.RoleManager {
		return shared.ErrForbidden
	}
	if !status.Valid() {
		return fmt.Errorf("%w: payments: invalid status %q", shared.ErrValidation, status)
	}
	payment, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	applies := status == StatusCompleted && payment.Status != StatusCompleted && payment.InvoiceID != nil
	err = s.runTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		if applies {
			if _, err := s.ledger.ApplyPayment(ctx, tx, *payment.InvoiceID, payment.Amount, s.now()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.directory.RefreshTotal(ctx, payment.ClientID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "payment.settle", Entity: "payment", EntityID: id, Detail: string(status)})
	return nil
}
