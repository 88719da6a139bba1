package payments

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/invoices"
	"github.com/recouvra/recouvra/internal/shared"
)

var (
	admin   = shared.Principal{ID: "u-admin", Role: shared.RoleAdmin}
	manager = shared.Principal{ID: "u-mgr", Role: shared.RoleManager}
	debtor  = shared.Principal{ID: "u-client", Role: shared.RoleClient}
)

func strptr(s string) *string { return &s }

// passthroughTx runs the function with no real transaction.
func passthroughTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return fn(nil)
}

type memoryPaymentRepo struct {
	payments map[string]*Payment
	nextID   int
}

func newMemoryPaymentRepo() *memoryPaymentRepo {
	return &memoryPaymentRepo{payments: make(map[string]*Payment)}
}

func (r *memoryPaymentRepo) Create(_ context.Context, _ pgx.Tx, input CreatePaymentInput) (*Payment, error) {
	r.nextID++
	status := input.Status
	if status == "" {
		status = StatusCompleted
	}
	p := &Payment{
		ID:          "p" + strconv.Itoa(r.nextID),
		ClientID:    input.ClientID,
		InvoiceID:   input.InvoiceID,
		Amount:      input.Amount,
		PaymentDate: input.PaymentDate,
		Status:      status,
	}
	r.payments[p.ID] = p
	return p, nil
}

func (r *memoryPaymentRepo) Get(_ context.Context, id string) (*Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (r *memoryPaymentRepo) List(_ context.Context, filter ListFilter) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if filter.ClientID != "" && p.ClientID != filter.ClientID {
			continue
		}
		if len(filter.ClientIDs) > 0 && !containsID(filter.ClientIDs, p.ClientID) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *memoryPaymentRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	p, ok := r.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type memoryLedger struct {
	applied map[string]float64
}

func (l *memoryLedger) ApplyPayment(_ context.Context, _ pgx.Tx, id string, amount float64, _ time.Time) (*invoices.Invoice, error) {
	if l.applied == nil {
		l.applied = make(map[string]float64)
	}
	l.applied[id] += amount
	return &invoices.Invoice{ID: id, PaidAmount: l.applied[id]}, nil
}

type memoryDirectory struct {
	clients   map[string]*clients.Client
	refreshed []string
}

func newMemoryDirectory(cs ...clients.Client) *memoryDirectory {
	d := &memoryDirectory{clients: make(map[string]*clients.Client)}
	for i := range cs {
		d.clients[cs[i].ID] = &cs[i]
	}
	return d
}

func (d *memoryDirectory) Get(_ context.Context, id string) (*clients.Client, error) {
	c, ok := d.clients[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	return c, nil
}

func (d *memoryDirectory) List(context.Context, clients.ListFilter) ([]clients.Client, error) {
	var out []clients.Client
	for _, c := range d.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (d *memoryDirectory) RefreshTotal(_ context.Context, id string) error {
	d.refreshed = append(d.refreshed, id)
	return nil
}

func newPaymentService(repo RepositoryPort, ledger InvoiceLedger, dir ClientDirectory) *Service {
	return NewService(repo, ledger, dir, passthroughTx, nil)
}

func TestRecordCompletedPaymentAppliesToInvoice(t *testing.T) {
	dir := newMemoryDirectory(clients.Client{ID: "c1", ManagerID: strptr("u-mgr")})
	ledger := &memoryLedger{}
	svc := newPaymentService(newMemoryPaymentRepo(), ledger, dir)

	p, err := svc.Record(context.Background(), manager, CreatePaymentInput{
		ClientID:  "c1",
		InvoiceID: strptr("i1"),
		Amount:    300,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, p.Status, "payments default to completed")
	require.Equal(t, 300.0, ledger.applied["i1"])
	require.Equal(t, []string{"c1"}, dir.refreshed)
}

func TestRecordScheduledPaymentDoesNotTouchInvoice(t *testing.T) {
	dir := newMemoryDirectory(clients.Client{ID: "c1"})
	ledger := &memoryLedger{}
	svc := newPaymentService(newMemoryPaymentRepo(), ledger, dir)

	p, err := svc.Record(context.Background(), admin, CreatePaymentInput{
		ClientID:  "c1",
		InvoiceID: strptr("i1"),
		Amount:    300,
		Status:    StatusScheduled,
	})
	require.NoError(t, err)
	require.Equal(t, StatusScheduled, p.Status)
	require.Empty(t, ledger.applied, "only completed payments move the invoice ledger")
}

func TestRecordWithoutInvoiceSkipsLedger(t *testing.T) {
	dir := newMemoryDirectory(clients.Client{ID: "c1"})
	ledger := &memoryLedger{}
	svc := newPaymentService(newMemoryPaymentRepo(), ledger, dir)

	_, err := svc.Record(context.Background(), admin, CreatePaymentInput{ClientID: "c1", Amount: 50})
	require.NoError(t, err)
	require.Empty(t, ledger.applied)
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	dir := newMemoryDirectory(clients.Client{ID: "c1"})
	svc := newPaymentService(newMemoryPaymentRepo(), &memoryLedger{}, dir)

	_, err := svc.Record(context.Background(), admin, CreatePaymentInput{ClientID: "c1", Amount: 0})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Record(context.Background(), debtor, CreatePaymentInput{ClientID: "c1", Amount: 10})
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Record(context.Background(), admin, CreatePaymentInput{ClientID: "c1", Amount: 10, Status: "bounced"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordInvisibleClientReadsAsNotFound(t *testing.T) {
	dir := newMemoryDirectory(clients.Client{ID: "c1", ManagerID: strptr("someone-else")})
	svc := newPaymentService(newMemoryPaymentRepo(), &memoryLedger{}, dir)

	_, err := svc.Record(context.Background(), manager, CreatePaymentInput{ClientID: "c1", Amount: 10})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListScopesToVisibleClients(t *testing.T) {
	dir := newMemoryDirectory(
		clients.Client{ID: "c1", ManagerID: strptr("u-mgr")},
		clients.Client{ID: "c2", ManagerID: strptr("someone-else")},
	)
	repo := newMemoryPaymentRepo()
	svc := newPaymentService(repo, &memoryLedger{}, dir)

	_, err := svc.Record(context.Background(), admin, CreatePaymentInput{ClientID: "c1", Amount: 10})
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), admin, CreatePaymentInput{ClientID: "c2", Amount: 20})
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), manager, ListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "c1", mine[0].ClientID)
}

func TestSettle(t *testing.T) {
	dir := newMemoryDirectory(clients.Client{ID: "c1", ManagerID: strptr("u-mgr")})
	repo := newMemoryPaymentRepo()
	svc := newPaymentService(repo, &memoryLedger{}, dir)

	p, err := svc.Record(context.Background(), manager, CreatePaymentInput{ClientID: "c1", Amount: 10, Status: StatusScheduled})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Settle(context.Background(), manager, p.ID, "bounced"), shared.ErrValidation)
	require.NoError(t, svc.Settle(context.Background(), manager, p.ID, StatusCompleted))
	require.Equal(t, StatusCompleted, repo.payments[p.ID].Status)
}

func TestSettleCompletedAppliesToInvoice(t *testing.T) {
	dir := newMemoryDirectory(clients.Client{ID: "c1", ManagerID: strptr("u-mgr")})
	ledger := &memoryLedger{}
	repo := newMemoryPaymentRepo()
	svc := newPaymentService(repo, ledger, dir)

	p, err := svc.Record(context.Background(), manager, CreatePaymentInput{
		ClientID:  "c1",
		InvoiceID: strptr("i1"),
		Amount:    300,
		Status:    StatusScheduled,
	})
	require.NoError(t, err)
	require.Empty(t, ledger.applied, "nothing lands on the invoice while scheduled")

	require.NoError(t, svc.Settle(context.Background(), manager, p.ID, StatusCompleted))
	require.Equal(t, 300.0, ledger.applied["i1"], "settling moves the amount onto the invoice")
	require.Contains(t, dir.refreshed, "c1")

	// Settling an already completed payment must not apply twice.
	require.NoError(t, svc.Settle(context.Background(), manager, p.ID, StatusCompleted))
	require.Equal(t, 300.0, ledger.applied["i1"])
}

func TestSettleFailedLeavesInvoiceAlone(t *testing.T) {
	dir := newMemoryDirectory(clients.Client{ID: "c1", ManagerID: strptr("u-mgr")})
	ledger := &memoryLedger{}
	svc := newPaymentService(newMemoryPaymentRepo(), ledger, dir)

	p, err := svc.Record(context.Background(), manager, CreatePaymentInput{
		ClientID:  "c1",
		InvoiceID: strptr("i1"),
		Amount:    300,
		Status:    StatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Settle(context.Background(), manager, p.ID, StatusFailed))
	require.Empty(t, ledger.applied)
}
