package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/invoices"
	"github.com/recouvra/recouvra/internal/shared"
)

var (
	admin   = shared.Principal{ID: "u-admin", Role: shared.RoleAdmin}
	manager = shared.Principal{ID: "u-mgr", Role: shared.RoleManager}
)

func strptr(s string) *string { return &s }

type stubClientSource struct {
	clients []clients.Client
}

func (s *stubClientSource) List(context.Context, clients.ListFilter) ([]clients.Client, error) {
	return s.clients, nil
}

type stubInvoiceSource struct {
	invoices []invoices.Invoice
}

func (s *stubInvoiceSource) List(context.Context, invoices.ListFilter) ([]invoices.Invoice, error) {
	return s.invoices, nil
}

func newFixture(t *testing.T) (*Service, *stubClientSource, *stubInvoiceSource) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	clientSrc := &stubClientSource{clients: []clients.Client{
		{ID: "c1", Status: clients.StatusYellow, ManagerID: strptr("u-mgr")},
		{ID: "c2", Status: clients.StatusCritical, ManagerID: strptr("someone-else")},
	}}
	invoiceSrc := &stubInvoiceSource{invoices: []invoices.Invoice{
		{ClientID: "c1", OriginalAmount: 1000, PaidAmount: 400, Amount: 600,
			Status: invoices.StatusOverdue, DueDate: time.Now().AddDate(0, 0, -10)},
		{ClientID: "c2", OriginalAmount: 5000, PaidAmount: 0, Amount: 5000,
			Status: invoices.StatusOverdue, DueDate: time.Now().AddDate(0, 0, -70)},
	}}
	return NewService(clientSrc, invoiceSrc, NewCache(redisClient, time.Minute)), clientSrc, invoiceSrc
}

func TestDashboardScopesByPrincipal(t *testing.T) {
	svc, _, _ := newFixture(t)

	whole, err := svc.Dashboard(context.Background(), admin)
	require.NoError(t, err)
	require.Equal(t, 2, whole.ClientCount)
	require.Equal(t, 6000.0, whole.TotalBilled)
	require.Equal(t, 5600.0, whole.TotalOutstanding)
	require.Equal(t, 2, whole.OverdueInvoices)
	require.Equal(t, 7, whole.RecoveryRate, "400 of 6000 recovered")
	require.Equal(t, 1, whole.StatusCounts[clients.StatusCritical])

	mine, err := svc.Dashboard(context.Background(), manager)
	require.NoError(t, err)
	require.Equal(t, 1, mine.ClientCount)
	require.Equal(t, 1000.0, mine.TotalBilled, "the other portfolio never leaks in")
	require.Equal(t, 600.0, mine.TotalOutstanding)
}

func TestDashboardIsCachedUntilInvalidated(t *testing.T) {
	svc, clientSrc, _ := newFixture(t)

	first, err := svc.Dashboard(context.Background(), admin)
	require.NoError(t, err)
	require.Equal(t, 2, first.ClientCount)

	clientSrc.clients = append(clientSrc.clients, clients.Client{ID: "c3", Status: clients.StatusBlue})

	cached, err := svc.Dashboard(context.Background(), admin)
	require.NoError(t, err)
	require.Equal(t, 2, cached.ClientCount, "served from cache")

	require.ErrorIs(t, svc.Invalidate(context.Background(), manager), shared.ErrForbidden)
	require.NoError(t, svc.Invalidate(context.Background(), admin))

	fresh, err := svc.Dashboard(context.Background(), admin)
	require.NoError(t, err)
	require.Equal(t, 3, fresh.ClientCount)
}
