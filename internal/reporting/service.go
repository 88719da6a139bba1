// Package reporting aggregates the portfolio into dashboard figures, cached
// in Redis and scoped to what the requesting principal may see.
package reporting

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/invoices"
	"github.com/recouvra/recouvra/internal/metrics"
	"github.com/recouvra/recouvra/internal/scope"
	"github.com/recouvra/recouvra/internal/shared"
)

// ClientSource lists clients for scoping.
type ClientSource interface {
	List(ctx context.Context, filter clients.ListFilter) ([]clients.Client, error)
}

// InvoiceSource lists invoices for aggregation.
type InvoiceSource interface {
	List(ctx context.Context, filter invoices.ListFilter) ([]invoices.Invoice, error)
}

// Dashboard is the aggregate view over the principal's visible portfolio.
type Dashboard struct {
	ClientCount      int                    `json:"client_count"`
	StatusCounts     map[clients.Status]int `json:"status_counts"`
	TotalOutstanding float64                `json:"total_outstanding"`
	TotalBilled      float64                `json:"total_billed"`
	TotalPaid        float64                `json:"total_paid"`
	RecoveryRate     int                    `json:"recovery_rate"`
	OverdueInvoices  int                    `json:"overdue_invoices"`
	Aging            metrics.AgingBuckets   `json:"aging"`
	DSO              float64                `json:"dso"`
	GeneratedAt      time.Time              `json:"generated_at"`
}

// Service computes dashboards.
type Service struct {
	clientSrc  ClientSource
	invoiceSrc InvoiceSource
	cache      *Cache
	now        func() time.Time
}

// NewService builds Service instance.
func NewService(clientSrc ClientSource, invoiceSrc InvoiceSource, cache *Cache) *Service {
	return &Service{clientSrc: clientSrc, invoiceSrc: invoiceSrc, cache: cache, now: time.Now}
}

// Dashboard returns the aggregate view for the principal, from cache when
// fresh. Cache keys carry the principal so one role's numbers never leak
// into another's.
func (s *Service) Dashboard(ctx context.Context, p shared.Principal) (Dashboard, error) {
	var out Dashboard
	key, err := s.cache.BuildKey(ctx, keyDashboard(string(p.Role)+":"+p.ID))
	if err != nil {
		return out, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.compute(ctx, p)
	})
	return out, err
}

// Invalidate bumps the cache version after bulk mutations.
func (s *Service) Invalidate(ctx context.Context, p shared.Principal) error {
	if p.Role != shared.RoleAdmin {
		return shared.ErrForbidden
	}
	return s.cache.Bump(ctx)
}

func (s *Service) compute(ctx context.Context, p shared.Principal) (Dashboard, error) {
	asOf := s.now()
	dashboard := Dashboard{
		StatusCounts: make(map[clients.Status]int),
		GeneratedAt:  asOf,
	}

	var (
		clientList []clients.Client
		all        []invoices.Invoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clientList, err = s.clientSrc.List(gctx, clients.ListFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		all, err = s.invoiceSrc.List(gctx, invoices.ListFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return dashboard, err
	}

	visibleClients := scope.Clients(p, clientList)
	visible := make(map[string]bool, len(visibleClients))
	for _, c := range visibleClients {
		visible[c.ID] = true
		dashboard.ClientCount++
		dashboard.StatusCounts[c.Status]++
	}
	var scoped []invoices.Invoice
	for _, inv := range all {
		if visible[inv.ClientID] {
			scoped = append(scoped, inv)
		}
	}

	for _, inv := range scoped {
		dashboard.TotalBilled += inv.OriginalAmount
		dashboard.TotalPaid += inv.PaidAmount
		if inv.Status == invoices.StatusOverdue {
			dashboard.OverdueInvoices++
		}
	}
	dashboard.TotalOutstanding = metrics.ClientTotalOutstanding(scoped)
	dashboard.RecoveryRate = metrics.RecoveryRate(dashboard.TotalBilled, dashboard.TotalPaid)
	dashboard.Aging = metrics.Aging(scoped, asOf)
	dashboard.DSO = metrics.DSO(scoped, 90)
	return dashboard, nil
}
