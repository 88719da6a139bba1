package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/recouvra/recouvra/internal/auth"
	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/communications"
	"github.com/recouvra/recouvra/internal/documents"
	"github.com/recouvra/recouvra/internal/invoices"
	"github.com/recouvra/recouvra/internal/observability"
	"github.com/recouvra/recouvra/internal/payments"
	"github.com/recouvra/recouvra/internal/relance"
	"github.com/recouvra/recouvra/internal/reporting"
	"github.com/recouvra/recouvra/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger                *slog.Logger
	Config                *Config
	PrincipalMiddleware   func(http.Handler) http.Handler
	AuthHandler           *auth.Handler
	ClientsHandler        *clients.Handler
	InvoicesHandler       *invoices.Handler
	PaymentsHandler       *payments.Handler
	CommunicationsHandler *communications.Handler
	DocumentsHandler      *documents.Handler
	RelanceHandler        *relance.Handler
	ReportingHandler      *reporting.Handler
	JobHandler            *jobs.Handler
	Metrics               *observability.Metrics
}

// NewRouter constructs the chi.Router with Recouvra defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:    params.Logger,
		Config:    params.Config,
		Principal: params.PrincipalMiddleware,
		Metrics:   params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/clients", params.ClientsHandler.MountRoutes)
	r.Route("/invoices", params.InvoicesHandler.MountRoutes)
	r.Route("/payments", params.PaymentsHandler.MountRoutes)
	r.Route("/communications", params.CommunicationsHandler.MountRoutes)
	if params.DocumentsHandler != nil {
		r.Route("/documents", params.DocumentsHandler.MountRoutes)
	}
	r.Route("/relance", params.RelanceHandler.MountRoutes)
	r.Route("/reporting", params.ReportingHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
