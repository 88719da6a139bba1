package invoices

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/recouvra/recouvra/internal/platform/httpx"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
}

type createInvoiceRequest struct {
	ClientID       string  `json:"client_id" validate:"required"`
	Number         string  `json:"number"`
	OriginalAmount float64 `json:"original_amount" validate:"required,gt=0"`
	PaidAmount     float64 `json:"paid_amount" validate:"gte=0"`
	IssueDate      string  `json:"issue_date"`
	DueDate        string  `json:"due_date" validate:"required"`
}

type invoiceResponse struct {
	ID             string    `json:"id"`
	ClientID       string    `json:"client_id"`
	Number         string    `json:"number"`
	Amount         float64   `json:"amount"`
	OriginalAmount float64   `json:"original_amount"`
	PaidAmount     float64   `json:"paid_amount"`
	IssueDate      time.Time `json:"issue_date"`
	DueDate        time.Time `json:"due_date"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toInvoiceResponse(inv Invoice) invoiceResponse {
	return invoiceResponse{
		ID:             inv.ID,
		ClientID:       inv.ClientID,
		Number:         inv.Number,
		Amount:         inv.Amount,
		OriginalAmount: inv.OriginalAmount,
		PaidAmount:     inv.PaidAmount,
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		Status:         inv.Status,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := ListFilter{
		ClientID: q.Get("client_id"),
		Status:   Status(q.Get("status")),
		Limit:    limit,
	}

	list, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]invoiceResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, toInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	inv, err := h.service.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(*inv))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be formatted 2006-01-02")
		return
	}
	var issueDate time.Time
	if req.IssueDate != "" {
		issueDate, err = time.Parse("2006-01-02", req.IssueDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "issue_date must be formatted 2006-01-02")
			return
		}
	}

	inv, err := h.service.Create(r.Context(), p, CreateInvoiceInput{
		ClientID:       req.ClientID,
		Number:         req.Number,
		OriginalAmount: req.OriginalAmount,
		PaidAmount:     req.PaidAmount,
		IssueDate:      issueDate,
		DueDate:        dueDate,
	})
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(*inv))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.logger.Error("delete invoice", slog.Any("error", err), slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
