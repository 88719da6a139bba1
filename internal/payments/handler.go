package payments

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/recouvra/recouvra/internal/platform/httpx"
)

// Handler manages payment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.record)
	r.Get("/{id}", h.get)
	r.Post("/{id}/settle", h.settle)
}

type createPaymentRequest struct {
	ClientID    string  `json:"client_id" validate:"required"`
	InvoiceID   *string `json:"invoice_id"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	PaymentDate string  `json:"payment_date"`
	DueDate     string  `json:"due_date"`
	Method      string  `json:"method"`
	Reference   string  `json:"reference"`
	Status      string  `json:"status" validate:"omitempty,oneof=pending completed failed scheduled"`
}

type settlePaymentRequest struct {
	Status string `json:"status" validate:"required,oneof=pending completed failed scheduled"`
}

type paymentResponse struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	InvoiceID   *string    `json:"invoice_id,omitempty"`
	Amount      float64    `json:"amount"`
	PaymentDate time.Time  `json:"payment_date"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Method      string     `json:"method,omitempty"`
	Reference   string     `json:"reference,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toPaymentResponse(payment Payment) paymentResponse {
	return paymentResponse{
		ID:          payment.ID,
		ClientID:    payment.ClientID,
		InvoiceID:   payment.InvoiceID,
		Amount:      payment.Amount,
		PaymentDate: payment.PaymentDate,
		DueDate:     payment.DueDate,
		Method:      payment.Method,
		Reference:   payment.Reference,
		Status:      payment.Status,
		CreatedAt:   payment.CreatedAt,
		UpdatedAt:   payment.UpdatedAt,
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
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]paymentResponse, 0, len(list))
	for _, payment := range list {
		out = append(out, toPaymentResponse(payment))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	payment, err := h.service.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(*payment))
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req createPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	var paymentDate time.Time
	if req.PaymentDate != "" {
		var err error
		paymentDate, err = time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "payment_date must be formatted 2006-01-02")
			return
		}
	}
	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be formatted 2006-01-02")
			return
		}
		dueDate = &parsed
	}

	payment, err := h.service.Record(r.Context(), p, CreatePaymentInput{
		ClientID:    req.ClientID,
		InvoiceID:   req.InvoiceID,
		Amount:      req.Amount,
		PaymentDate: paymentDate,
		DueDate:     dueDate,
		Method:      req.Method,
		Reference:   req.Reference,
		Status:      Status(req.Status),
	})
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(*payment))
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req settlePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Settle(r.Context(), p, id, Status(req.Status)); err != nil {
		h.logger.Error("settle payment", slog.Any("error", err), slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
