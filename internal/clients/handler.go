package clients

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/recouvra/recouvra/internal/platform/httpx"
)

// Handler manages client endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/status", h.changeStatus)
	r.Post("/{id}/contact", h.recordContact)
}

type createClientRequest struct {
	Name      string  `json:"name" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     string  `json:"phone"`
	Address   string  `json:"address"`
	Company   string  `json:"company"`
	ManagerID *string `json:"manager_id"`
	UserID    *string `json:"user_id"`
	Status    string  `json:"status" validate:"omitempty,oneof=blue yellow orange critical"`
}

type updateClientRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	Company   *string `json:"company"`
	ManagerID *string `json:"manager_id"`
	Status    *string `json:"status" validate:"omitempty,oneof=blue yellow orange critical"`
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=blue yellow orange critical"`
}

type clientResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Address     string     `json:"address,omitempty"`
	Company     string     `json:"company,omitempty"`
	ManagerID   *string    `json:"manager_id,omitempty"`
	UserID      *string    `json:"user_id,omitempty"`
	Status      Status     `json:"status"`
	TotalAmount float64    `json:"total_amount"`
	LastContact *time.Time `json:"last_contact,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toClientResponse(c Client) clientResponse {
	return clientResponse{
		ID:          c.ID,
		Name:        c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		Address:     c.Address,
		Company:     c.Company,
		ManagerID:   c.ManagerID,
		UserID:      c.UserID,
		Status:      c.Status,
		TotalAmount: c.TotalAmount,
		LastContact: c.LastContact,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filter := ListFilter{
		Status: Status(q.Get("status")),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	}

	list, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		h.logger.Error("list clients", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]clientResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toClientResponse(c))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClientResponse(*c))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req createClientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	c, err := h.service.Create(r.Context(), p, CreateClientInput{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Company:   req.Company,
		ManagerID: req.ManagerID,
		UserID:    req.UserID,
		Status:    Status(req.Status),
	})
	if err != nil {
		h.logger.Error("create client", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toClientResponse(*c))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req updateClientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := UpdateClientInput{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Company:   req.Company,
		ManagerID: req.ManagerID,
	}
	if req.Status != nil {
		status := Status(*req.Status)
		input.Status = &status
	}

	c, err := h.service.Update(r.Context(), p, chi.URLParam(r, "id"), input)
	if err != nil {
		h.logger.Error("update client", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClientResponse(*c))
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req changeStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.ChangeStatus(r.Context(), p, id, Status(req.Status)); err != nil {
		h.logger.Error("change client status", slog.Any("error", err), slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordContact(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req struct {
		At *time.Time `json:"at"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	at := time.Time{}
	if req.At != nil {
		at = *req.At
	}

	if err := h.service.RecordContact(r.Context(), p, chi.URLParam(r, "id"), at); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.logger.Error("delete client", slog.Any("error", err), slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
