package communications

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/recouvra/recouvra/internal/platform/httpx"
)

// Handler manages communication endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers communication routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.record)
	r.Get("/{id}", h.get)
	r.Post("/{id}/status", h.markStatus)
}

type createCommunicationRequest struct {
	ClientID    string            `json:"client_id" validate:"required"`
	Type        string            `json:"type" validate:"required,oneof=email sms call letter meeting"`
	Subject     string            `json:"subject"`
	Content     string            `json:"content"`
	Status      string            `json:"status" validate:"omitempty,oneof=sent delivered read responded failed"`
	ScheduledAt *time.Time        `json:"scheduled_at"`
	SentAt      *time.Time        `json:"sent_at"`
	Metadata    map[string]string `json:"metadata"`
}

type markStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=sent delivered read responded failed"`
}

type communicationResponse struct {
	ID          string            `json:"id"`
	ClientID    string            `json:"client_id"`
	UserID      *string           `json:"user_id,omitempty"`
	Type        Type              `json:"type"`
	Subject     string            `json:"subject,omitempty"`
	Content     string            `json:"content,omitempty"`
	Status      Status            `json:"status"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
	SentAt      *time.Time        `json:"sent_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toCommunicationResponse(comm Communication) communicationResponse {
	return communicationResponse{
		ID:          comm.ID,
		ClientID:    comm.ClientID,
		UserID:      comm.UserID,
		Type:        comm.Type,
		Subject:     comm.Subject,
		Content:     comm.Content,
		Status:      comm.Status,
		ScheduledAt: comm.ScheduledAt,
		SentAt:      comm.SentAt,
		Metadata:    comm.Metadata,
		CreatedAt:   comm.CreatedAt,
		UpdatedAt:   comm.UpdatedAt,
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
		Type:     Type(q.Get("type")),
		Limit:    limit,
	}

	list, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		h.logger.Error("list communications", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]communicationResponse, 0, len(list))
	for _, comm := range list {
		out = append(out, toCommunicationResponse(comm))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	comm, err := h.service.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCommunicationResponse(*comm))
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req createCommunicationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	comm, err := h.service.Record(r.Context(), p, CreateCommunicationInput{
		ClientID:    req.ClientID,
		Type:        Type(req.Type),
		Subject:     req.Subject,
		Content:     req.Content,
		Status:      Status(req.Status),
		ScheduledAt: req.ScheduledAt,
		SentAt:      req.SentAt,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.logger.Error("record communication", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCommunicationResponse(*comm))
}

func (h *Handler) markStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req markStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.MarkStatus(r.Context(), p, id, Status(req.Status)); err != nil {
		h.logger.Error("mark communication status", slog.Any("error", err), slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
