package documents

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/recouvra/recouvra/internal/platform/httpx"
)

// Handler manages document endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.register)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
}

type createDocumentRequest struct {
	ClientID  string  `json:"client_id" validate:"required"`
	InvoiceID *string `json:"invoice_id"`
	Name      string  `json:"name" validate:"required"`
	Type      string  `json:"type" validate:"required,oneof=contract invoice payment_proof letter other"`
	Path      string  `json:"path" validate:"required"`
	Size      int64   `json:"size" validate:"gte=0"`
}

type documentResponse struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	InvoiceID  *string   `json:"invoice_id,omitempty"`
	Name       string    `json:"name"`
	Type       Type      `json:"type"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	UploadedBy *string   `json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toDocumentResponse(doc Document) documentResponse {
	return documentResponse{
		ID:         doc.ID,
		ClientID:   doc.ClientID,
		InvoiceID:  doc.InvoiceID,
		Name:       doc.Name,
		Type:       doc.Type,
		Path:       doc.Path,
		Size:       doc.Size,
		UploadedBy: doc.UploadedBy,
		CreatedAt:  doc.CreatedAt,
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
		h.logger.Error("list documents", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]documentResponse, 0, len(list))
	for _, doc := range list {
		out = append(out, toDocumentResponse(doc))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	doc, err := h.service.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(*doc))
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req createDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	doc, err := h.service.Register(r.Context(), p, CreateDocumentInput{
		ClientID:  req.ClientID,
		InvoiceID: req.InvoiceID,
		Name:      req.Name,
		Type:      Type(req.Type),
		Path:      req.Path,
		Size:      req.Size,
	})
	if err != nil {
		h.logger.Error("register document", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDocumentResponse(*doc))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.logger.Error("delete document", slog.Any("error", err), slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
