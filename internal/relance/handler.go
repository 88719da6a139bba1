package relance

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/communications"
	"github.com/recouvra/recouvra/internal/platform/httpx"
	"github.com/recouvra/recouvra/internal/shared"
)

// ScheduleFunc queues a scan for background execution. When nil the handler
// runs the scan inline and returns the report.
type ScheduleFunc func(ctx context.Context, asOf time.Time) error

// Handler manages rule, template and scan endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	schedule ScheduleFunc
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, schedule ScheduleFunc) *Handler {
	return &Handler{logger: logger, service: service, schedule: schedule, validate: validator.New()}
}

// MountRoutes registers relance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rules", h.listRules)
	r.Post("/rules", h.createRule)
	r.Post("/rules/{id}/active", h.setRuleActive)
	r.Delete("/rules/{id}", h.deleteRule)

	r.Get("/templates", h.listTemplates)
	r.Post("/templates", h.createTemplate)
	r.Delete("/templates/{id}", h.deleteTemplate)

	r.Post("/scan", h.triggerScan)
	r.Get("/clients/{id}/preview", h.previewClient)
}

type createRuleRequest struct {
	Name        string  `json:"name" validate:"required"`
	TriggerDays int     `json:"trigger_days" validate:"gte=0"`
	Action      string  `json:"action" validate:"required,oneof=email sms status_change escalate"`
	TemplateID  *string `json:"template_id"`
	NewStatus   *string `json:"new_status" validate:"omitempty,oneof=blue yellow orange critical"`
	IsActive    bool    `json:"is_active"`
}

type setRuleActiveRequest struct {
	Active bool `json:"active"`
}

type createTemplateRequest struct {
	Name      string   `json:"name" validate:"required"`
	Type      string   `json:"type" validate:"required,oneof=email sms letter"`
	Subject   string   `json:"subject"`
	Content   string   `json:"content" validate:"required"`
	Variables []string `json:"variables"`
}

type triggerScanRequest struct {
	AsOf *time.Time `json:"as_of"`
}

type ruleResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	TriggerDays int             `json:"trigger_days"`
	Action      Action          `json:"action"`
	TemplateID  *string         `json:"template_id,omitempty"`
	NewStatus   *clients.Status `json:"new_status,omitempty"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toRuleResponse(rule Rule) ruleResponse {
	return ruleResponse{
		ID:          rule.ID,
		Name:        rule.Name,
		TriggerDays: rule.TriggerDays,
		Action:      rule.Action,
		TemplateID:  rule.TemplateID,
		NewStatus:   rule.NewStatus,
		IsActive:    rule.IsActive,
		CreatedAt:   rule.CreatedAt,
		UpdatedAt:   rule.UpdatedAt,
	}
}

type templateResponse struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Type      communications.Type `json:"type"`
	Subject   string              `json:"subject,omitempty"`
	Content   string              `json:"content"`
	Variables []string            `json:"variables,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func toTemplateResponse(tpl Template) templateResponse {
	return templateResponse{
		ID:        tpl.ID,
		Name:      tpl.Name,
		Type:      tpl.Type,
		Subject:   tpl.Subject,
		Content:   tpl.Content,
		Variables: tpl.Variables,
		CreatedAt: tpl.CreatedAt,
		UpdatedAt: tpl.UpdatedAt,
	}
}

type decisionResponse struct {
	ClientID  string          `json:"client_id"`
	AgeSignal int             `json:"age_signal"`
	Rule      *ruleResponse   `json:"rule,omitempty"`
	NewStatus *clients.Status `json:"new_status,omitempty"`
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	rules, err := h.service.ListRules(r.Context(), p)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req createRuleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateRuleInput{
		Name:        req.Name,
		TriggerDays: req.TriggerDays,
		Action:      Action(req.Action),
		TemplateID:  req.TemplateID,
		IsActive:    req.IsActive,
	}
	if req.NewStatus != nil {
		status := clients.Status(*req.NewStatus)
		input.NewStatus = &status
	}

	rule, err := h.service.CreateRule(r.Context(), p, input)
	if err != nil {
		h.logger.Error("create rule", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRuleResponse(*rule))
}

func (h *Handler) setRuleActive(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req setRuleActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.SetRuleActive(r.Context(), p, id, req.Active); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteRule(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	templates, err := h.service.ListTemplates(r.Context(), p)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, toTemplateResponse(tpl))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	var req createTemplateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	tpl, err := h.service.CreateTemplate(r.Context(), p, CreateTemplateInput{
		Name:      req.Name,
		Type:      communications.Type(req.Type),
		Subject:   req.Subject,
		Content:   req.Content,
		Variables: req.Variables,
	})
	if err != nil {
		h.logger.Error("create template", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTemplateResponse(*tpl))
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTemplate(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// triggerScan starts an escalation scan. With a scheduler configured the
// scan is queued; otherwise it runs inline and the report is returned.
func (h *Handler) triggerScan(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}
	if p.Role != shared.RoleAdmin {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}

	var req triggerScanRequest
	_ = httpx.DecodeJSON(r, &req)
	var asOf time.Time
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	if h.schedule != nil {
		if err := h.schedule(r.Context(), asOf); err != nil {
			h.logger.Error("schedule scan", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	report, err := h.service.RunScan(r.Context(), asOf)
	if err != nil {
		h.logger.Error("run scan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// previewClient reports what the engine would decide for one client,
// without side effects.
func (h *Handler) previewClient(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.Principal(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	decision, err := h.service.EvaluateClient(r.Context(), p, id, time.Time{})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	out := decisionResponse{
		ClientID:  decision.ClientID,
		AgeSignal: decision.AgeSignal,
		NewStatus: decision.NewStatus,
	}
	if decision.Rule != nil {
		rule := toRuleResponse(*decision.Rule)
		out.Rule = &rule
	}
	httpx.JSON(w, http.StatusOK, out)
}
