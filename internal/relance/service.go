package relance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/recouvra/recouvra/internal/audit"
	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/communications"
	"github.com/recouvra/recouvra/internal/invoices"
	"github.com/recouvra/recouvra/internal/shared"
)

// RuleStore defines data access methods for rules and templates.
type RuleStore interface {
	InsertRule(ctx context.Context, input CreateRuleInput) (*Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)
	ListActiveRules(ctx context.Context) ([]Rule, error)
	SetRuleActive(ctx context.Context, id string, active bool) error
	DeleteRule(ctx context.Context, id string) error
	InsertTemplate(ctx context.Context, input CreateTemplateInput) (*Template, error)
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplates(ctx context.Context) ([]Template, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// ClientSource reads and writes the client side of an evaluation.
type ClientSource interface {
	List(ctx context.Context, filter clients.ListFilter) ([]clients.Client, error)
	UpdateStatus(ctx context.Context, id string, status clients.Status) error
	TouchLastContact(ctx context.Context, id string, at time.Time) error
}

// InvoiceSource reads the unpaid invoice snapshot.
type InvoiceSource interface {
	ListUnpaid(ctx context.Context) ([]invoices.Invoice, error)
	RefreshStatuses(ctx context.Context, asOf time.Time) (int64, error)
}

// CommunicationSink records the communications an evaluation produces and
// answers the duplicate-send guard.
type CommunicationSink interface {
	Create(ctx context.Context, input CreateCommunicationInput) (*communications.Communication, error)
	HasRuleCommunication(ctx context.Context, clientID, ruleID string, since time.Time) (bool, error)
}

// CreateCommunicationInput aliases the communications input type for the
// sink port.
type CreateCommunicationInput = communications.CreateCommunicationInput

// ScanReport summarises one evaluation pass.
type ScanReport struct {
	Evaluated     int `json:"evaluated"`
	StatusChanges int `json:"status_changes"`
	Dispatched    int `json:"dispatched"`
	Escalated     int `json:"escalated"`
	Skipped       int `json:"skipped"`
	Failures      int `json:"failures"`
}

// Service coordinates rule management and escalation runs. The decision
// logic stays in Decide; this layer owns the side effects.
type Service struct {
	store      RuleStore
	clientSrc  ClientSource
	invoiceSrc InvoiceSource
	comms      CommunicationSink
	dispatcher communications.Dispatcher
	audit      audit.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewService builds Service instance.
func NewService(store RuleStore, clientSrc ClientSource, invoiceSrc InvoiceSource, comms CommunicationSink, dispatcher communications.Dispatcher, recorder audit.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = audit.Noop{}
	}
	return &Service{
		store:      store,
		clientSrc:  clientSrc,
		invoiceSrc: invoiceSrc,
		comms:      comms,
		dispatcher: dispatcher,
		audit:      recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateRule validates and stores a rule.
func (s *Service) CreateRule(ctx context.Context, p shared.Principal, input CreateRuleInput) (*Rule, error) {
	if p.Role != shared.RoleAdmin {
		return nil, shared.ErrForbidden
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	if input.TemplateID != nil {
		if _, err := s.store.GetTemplate(ctx, *input.TemplateID); err != nil {
			return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
		}
	}
	rule, err := s.store.InsertRule(ctx, input)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "relance.rule_create", Entity: "relance_rule", EntityID: rule.ID})
	return rule, nil
}

// ListRules enumerates every rule.
func (s *Service) ListRules(ctx context.Context, p shared.Principal) ([]Rule, error) {
	if p.Role != shared.RoleAdmin && p.Role != shared.RoleManager {
		return nil, shared.ErrForbidden
	}
	return s.store.ListRules(ctx)
}

// SetRuleActive toggles a rule.
func (s *Service) SetRuleActive(ctx context.Context, p shared.Principal, id string, active bool) error {
	if p.Role != shared.RoleAdmin {
		return shared.ErrForbidden
	}
	return s.store.SetRuleActive(ctx, id, active)
}

// DeleteRule removes a rule.
func (s *Service) DeleteRule(ctx context.Context, p shared.Principal, id string) error {
	if p.Role != shared.RoleAdmin {
		return shared.ErrForbidden
	}
	return s.store.DeleteRule(ctx, id)
}

// CreateTemplate validates and stores a template.
func (s *Service) CreateTemplate(ctx context.Context, p shared.Principal, input CreateTemplateInput) (*Template, error) {
	if p.Role != shared.RoleAdmin {
		return nil, shared.ErrForbidden
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	tpl, err := s.store.InsertTemplate(ctx, input)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{ActorID: p.ID, Action: "relance.template_create", Entity: "relance_template", EntityID: tpl.ID})
	return tpl, nil
}

// ListTemplates enumerates templates.
func (s *Service) ListTemplates(ctx context.Context, p shared.Principal) ([]Template, error) {
	if p.Role != shared.RoleAdmin && p.Role != shared.RoleManager {
		return nil, shared.ErrForbidden
	}
	return s.store.ListTemplates(ctx)
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, p shared.Principal, id string) error {
	if p.Role != shared.RoleAdmin {
		return shared.ErrForbidden
	}
	return s.store.DeleteTemplate(ctx, id)
}

// RunScan evaluates every client against the active rules and applies the
// resulting decisions. Safe to invoke repeatedly: status writes are skipped
// when nothing changed and message sends are deduplicated per rule within
// the satisfaction window.
func (s *Service) RunScan(ctx context.Context, asOf time.Time) (ScanReport, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	var report ScanReport

	// Roll pending invoices past their due date to overdue first, so the
	// snapshot the engine sees is internally consistent.
	if _, err := s.invoiceSrc.RefreshStatuses(ctx, asOf); err != nil {
		return report, err
	}

	clientList, err := s.clientSrc.List(ctx, clients.ListFilter{})
	if err != nil {
		return report, err
	}
	unpaid, err := s.invoiceSrc.ListUnpaid(ctx)
	if err != nil {
		return report, err
	}
	rules, err := s.store.ListActiveRules(ctx)
	if err != nil {
		return report, err
	}

	byClient := make(map[string][]invoices.Invoice, len(clientList))
	for _, inv := range unpaid {
		byClient[inv.ClientID] = append(byClient[inv.ClientID], inv)
	}

	for _, client := range clientList {
		report.Evaluated++
		if err := s.evaluate(ctx, client, byClient[client.ID], rules, asOf, &report); err != nil {
			// One bad rule or client must not block the rest of the run.
			report.Failures++
			if s.logger != nil {
				s.logger.Error("relance evaluate",
					slog.String("client_id", client.ID),
					slog.Any("error", err))
			}
		}
	}
	return report, nil
}

// EvaluateClient runs the engine for a single client, for the preview
// endpoint. No side effects.
func (s *Service) EvaluateClient(ctx context.Context, p shared.Principal, clientID string, asOf time.Time) (Decision, error) {
	if p.Role != shared.RoleAdmin && p.Role != shared.RoleManager {
		return Decision{}, shared.ErrForbidden
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	clientList, err := s.clientSrc.List(ctx, clients.ListFilter{})
	if err != nil {
		return Decision{}, err
	}
	var client *clients.Client
	for i := range clientList {
		if clientList[i].ID == clientID {
			client = &clientList[i]
			break
		}
	}
	if client == nil || !client.VisibleTo(p) {
		return Decision{}, clients.ErrNotFound
	}
	unpaid, err := s.invoiceSrc.ListUnpaid(ctx)
	if err != nil {
		return Decision{}, err
	}
	var invs []invoices.Invoice
	for _, inv := range unpaid {
		if inv.ClientID == clientID {
			invs = append(invs, inv)
		}
	}
	rules, err := s.store.ListActiveRules(ctx)
	if err != nil {
		return Decision{}, err
	}
	return Decide(*client, invs, rules, asOf)
}

func (s *Service) evaluate(ctx context.Context, client clients.Client, invs []invoices.Invoice, rules []Rule, asOf time.Time, report *ScanReport) error {
	decision, err := Decide(client, invs, rules, asOf)
	if err != nil {
		return err
	}
	if decision.Rule == nil {
		return nil
	}

	switch decision.Rule.Action {
	case ActionStatusChange:
		if decision.NewStatus == nil {
			report.Skipped++
			return nil
		}
		if err := s.clientSrc.UpdateStatus(ctx, client.ID, *decision.NewStatus); err != nil {
			return err
		}
		report.StatusChanges++
		s.audit.Record(ctx, audit.Entry{
			Action: "relance.status_change", Entity: "client", EntityID: client.ID,
			Detail: string(client.Status) + " -> " + string(*decision.NewStatus),
		})
		return nil

	case ActionEmail, ActionSMS:
		return s.sendMessage(ctx, client, invs, decision, asOf, report)

	case ActionEscalate:
		// No concrete effect is defined for escalate; surface it for human
		// review and move on.
		report.Escalated++
		s.audit.Record(ctx, audit.Entry{
			Action: "relance.escalate", Entity: "client", EntityID: client.ID,
			Detail: fmt.Sprintf("rule %s, age signal %d days", decision.Rule.ID, decision.AgeSignal),
		})
		return nil
	}
	return nil
}

func (s *Service) sendMessage(ctx context.Context, client clients.Client, invs []invoices.Invoice, decision Decision, asOf time.Time, report *ScanReport) error {
	rule := decision.Rule
	if rule.TemplateID == nil {
		report.Skipped++
		if s.logger != nil {
			s.logger.Warn("relance rule has no template", slog.String("rule_id", rule.ID))
		}
		return nil
	}

	since := decision.SatisfiedSince(asOf)
	already, err := s.comms.HasRuleCommunication(ctx, client.ID, rule.ID, since)
	if err != nil {
		return err
	}
	if already {
		report.Skipped++
		return nil
	}

	tpl, err := s.store.GetTemplate(ctx, *rule.TemplateID)
	if err != nil {
		// A dangling template reference is a configuration error, not a
		// reason to abort the scan.
		if errors.Is(err, ErrTemplateNotFound) {
			report.Skipped++
			if s.logger != nil {
				s.logger.Warn("relance template missing",
					slog.String("rule_id", rule.ID),
					slog.String("template_id", *rule.TemplateID))
			}
			return nil
		}
		return err
	}

	vars := TemplateContext(client, invs, asOf)
	channel := communications.TypeEmail
	to := client.Email
	if rule.Action == ActionSMS {
		channel = communications.TypeSMS
		to = client.Phone
	}
	msg := communications.Message{
		ClientID:   client.ID,
		Channel:    channel,
		To:         to,
		Subject:    Render(tpl.Subject, vars),
		Body:       Render(tpl.Content, vars),
		TemplateID: tpl.ID,
	}

	status := communications.StatusSent
	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		status = communications.StatusFailed
		report.Failures++
		if s.logger != nil {
			s.logger.Error("relance dispatch",
				slog.String("client_id", client.ID),
				slog.String("rule_id", rule.ID),
				slog.Any("error", err))
		}
	} else {
		report.Dispatched++
	}

	sentAt := asOf
	_, err = s.comms.Create(ctx, CreateCommunicationInput{
		ClientID: client.ID,
		Type:     channel,
		Subject:  msg.Subject,
		Content:  msg.Body,
		Status:   status,
		SentAt:   &sentAt,
		Metadata: map[string]string{
			communications.MetadataRuleID: rule.ID,
			"template_id":                 tpl.ID,
		},
	})
	if err != nil {
		return err
	}
	if status == communications.StatusSent {
		if err := s.clientSrc.TouchLastContact(ctx, client.ID, sentAt); err != nil {
			return err
		}
	}
	return nil
}
