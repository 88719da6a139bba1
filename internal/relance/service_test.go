package relance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recouvra/recouvra/internal/audit"
	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/communications"
	"github.com/recouvra/recouvra/internal/invoices"
)

type memoryRuleStore struct {
	rules     []Rule
	templates map[string]Template
}

func (s *memoryRuleStore) InsertRule(_ context.Context, input CreateRuleInput) (*Rule, error) {
	rule := Rule{
		ID:          "rule-" + input.Name,
		Name:        input.Name,
		TriggerDays: input.TriggerDays,
		Action:      input.Action,
		TemplateID:  input.TemplateID,
		NewStatus:   input.NewStatus,
		IsActive:    input.IsActive,
	}
	s.rules = append(s.rules, rule)
	return &rule, nil
}

func (s *memoryRuleStore) ListRules(context.Context) ([]Rule, error) { return s.rules, nil }

func (s *memoryRuleStore) ListActiveRules(context.Context) ([]Rule, error) {
	var active []Rule
	for _, r := range s.rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *memoryRuleStore) SetRuleActive(_ context.Context, id string, active bool) error {
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules[i].IsActive = active
			return nil
		}
	}
	return ErrRuleNotFound
}

func (s *memoryRuleStore) DeleteRule(_ context.Context, id string) error {
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return ErrRuleNotFound
}

func (s *memoryRuleStore) InsertTemplate(_ context.Context, input CreateTemplateInput) (*Template, error) {
	tpl := Template{ID: "tpl-" + input.Name, Name: input.Name, Type: input.Type,
		Subject: input.Subject, Content: input.Content, Variables: input.Variables}
	if s.templates == nil {
		s.templates = make(map[string]Template)
	}
	s.templates[tpl.ID] = tpl
	return &tpl, nil
}

func (s *memoryRuleStore) GetTemplate(_ context.Context, id string) (*Template, error) {
	tpl, ok := s.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &tpl, nil
}

func (s *memoryRuleStore) ListTemplates(context.Context) ([]Template, error) {
	var out []Template
	for _, tpl := range s.templates {
		out = append(out, tpl)
	}
	return out, nil
}

func (s *memoryRuleStore) DeleteTemplate(_ context.Context, id string) error {
	if _, ok := s.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	delete(s.templates, id)
	return nil
}

type memoryClientSource struct {
	clients     []clients.Client
	lastContact map[string]time.Time
}

func (s *memoryClientSource) List(context.Context, clients.ListFilter) ([]clients.Client, error) {
	return s.clients, nil
}

func (s *memoryClientSource) UpdateStatus(_ context.Context, id string, status clients.Status) error {
	for i := range s.clients {
		if s.clients[i].ID == id {
			s.clients[i].Status = status
			return nil
		}
	}
	return clients.ErrNotFound
}

func (s *memoryClientSource) TouchLastContact(_ context.Context, id string, at time.Time) error {
	if s.lastContact == nil {
		s.lastContact = make(map[string]time.Time)
	}
	s.lastContact[id] = at
	return nil
}

type memoryInvoiceSource struct {
	unpaid []invoices.Invoice
}

func (s *memoryInvoiceSource) ListUnpaid(context.Context) ([]invoices.Invoice, error) {
	return s.unpaid, nil
}

func (s *memoryInvoiceSource) RefreshStatuses(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type memoryCommSink struct {
	created []communications.Communication
}

func (s *memoryCommSink) Create(_ context.Context, input CreateCommunicationInput) (*communications.Communication, error) {
	c := communications.Communication{
		ID:       "comm-" + input.ClientID,
		ClientID: input.ClientID,
		Type:     input.Type,
		Subject:  input.Subject,
		Content:  input.Content,
		Status:   input.Status,
		SentAt:   input.SentAt,
		Metadata: input.Metadata,
	}
	if input.SentAt != nil {
		c.CreatedAt = *input.SentAt
	} else {
		c.CreatedAt = time.Now()
	}
	s.created = append(s.created, c)
	return &c, nil
}

func (s *memoryCommSink) HasRuleCommunication(_ context.Context, clientID, ruleID string, since time.Time) (bool, error) {
	for _, c := range s.created {
		if c.ClientID == clientID && c.Metadata[communications.MetadataRuleID] == ruleID && !c.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type recordingDispatcher struct {
	sent []communications.Message
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg communications.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	return nil
}

type recordingAudit struct {
	entries []audit.Entry
}

func (a *recordingAudit) Record(_ context.Context, entry audit.Entry) {
	a.entries = append(a.entries, entry)
}

type scanFixture struct {
	store      *memoryRuleStore
	clientSrc  *memoryClientSource
	invoiceSrc *memoryInvoiceSource
	comms      *memoryCommSink
	dispatcher *recordingDispatcher
	audit      *recordingAudit
	service    *Service
}

func newScanFixture() *scanFixture {
	f := &scanFixture{
		store:      &memoryRuleStore{templates: make(map[string]Template)},
		clientSrc:  &memoryClientSource{},
		invoiceSrc: &memoryInvoiceSource{},
		comms:      &memoryCommSink{},
		dispatcher: &recordingDispatcher{},
		audit:      &recordingAudit{},
	}
	f.service = NewService(f.store, f.clientSrc, f.invoiceSrc, f.comms, f.dispatcher, f.audit,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func TestRunScanSendsOnceAndStaysQuiet(t *testing.T) {
	f := newScanFixture()
	f.store.templates["tpl-1"] = Template{
		ID: "tpl-1", Type: communications.TypeEmail,
		Subject: "Rappel {{invoice_number}}",
		Content: "Bonjour {{client_name}}, {{amount}} dus.",
	}
	tplID := "tpl-1"
	f.store.rules = []Rule{{ID: "r30", TriggerDays: 30, Action: ActionEmail, TemplateID: &tplID, IsActive: true}}
	f.clientSrc.clients = []clients.Client{
		{ID: "c1", Name: "Garage Lemoine", Email: "compta@lemoine.example", Status: clients.StatusYellow},
	}
	f.invoiceSrc.unpaid = []invoices.Invoice{unpaidInvoice("c1", 45, 2000)}

	report, err := f.service.RunScan(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, ScanReport{Evaluated: 1, Dispatched: 1}, report)

	require.Len(t, f.dispatcher.sent, 1)
	msg := f.dispatcher.sent[0]
	require.Equal(t, "compta@lemoine.example", msg.To)
	require.Equal(t, "Rappel FAC-1001", msg.Subject)
	require.Contains(t, msg.Body, "Garage Lemoine")

	require.Len(t, f.comms.created, 1)
	require.Equal(t, "r30", f.comms.created[0].Metadata[communications.MetadataRuleID])
	require.Equal(t, communications.StatusSent, f.comms.created[0].Status)
	require.Equal(t, asOf, f.clientSrc.lastContact["c1"])

	// An unchanged snapshot on the next run must not send again.
	report, err = f.service.RunScan(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, ScanReport{Evaluated: 1, Skipped: 1}, report)
	require.Len(t, f.dispatcher.sent, 1)
}

func TestRunScanStatusChangeIsIdempotent(t *testing.T) {
	f := newScanFixture()
	orange := clients.StatusOrange
	f.store.rules = []Rule{{ID: "r30", TriggerDays: 30, Action: ActionStatusChange, NewStatus: &orange, IsActive: true}}
	f.clientSrc.clients = []clients.Client{{ID: "c1", Status: clients.StatusYellow}}
	f.invoiceSrc.unpaid = []invoices.Invoice{unpaidInvoice("c1", 35, 100)}

	report, err := f.service.RunScan(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, report.StatusChanges)
	require.Equal(t, orange, f.clientSrc.clients[0].Status)
	require.Len(t, f.audit.entries, 1)
	require.Equal(t, "relance.status_change", f.audit.entries[0].Action)

	// Already at the target status: the rule still matches but writes nothing.
	report, err = f.service.RunScan(context.Background(), asOf)
	require.NoError(t, err)
	require.Zero(t, report.StatusChanges)
	require.Equal(t, 1, report.Skipped)
}

func TestRunScanMissingTemplateIsNonFatal(t *testing.T) {
	f := newScanFixture()
	gone := "tpl-gone"
	f.store.rules = []Rule{{ID: "r30", TriggerDays: 30, Action: ActionEmail, TemplateID: &gone, IsActive: true}}
	f.clientSrc.clients = []clients.Client{{ID: "c1", Email: "x@example.com"}}
	f.invoiceSrc.unpaid = []invoices.Invoice{unpaidInvoice("c1", 45, 100)}

	report, err := f.service.RunScan(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, ScanReport{Evaluated: 1, Skipped: 1}, report)
	require.Empty(t, f.dispatcher.sent)
	require.Empty(t, f.comms.created)
}

func TestRunScanEscalateIsAuditOnly(t *testing.T) {
	f := newScanFixture()
	f.store.rules = []Rule{{ID: "r60", TriggerDays: 60, Action: ActionEscalate, IsActive: true}}
	f.clientSrc.clients = []clients.Client{{ID: "c1", Status: clients.StatusCritical}}
	f.invoiceSrc.unpaid = []invoices.Invoice{unpaidInvoice("c1", 75, 12500)}

	report, err := f.service.RunScan(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, report.Escalated)
	require.Empty(t, f.dispatcher.sent)
	require.Empty(t, f.comms.created)
	require.Len(t, f.audit.entries, 1)
	require.Equal(t, "relance.escalate", f.audit.entries[0].Action)
}

func TestRunScanDispatchFailureRecordsFailedCommunication(t *testing.T) {
	f := newScanFixture()
	f.dispatcher.err = errors.New("smtp down")
	f.store.templates["tpl-1"] = Template{ID: "tpl-1", Type: communications.TypeEmail, Content: "x"}
	tplID := "tpl-1"
	f.store.rules = []Rule{{ID: "r30", TriggerDays: 30, Action: ActionEmail, TemplateID: &tplID, IsActive: true}}
	f.clientSrc.clients = []clients.Client{{ID: "c1", Email: "x@example.com"}}
	f.invoiceSrc.unpaid = []invoices.Invoice{unpaidInvoice("c1", 45, 100)}

	report, err := f.service.RunScan(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failures)
	require.Zero(t, report.Dispatched)

	// The attempt is still recorded, marked failed, and last contact is not
	// touched.
	require.Len(t, f.comms.created, 1)
	require.Equal(t, communications.StatusFailed, f.comms.created[0].Status)
	require.Empty(t, f.clientSrc.lastContact)
}

func TestRunScanOneBadRuleDoesNotBlockOthers(t *testing.T) {
	f := newScanFixture()
	bogus := clients.Status("purple")
	f.store.rules = []Rule{{ID: "r30", TriggerDays: 30, Action: ActionStatusChange, NewStatus: &bogus, IsActive: true}}
	f.clientSrc.clients = []clients.Client{
		{ID: "c1", Status: clients.StatusYellow},
		{ID: "c2", Status: clients.StatusYellow},
	}
	f.invoiceSrc.unpaid = []invoices.Invoice{
		unpaidInvoice("c1", 45, 100),
	}

	report, err := f.service.RunScan(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, 2, report.Evaluated)
	require.Equal(t, 1, report.Failures, "the malformed rule fails only the affected client")
}
