// Package relance implements the status escalation engine: reminder rules,
// message templates, and the decision logic that moves clients up the
// severity ladder as their invoices age.
package relance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/communications"
	"github.com/recouvra/recouvra/internal/shared"
)

// Action enumerates what a satisfied rule does.
type Action string

const (
	// ActionEmail sends a templated email to the client.
	ActionEmail Action = "email"
	// ActionSMS sends a templated SMS to the client.
	ActionSMS Action = "sms"
	// ActionStatusChange moves the client to the rule's target status.
	ActionStatusChange Action = "status_change"
	// ActionEscalate flags the client for human review. No concrete side
	// effect is defined beyond an internal notification.
	ActionEscalate Action = "escalate"
)

// Valid reports whether the action is a known kind.
func (a Action) Valid() bool {
	switch a {
	case ActionEmail, ActionSMS, ActionStatusChange, ActionEscalate:
		return true
	}
	return false
}

// Rule defines an escalation threshold. Among all active rules whose
// trigger_days the client's age signal meets or exceeds, the one with the
// largest trigger_days is authoritative.
type Rule struct {
	ID          string
	Name        string
	TriggerDays int
	Action      Action
	TemplateID  *string
	NewStatus   *clients.Status
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Template is a reusable message body with {{variable}} placeholders.
type Template struct {
	ID        string
	Name      string
	Type      communications.Type
	Subject   string
	Content   string
	Variables []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateRuleInput captures rule creation input.
type CreateRuleInput struct {
	Name        string
	TriggerDays int
	Action      Action
	TemplateID  *string
	NewStatus   *clients.Status
	IsActive    bool
}

// Validate ensures correctness.
func (in CreateRuleInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("relance: rule name required")
	}
	if in.TriggerDays < 0 {
		return errors.New("relance: trigger days cannot be negative")
	}
	if !in.Action.Valid() {
		return errors.New("relance: action must be one of email, sms, status_change, escalate")
	}
	if in.Action == ActionStatusChange {
		if in.NewStatus == nil {
			return errors.New("relance: status_change rule requires a target status")
		}
		if !in.NewStatus.Valid() {
			return ErrInvalidTargetStatus
		}
	}
	if (in.Action == ActionEmail || in.Action == ActionSMS) && in.TemplateID == nil {
		return errors.New("relance: message rule requires a template")
	}
	return nil
}

// CreateTemplateInput captures template creation input.
type CreateTemplateInput struct {
	Name      string
	Type      communications.Type
	Subject   string
	Content   string
	Variables []string
}

// Validate ensures correctness.
func (in CreateTemplateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("relance: template name required")
	}
	switch in.Type {
	case communications.TypeEmail, communications.TypeSMS, communications.TypeLetter:
	default:
		return errors.New("relance: template type must be one of email, sms, letter")
	}
	if strings.TrimSpace(in.Content) == "" {
		return errors.New("relance: template content required")
	}
	return nil
}

var (
	// ErrRuleNotFound occurs when a rule is missing.
	ErrRuleNotFound = fmt.Errorf("relance: rule %w", shared.ErrNotFound)
	// ErrTemplateNotFound occurs when a template is missing.
	ErrTemplateNotFound = fmt.Errorf("relance: template %w", shared.ErrNotFound)
	// ErrInvalidTargetStatus occurs when a rule references a status outside
	// the ladder. The engine fails fast rather than writing garbage.
	ErrInvalidTargetStatus = errors.New("relance: target status must be one of blue, yellow, orange, critical")
)
