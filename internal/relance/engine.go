package relance

import (
	"fmt"
	"time"

	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/invoices"
	"github.com/recouvra/recouvra/internal/metrics"
)

// Decision is the pure outcome of evaluating one client against the rule
// set. It states what would happen; applying it is the service's job.
type Decision struct {
	ClientID  string
	AgeSignal int
	// Rule is the authoritative rule, nil when no rule is satisfied.
	Rule *Rule
	// NewStatus is set for a status_change whose target differs from the
	// client's current status. Equal targets propose nothing, so re-running
	// the engine on an unchanged snapshot stays quiet.
	NewStatus *clients.Status
}

// AgeSignal computes how many days the client's most overdue unpaid invoice
// has been due, zero when the client has no unpaid invoices.
func AgeSignal(invs []invoices.Invoice, asOf time.Time) int {
	signal := 0
	for _, inv := range invs {
		if inv.Status == invoices.StatusPaid {
			continue
		}
		if days := metrics.DaysOverdue(inv.DueDate, asOf); days > signal {
			signal = days
		}
	}
	return signal
}

// Decide evaluates a client snapshot against the active rules. Among all
// satisfied rules the one with the largest trigger_days wins; lower
// thresholds are superseded, not stacked. A zero age signal fires nothing.
func Decide(client clients.Client, invs []invoices.Invoice, rules []Rule, asOf time.Time) (Decision, error) {
	decision := Decision{ClientID: client.ID}
	decision.AgeSignal = AgeSignal(invs, asOf)
	if decision.AgeSignal == 0 {
		return decision, nil
	}

	var authoritative *Rule
	for i := range rules {
		rule := &rules[i]
		if !rule.IsActive {
			continue
		}
		if decision.AgeSignal < rule.TriggerDays {
			continue
		}
		if authoritative == nil || rule.TriggerDays > authoritative.TriggerDays {
			authoritative = rule
		}
	}
	if authoritative == nil {
		return decision, nil
	}
	decision.Rule = authoritative

	if authoritative.Action == ActionStatusChange {
		if authoritative.NewStatus == nil || !authoritative.NewStatus.Valid() {
			return Decision{}, fmt.Errorf("%w: rule %s", ErrInvalidTargetStatus, authoritative.ID)
		}
		if *authoritative.NewStatus != client.Status {
			decision.NewStatus = authoritative.NewStatus
		}
	}
	return decision, nil
}

// SatisfiedSince returns the moment the authoritative rule became
// satisfied, i.e. when the driving invoice crossed the rule's threshold.
// The duplicate-send guard looks for communications at or after this point.
func (d Decision) SatisfiedSince(asOf time.Time) time.Time {
	if d.Rule == nil {
		return asOf
	}
	return asOf.AddDate(0, 0, -(d.AgeSignal - d.Rule.TriggerDays)).Truncate(24 * time.Hour)
}
