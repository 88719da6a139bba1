package relance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/invoices"
)

var asOf = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func unpaidInvoice(clientID string, daysOverdue int, amount float64) invoices.Invoice {
	return invoices.Invoice{
		ClientID: clientID,
		Number:   "FAC-1001",
		Amount:   amount,
		DueDate:  asOf.AddDate(0, 0, -daysOverdue),
		Status:   invoices.StatusOverdue,
	}
}

func TestAgeSignalMostOverdueWins(t *testing.T) {
	invs := []invoices.Invoice{
		unpaidInvoice("c1", 12, 100),
		unpaidInvoice("c1", 45, 200),
		{ClientID: "c1", DueDate: asOf.AddDate(0, 0, -90), Status: invoices.StatusPaid},
	}
	require.Equal(t, 45, AgeSignal(invs, asOf), "paid invoices are ignored")
	require.Zero(t, AgeSignal(nil, asOf))
}

func TestDecideLargestSatisfiedTriggerWins(t *testing.T) {
	client := clients.Client{ID: "c1", Status: clients.StatusYellow}
	rules := []Rule{
		{ID: "r10", TriggerDays: 10, Action: ActionEscalate, IsActive: true},
		{ID: "r30", TriggerDays: 30, Action: ActionEscalate, IsActive: true},
		{ID: "r60", TriggerDays: 60, Action: ActionEscalate, IsActive: true},
	}

	decision, err := Decide(client, []invoices.Invoice{unpaidInvoice("c1", 45, 100)}, rules, asOf)
	require.NoError(t, err)
	require.NotNil(t, decision.Rule)
	require.Equal(t, "r30", decision.Rule.ID, "45 days satisfies 10 and 30, 30 supersedes")
	require.Equal(t, 45, decision.AgeSignal)
}

func TestDecideZeroSignalFiresNothing(t *testing.T) {
	client := clients.Client{ID: "c1", Status: clients.StatusBlue}
	rules := []Rule{{ID: "r0", TriggerDays: 0, Action: ActionEscalate, IsActive: true}}

	decision, err := Decide(client, nil, rules, asOf)
	require.NoError(t, err)
	require.Nil(t, decision.Rule, "no unpaid invoices means no decision even at threshold zero")
}

func TestDecideSkipsInactiveRules(t *testing.T) {
	client := clients.Client{ID: "c1", Status: clients.StatusBlue}
	rules := []Rule{
		{ID: "r30", TriggerDays: 30, Action: ActionEscalate, IsActive: false},
		{ID: "r10", TriggerDays: 10, Action: ActionEscalate, IsActive: true},
	}

	decision, err := Decide(client, []invoices.Invoice{unpaidInvoice("c1", 45, 100)}, rules, asOf)
	require.NoError(t, err)
	require.Equal(t, "r10", decision.Rule.ID)
}

func TestDecideStatusChange(t *testing.T) {
	orange := clients.StatusOrange
	rules := []Rule{{ID: "r30", TriggerDays: 30, Action: ActionStatusChange, NewStatus: &orange, IsActive: true}}
	invs := []invoices.Invoice{unpaidInvoice("c1", 35, 100)}

	decision, err := Decide(clients.Client{ID: "c1", Status: clients.StatusYellow}, invs, rules, asOf)
	require.NoError(t, err)
	require.NotNil(t, decision.NewStatus)
	require.Equal(t, orange, *decision.NewStatus)

	// Same target as current status proposes nothing.
	decision, err = Decide(clients.Client{ID: "c1", Status: clients.StatusOrange}, invs, rules, asOf)
	require.NoError(t, err)
	require.NotNil(t, decision.Rule)
	require.Nil(t, decision.NewStatus)
}

func TestDecideInvalidTargetStatusFailsFast(t *testing.T) {
	bogus := clients.Status("purple")
	rules := []Rule{{ID: "r30", TriggerDays: 30, Action: ActionStatusChange, NewStatus: &bogus, IsActive: true}}

	_, err := Decide(clients.Client{ID: "c1"}, []invoices.Invoice{unpaidInvoice("c1", 35, 100)}, rules, asOf)
	require.ErrorIs(t, err, ErrInvalidTargetStatus)
}

func TestSatisfiedSince(t *testing.T) {
	rule := Rule{ID: "r30", TriggerDays: 30}
	decision := Decision{AgeSignal: 45, Rule: &rule}

	// The threshold was crossed 15 days ago.
	since := decision.SatisfiedSince(asOf)
	require.Equal(t, asOf.AddDate(0, 0, -15).Truncate(24*time.Hour), since)

	require.Equal(t, asOf, Decision{}.SatisfiedSince(asOf), "no rule, no window")
}
