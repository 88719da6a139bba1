// Package scope restricts entity snapshots to what a principal may see.
// Filtering is a pure projection over in-memory slices: it never mutates
// the inputs, and an unmatched principal yields empty collections rather
// than an error.
package scope

import (
	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/communications"
	"github.com/recouvra/recouvra/internal/invoices"
	"github.com/recouvra/recouvra/internal/payments"
	"github.com/recouvra/recouvra/internal/shared"
)

// Snapshot bundles the collections a view is projected from.
type Snapshot struct {
	Clients        []clients.Client
	Invoices       []invoices.Invoice
	Payments       []payments.Payment
	Communications []communications.Communication
}

// Clients returns the subset of clients the principal may see.
func Clients(p shared.Principal, list []clients.Client) []clients.Client {
	if p.Role == shared.RoleAdmin {
		return list
	}
	out := make([]clients.Client, 0, len(list))
	for _, c := range list {
		if c.VisibleTo(p) {
			out = append(out, c)
		}
	}
	return out
}

// Apply projects the whole snapshot down to the principal's view. Invoices,
// payments and communications follow their client's visibility.
func Apply(p shared.Principal, snap Snapshot) Snapshot {
	visible := Clients(p, snap.Clients)
	ids := make(map[string]struct{}, len(visible))
	for _, c := range visible {
		ids[c.ID] = struct{}{}
	}

	out := Snapshot{Clients: visible}
	if p.Role == shared.RoleAdmin {
		out.Invoices = snap.Invoices
		out.Payments = snap.Payments
		out.Communications = snap.Communications
		return out
	}

	out.Invoices = make([]invoices.Invoice, 0, len(snap.Invoices))
	for _, inv := range snap.Invoices {
		if _, ok := ids[inv.ClientID]; ok {
			out.Invoices = append(out.Invoices, inv)
		}
	}
	out.Payments = make([]payments.Payment, 0, len(snap.Payments))
	for _, pay := range snap.Payments {
		if _, ok := ids[pay.ClientID]; ok {
			out.Payments = append(out.Payments, pay)
		}
	}
	out.Communications = make([]communications.Communication, 0, len(snap.Communications))
	for _, comm := range snap.Communications {
		if _, ok := ids[comm.ClientID]; ok {
			out.Communications = append(out.Communications, comm)
		}
	}
	return out
}

// VisibleClientIDs returns the ids of the clients the principal may see,
// for pushing the same predicate into repository queries.
func VisibleClientIDs(p shared.Principal, list []clients.Client) []string {
	visible := Clients(p, list)
	ids := make([]string, 0, len(visible))
	for _, c := range visible {
		ids = append(ids, c.ID)
	}
	return ids
}
