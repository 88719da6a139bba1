// Package metrics computes presentation-ready numeric facts from entity
// snapshots. Every function here is pure: inputs in, numbers out, no store
// access.
package metrics

import (
	"math"
	"time"

	"github.com/recouvra/recouvra/internal/invoices"
)

// DaysOverdue returns the number of whole days the due date lies in the
// past as of the reference time, clamped to zero for future dates. Partial
// days count as a full day.
func DaysOverdue(dueDate, asOf time.Time) int {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	diff := asOf.Sub(dueDate)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// RecoveryRate returns the recovered percentage of an invoice, rounded to
// the nearest integer. A zero original amount yields 0 regardless of the
// paid amount.
func RecoveryRate(originalAmount, paidAmount float64) int {
	if originalAmount == 0 {
		return 0
	}
	return int(math.Round(100 * paidAmount / originalAmount))
}

// ClientTotalOutstanding sums the outstanding amount over a client's
// invoices, excluding fully paid ones.
func ClientTotalOutstanding(invs []invoices.Invoice) float64 {
	var total float64
	for _, inv := range invs {
		if inv.Status == invoices.StatusPaid {
			continue
		}
		total += inv.Amount
	}
	return round2(total)
}

// AgingBuckets summarises outstanding amounts by days-overdue bands.
type AgingBuckets struct {
	Current   float64 `json:"current"`
	Bucket30  float64 `json:"bucket_30"`
	Bucket60  float64 `json:"bucket_60"`
	Bucket90  float64 `json:"bucket_90"`
	Bucket120 float64 `json:"bucket_120"`
}

// Aging groups unpaid invoice amounts into 30-day buckets as of a date.
func Aging(invs []invoices.Invoice, asOf time.Time) AgingBuckets {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	var buckets AgingBuckets
	for _, inv := range invs {
		if inv.Status == invoices.StatusPaid {
			continue
		}
		days := DaysOverdue(inv.DueDate, asOf)
		switch {
		case days <= 0:
			buckets.Current += inv.Amount
		case days <= 30:
			buckets.Bucket30 += inv.Amount
		case days <= 60:
			buckets.Bucket60 += inv.Amount
		case days <= 90:
			buckets.Bucket90 += inv.Amount
		default:
			buckets.Bucket120 += inv.Amount
		}
	}
	return buckets
}

// DSO computes Days Sales Outstanding over a window: outstanding divided by
// total billed, scaled by the window length in days. Zero billing yields 0.
func DSO(invs []invoices.Invoice, windowDays int) float64 {
	if windowDays <= 0 {
		windowDays = 90
	}
	var outstanding, billed float64
	for _, inv := range invs {
		billed += inv.OriginalAmount
		if inv.Status != invoices.StatusPaid {
			outstanding += inv.Amount
		}
	}
	if billed == 0 {
		return 0
	}
	return round2(outstanding / billed * float64(windowDays))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
