package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recouvra/recouvra/internal/invoices"
)

func TestDaysOverdue(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	require.Equal(t, 0, DaysOverdue(asOf.AddDate(0, 0, 10), asOf), "future due date")
	require.Equal(t, 0, DaysOverdue(asOf, asOf), "due right now")
	require.Equal(t, 5, DaysOverdue(asOf.AddDate(0, 0, -5), asOf))

	// A partial day counts as a whole day.
	require.Equal(t, 1, DaysOverdue(asOf.Add(-2*time.Hour), asOf))
	require.Equal(t, 6, DaysOverdue(asOf.AddDate(0, 0, -5).Add(-time.Hour), asOf))
}

func TestRecoveryRate(t *testing.T) {
	require.Equal(t, 0, RecoveryRate(0, 500), "zero original amount")
	require.Equal(t, 0, RecoveryRate(1000, 0))
	require.Equal(t, 50, RecoveryRate(1000, 500))
	require.Equal(t, 100, RecoveryRate(1000, 1000))
	require.Equal(t, 33, RecoveryRate(300, 100), "rounds to nearest")
}

func TestClientTotalOutstanding(t *testing.T) {
	invs := []invoices.Invoice{
		{Amount: 100.50, Status: invoices.StatusOverdue},
		{Amount: 200, Status: invoices.StatusPartial},
		{Amount: 0, Status: invoices.StatusPaid, OriginalAmount: 900},
	}
	require.InDelta(t, 300.50, ClientTotalOutstanding(invs), 0.001)
	require.Zero(t, ClientTotalOutstanding(nil))
}

func TestAging(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	due := func(daysAgo int) time.Time { return asOf.AddDate(0, 0, -daysAgo) }

	invs := []invoices.Invoice{
		{Amount: 10, Status: invoices.StatusPending, DueDate: due(-5)},
		{Amount: 20, Status: invoices.StatusOverdue, DueDate: due(15)},
		{Amount: 30, Status: invoices.StatusOverdue, DueDate: due(45)},
		{Amount: 40, Status: invoices.StatusOverdue, DueDate: due(75)},
		{Amount: 50, Status: invoices.StatusOverdue, DueDate: due(200)},
		{Amount: 99, Status: invoices.StatusPaid, DueDate: due(200)},
	}

	buckets := Aging(invs, asOf)
	require.Equal(t, 10.0, buckets.Current)
	require.Equal(t, 20.0, buckets.Bucket30)
	require.Equal(t, 30.0, buckets.Bucket60)
	require.Equal(t, 40.0, buckets.Bucket90)
	require.Equal(t, 50.0, buckets.Bucket120)
}

func TestDSO(t *testing.T) {
	invs := []invoices.Invoice{
		{OriginalAmount: 1000, Amount: 0, Status: invoices.StatusPaid},
		{OriginalAmount: 1000, Amount: 500, Status: invoices.StatusPartial},
	}
	// 500 outstanding over 2000 billed across a 90-day window.
	require.InDelta(t, 22.5, DSO(invs, 90), 0.001)
	require.Zero(t, DSO(nil, 90), "no billing")
	require.InDelta(t, 22.5, DSO(invs, 0), 0.001, "window defaults to 90")
}
