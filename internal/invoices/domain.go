package invoices

import (
	"errors"
	"fmt"
	"time"

	"github.com/recouvra/recouvra/internal/shared"
)

// Status enumerates invoice statuses. The stored value is always recomputed
// from amounts and the due date at write time, so it cannot drift from the
// figures it summarises.
type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Invoice model.
type Invoice struct {
	ID             string
	ClientID       string
	Number         string
	Amount         float64
	OriginalAmount float64
	PaidAmount     float64
	IssueDate      time.Time
	DueDate        time.Time
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DeriveStatus computes the status implied by the amounts and due date:
// paid when fully covered, otherwise overdue past the due date, partial
// when partly covered, pending otherwise.
func DeriveStatus(originalAmount, paidAmount float64, dueDate, asOf time.Time) Status {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	if paidAmount >= originalAmount && originalAmount > 0 {
		return StatusPaid
	}
	if dueDate.Before(asOf) {
		return StatusOverdue
	}
	if paidAmount > 0 {
		return StatusPartial
	}
	return StatusPending
}

// CreateInvoiceInput captures invoice creation input.
type CreateInvoiceInput struct {
	ClientID       string
	Number         string
	OriginalAmount float64
	PaidAmount     float64
	IssueDate      time.Time
	DueDate        time.Time
}

// Validate ensures correctness.
func (in CreateInvoiceInput) Validate() error {
	if in.ClientID == "" {
		return errors.New("invoices: client required")
	}
	if in.OriginalAmount <= 0 {
		return errors.New("invoices: original amount must be positive")
	}
	if in.PaidAmount < 0 {
		return errors.New("invoices: paid amount cannot be negative")
	}
	if in.DueDate.IsZero() {
		return errors.New("invoices: due date required")
	}
	return nil
}

// ListFilter scopes invoice listings.
type ListFilter struct {
	ClientID  string
	ClientIDs []string
	Status    Status
	Limit     int
}

// ErrNotFound occurs when an invoice is missing.
var ErrNotFound = fmt.Errorf("invoices: %w", shared.ErrNotFound)
