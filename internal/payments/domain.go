package payments

import (
	"errors"
	"fmt"
	"time"

	"github.com/recouvra/recouvra/internal/shared"
)

// Status enumerates payment statuses.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusScheduled Status = "scheduled"
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusScheduled:
		return true
	}
	return false
}

// Payment model. InvoiceID is optional: a payment may be recorded against
// the client as a whole.
type Payment struct {
	ID          string
	ClientID    string
	InvoiceID   *string
	Amount      float64
	PaymentDate time.Time
	DueDate     *time.Time
	Method      string
	Reference   string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreatePaymentInput captures payment creation input.
type CreatePaymentInput struct {
	ClientID    string
	InvoiceID   *string
	Amount      float64
	PaymentDate time.Time
	DueDate     *time.Time
	Method      string
	Reference   string
	Status      Status
}

// Validate ensures correctness.
func (in CreatePaymentInput) Validate() error {
	if in.ClientID == "" {
		return errors.New("payments: client required")
	}
	if in.Amount <= 0 {
		return errors.New("payments: amount must be positive")
	}
	if in.Status != "" && !in.Status.Valid() {
		return errors.New("payments: status must be one of pending, completed, failed, scheduled")
	}
	return nil
}

// ListFilter scopes payment listings.
type ListFilter struct {
	ClientID  string
	ClientIDs []string
	Status    Status
	Limit     int
}

// ErrNotFound occurs when a payment is missing.
var ErrNotFound = fmt.Errorf("payments: %w", shared.ErrNotFound)
