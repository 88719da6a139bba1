package clients

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/recouvra/recouvra/internal/shared"
)

// Status is the escalation severity ladder for a debtor.
type Status string

const (
	// StatusBlue is the initial, lowest severity.
	StatusBlue Status = "blue"
	// StatusYellow indicates early delinquency.
	StatusYellow Status = "yellow"
	// StatusOrange indicates sustained delinquency.
	StatusOrange Status = "orange"
	// StatusCritical is the maximum severity. There is no automatic
	// transition out of it; de-escalation is a manual operation.
	StatusCritical Status = "critical"
)

// Valid reports whether the status is one of the four ladder values.
func (s Status) Valid() bool {
	switch s {
	case StatusBlue, StatusYellow, StatusOrange, StatusCritical:
		return true
	}
	return false
}

// Client is a debtor being pursued for payment.
type Client struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	Address     string
	Company     string
	ManagerID   *string
	UserID      *string
	Status      Status
	TotalAmount float64
	LastContact *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VisibleTo reports whether the principal may see this client. Managers see
// their portfolio. Debtors match on user_id or, failing that, on email,
// since some portal accounts are linked only by address.
func (c Client) VisibleTo(p shared.Principal) bool {
	switch p.Role {
	case shared.RoleAdmin:
		return true
	case shared.RoleManager:
		return c.ManagerID != nil && *c.ManagerID == p.ID
	case shared.RoleClient:
		if c.UserID != nil && *c.UserID == p.ID {
			return true
		}
		return p.Email != "" && c.Email == p.Email
	}
	return false
}

// CreateClientInput captures client creation input.
type CreateClientInput struct {
	Name      string
	Email     string
	Phone     string
	Address   string
	Company   string
	ManagerID *string
	UserID    *string
	Status    Status
}

// Validate ensures correctness.
func (in CreateClientInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("clients: name required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return errors.New("clients: email required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// UpdateClientInput captures client mutation input. Nil fields are left
// untouched.
type UpdateClientInput struct {
	Name        *string
	Email       *string
	Phone       *string
	Address     *string
	Company     *string
	ManagerID   *string
	Status      *Status
	LastContact *time.Time
}

// ListFilter scopes client listings.
type ListFilter struct {
	ManagerID string
	Status    Status
	Search    string
	Limit     int
	Offset    int
}

var (
	// ErrNotFound occurs when a client is missing.
	ErrNotFound = fmt.Errorf("clients: %w", shared.ErrNotFound)
	// ErrInvalidStatus occurs when a status outside the ladder is written.
	ErrInvalidStatus = errors.New("clients: status must be one of blue, yellow, orange, critical")
)
