package communications

import (
	"errors"
	"fmt"
	"time"

	"github.com/recouvra/recouvra/internal/shared"
)

// Type enumerates communication channels.
type Type string

const (
	TypeEmail   Type = "email"
	TypeSMS     Type = "sms"
	TypeCall    Type = "call"
	TypeLetter  Type = "letter"
	TypeMeeting Type = "meeting"
)

// Valid reports whether the type is a known channel.
func (t Type) Valid() bool {
	switch t {
	case TypeEmail, TypeSMS, TypeCall, TypeLetter, TypeMeeting:
		return true
	}
	return false
}

// Status enumerates delivery statuses.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusResponded Status = "responded"
	StatusFailed    Status = "failed"
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusResponded, StatusFailed:
		return true
	}
	return false
}

// MetadataRuleID is the metadata key tagging a communication with the
// relance rule that produced it. The escalation engine's duplicate guard
// keys on it.
const MetadataRuleID = "rule_id"

// Communication model. UserID is the authoring manager when the record was
// created by a human rather than by automation.
type Communication struct {
	ID          string
	ClientID    string
	UserID      *string
	Type        Type
	Subject     string
	Content     string
	Status      Status
	ScheduledAt *time.Time
	SentAt      *time.Time
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateCommunicationInput captures communication creation input.
type CreateCommunicationInput struct {
	ClientID    string
	UserID      *string
	Type        Type
	Subject     string
	Content     string
	Status      Status
	ScheduledAt *time.Time
	SentAt      *time.Time
	Metadata    map[string]string
}

// Validate ensures correctness.
func (in CreateCommunicationInput) Validate() error {
	if in.ClientID == "" {
		return errors.New("communications: client required")
	}
	if !in.Type.Valid() {
		return errors.New("communications: type must be one of email, sms, call, letter, meeting")
	}
	if in.Status != "" && !in.Status.Valid() {
		return errors.New("communications: status must be one of sent, delivered, read, responded, failed")
	}
	return nil
}

// ListFilter scopes communication listings.
type ListFilter struct {
	ClientID  string
	ClientIDs []string
	Type      Type
	Limit     int
}

// ErrNotFound occurs when a communication is missing.
var ErrNotFound = fmt.Errorf("communications: %w", shared.ErrNotFound)
