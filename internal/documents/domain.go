// Package documents tracks files attached to clients and invoices:
// contracts, payment proofs, correspondence. Only metadata lives here; the
// bytes sit on whatever store the path points at.
package documents

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/recouvra/recouvra/internal/shared"
)

// Type enumerates document categories.
type Type string

const (
	TypeContract     Type = "contract"
	TypeInvoice      Type = "invoice"
	TypePaymentProof Type = "payment_proof"
	TypeLetter       Type = "letter"
	TypeOther        Type = "other"
)

// Valid reports whether the type is a known category.
func (t Type) Valid() bool {
	switch t {
	case TypeContract, TypeInvoice, TypePaymentProof, TypeLetter, TypeOther:
		return true
	}
	return false
}

// Document model.
type Document struct {
	ID         string
	ClientID   string
	InvoiceID  *string
	Name       string
	Type       Type
	Path       string
	Size       int64
	UploadedBy *string
	CreatedAt  time.Time
}

// CreateDocumentInput captures document registration input.
type CreateDocumentInput struct {
	ClientID   string
	InvoiceID  *string
	Name       string
	Type       Type
	Path       string
	Size       int64
	UploadedBy *string
}

// Validate ensures correctness.
func (in CreateDocumentInput) Validate() error {
	if in.ClientID == "" {
		return errors.New("documents: client required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("documents: name required")
	}
	if !in.Type.Valid() {
		return errors.New("documents: type must be one of contract, invoice, payment_proof, letter, other")
	}
	if strings.TrimSpace(in.Path) == "" {
		return errors.New("documents: path required")
	}
	return nil
}

// ListFilter scopes document listings.
type ListFilter struct {
	ClientID  string
	ClientIDs []string
	Type      Type
	Limit     int
}

// ErrNotFound occurs when a document is missing.
var ErrNotFound = fmt.Errorf("documents: %w", shared.ErrNotFound)
