package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const paymentColumns = `id, client_id, invoice_id, amount, payment_date, due_date,
	method, reference, status, created_at, updated_at`

// Create inserts a new payment inside the given transaction.
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, input CreatePaymentInput) (*Payment, error) {
	status := input.Status
	if status == "" {
		status = StatusCompleted
	}
	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	p := Payment{
		ID:          uuid.NewString(),
		ClientID:    input.ClientID,
		InvoiceID:   input.InvoiceID,
		Amount:      input.Amount,
		PaymentDate: paymentDate,
		DueDate:     input.DueDate,
		Method:      input.Method,
		Reference:   input.Reference,
		Status:      status,
	}

	var invoiceID, dueDate any
	if p.InvoiceID != nil {
		invoiceID = *p.InvoiceID
	}
	if p.DueDate != nil {
		dueDate = *p.DueDate
	}

	query := `
		INSERT INTO payments (id, client_id, invoice_id, amount, payment_date, due_date, method, reference, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at`
	err := tx.QueryRow(ctx, query,
		p.ID, p.ClientID, invoiceID, p.Amount, p.PaymentDate, dueDate,
		p.Method, p.Reference, string(p.Status),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("payments: insert: %w", err)
	}
	return &p, nil
}

// Get retrieves a payment by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("payments: get: %w", err)
	}
	return p, nil
}

// List enumerates payments matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Payment, error) {
	var (
		conds []string
		args  []any
	)
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conds = append(conds, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if len(filter.ClientIDs) > 0 {
		args = append(args, filter.ClientIDs)
		conds = append(conds, fmt.Sprintf("client_id = ANY($%d)", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY payment_date DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("payments: list: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("payments: scan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateStatus moves a payment through its lifecycle (scheduled payments
// settling or failing).
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("payments: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p         Payment
		invoiceID pgtype.Text
		dueDate   pgtype.Timestamptz
		method    pgtype.Text
		reference pgtype.Text
	)
	err := row.Scan(&p.ID, &p.ClientID, &invoiceID, &p.Amount, &p.PaymentDate,
		&dueDate, &method, &reference, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if invoiceID.Valid {
		p.InvoiceID = &invoiceID.String
	}
	if dueDate.Valid {
		t := dueDate.Time
		p.DueDate = &t
	}
	p.Method = method.String
	p.Reference = reference.String
	return &p, nil
}
