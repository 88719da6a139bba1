package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, client_id, number, amount, original_amount, paid_amount,
	issue_date, due_date, status, created_at, updated_at`

// Create inserts a new invoice. Amount and status are derived from the
// input figures, never taken from the caller.
func (r *Repository) Create(ctx context.Context, input CreateInvoiceInput) (*Invoice, error) {
	number := input.Number
	if number == "" {
		var err error
		number, err = r.nextNumber(ctx)
		if err != nil {
			return nil, err
		}
	}

	inv := Invoice{
		ID:             uuid.NewString(),
		ClientID:       input.ClientID,
		Number:         number,
		OriginalAmount: input.OriginalAmount,
		PaidAmount:     input.PaidAmount,
		Amount:         input.OriginalAmount - input.PaidAmount,
		IssueDate:      input.IssueDate,
		DueDate:        input.DueDate,
		Status:         DeriveStatus(input.OriginalAmount, input.PaidAmount, input.DueDate, time.Now()),
	}

	query := `
		INSERT INTO invoices (id, client_id, number, amount, original_amount, paid_amount, issue_date, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		inv.ID, inv.ClientID, inv.Number, inv.Amount, inv.OriginalAmount,
		inv.PaidAmount, inv.IssueDate, inv.DueDate, string(inv.Status),
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invoices: insert: %w", err)
	}
	return &inv, nil
}

// Get retrieves an invoice by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("invoices: get: %w", err)
	}
	return inv, nil
}

// List enumerates invoices matching the filter, oldest due first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
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

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY due_date ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("invoices: list: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("invoices: scan: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// ListUnpaid returns every invoice not yet fully paid, across all clients.
// The relance scan feeds on this.
func (r *Repository) ListUnpaid(ctx context.Context) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE status <> 'paid' ORDER BY due_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("invoices: list unpaid: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("invoices: scan: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// ApplyPayment increases paid_amount and re-derives amount and status
// inside the caller's transaction scope.
func (r *Repository) ApplyPayment(ctx context.Context, tx pgx.Tx, id string, amount float64, asOf time.Time) (*Invoice, error) {
	row := tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("invoices: lock: %w", err)
	}

	inv.PaidAmount += amount
	inv.Amount = inv.OriginalAmount - inv.PaidAmount
	if inv.Amount < 0 {
		inv.Amount = 0
	}
	inv.Status = DeriveStatus(inv.OriginalAmount, inv.PaidAmount, inv.DueDate, asOf)

	_, err = tx.Exec(ctx, `
		UPDATE invoices SET amount = $1, paid_amount = $2, status = $3, updated_at = NOW()
		WHERE id = $4`,
		inv.Amount, inv.PaidAmount, string(inv.Status), inv.ID)
	if err != nil {
		return nil, fmt.Errorf("invoices: apply payment: %w", err)
	}
	return inv, nil
}

// RefreshStatuses re-derives the status of unpaid invoices whose due date
// has passed. Run by the nightly scan so pending invoices roll to overdue
// without waiting for a write.
func (r *Repository) RefreshStatuses(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = 'overdue', updated_at = NOW()
		WHERE status IN ('pending', 'partial') AND due_date < $1`, asOf)
	if err != nil {
		return 0, fmt.Errorf("invoices: refresh statuses: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes an invoice.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("invoices: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) nextNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("invoices: next number: %w", err)
	}
	return fmt.Sprintf("INV-%06d", seq), nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.ClientID, &inv.Number, &inv.Amount,
		&inv.OriginalAmount, &inv.PaidAmount, &inv.IssueDate, &inv.DueDate,
		&inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
