package clients

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

// Repository provides PostgreSQL backed persistence for clients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, name, email, phone, address, company, manager_id, user_id,
	status, total_amount, last_contact, created_at, updated_at`

// Create inserts a new client.
func (r *Repository) Create(ctx context.Context, input CreateClientInput) (*Client, error) {
	status := input.Status
	if status == "" {
		status = StatusBlue
	}

	query := `
		INSERT INTO clients (id, name, email, phone, address, company, manager_id, user_id, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, NOW(), NOW())
		RETURNING created_at, updated_at`

	c := Client{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		Address:   input.Address,
		Company:   input.Company,
		ManagerID: input.ManagerID,
		UserID:    input.UserID,
		Status:    status,
	}
	err := r.pool.QueryRow(ctx, query,
		c.ID, c.Name, c.Email, c.Phone, c.Address, c.Company,
		textOrNull(input.ManagerID), textOrNull(input.UserID), string(status),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("clients: insert: %w", err)
	}
	return &c, nil
}

// Get retrieves a client by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("clients: get: %w", err)
	}
	return c, nil
}

// List enumerates clients matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Client, error) {
	var (
		conds []string
		args  []any
	)
	if filter.ManagerID != "" {
		args = append(args, filter.ManagerID)
		conds = append(conds, fmt.Sprintf("manager_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR company ILIKE $%d)", len(args), len(args), len(args)))
	}

	query := `SELECT ` + clientColumns + ` FROM clients`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("clients: list: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("clients: scan: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Update applies a partial mutation and bumps updated_at.
func (r *Repository) Update(ctx context.Context, id string, input UpdateClientInput) (*Client, error) {
	sets := []string{"updated_at = NOW()"}
	var args []any

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if input.Name != nil {
		set("name", *input.Name)
	}
	if input.Email != nil {
		set("email", *input.Email)
	}
	if input.Phone != nil {
		set("phone", *input.Phone)
	}
	if input.Address != nil {
		set("address", *input.Address)
	}
	if input.Company != nil {
		set("company", *input.Company)
	}
	if input.ManagerID != nil {
		set("manager_id", *input.ManagerID)
	}
	if input.Status != nil {
		set("status", string(*input.Status))
	}
	if input.LastContact != nil {
		set("last_contact", *input.LastContact)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE clients SET %s WHERE id = $%d RETURNING `+clientColumns,
		strings.Join(sets, ", "), len(args))

	row := r.pool.QueryRow(ctx, query, args...)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("clients: update: %w", err)
	}
	return c, nil
}

// UpdateStatus writes only the status column, for escalation transitions.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE clients SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("clients: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RefreshTotal recomputes the cached total_amount from unpaid invoices.
func (r *Repository) RefreshTotal(ctx context.Context, id string) error {
	query := `
		UPDATE clients SET total_amount = COALESCE(
			(SELECT SUM(amount) FROM invoices WHERE client_id = $1 AND status <> 'paid'), 0
		), updated_at = NOW()
		WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("clients: refresh total: %w", err)
	}
	return nil
}

// TouchLastContact stamps the client's last_contact timestamp.
func (r *Repository) TouchLastContact(ctx context.Context, id string, at time.Time) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE clients SET last_contact = $1, updated_at = NOW() WHERE id = $2`, at, id); err != nil {
		return fmt.Errorf("clients: touch last contact: %w", err)
	}
	return nil
}

// Delete removes a client. Invoices, payments, communications and documents
// cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clients: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanClient(row pgx.Row) (*Client, error) {
	var (
		c           Client
		phone       pgtype.Text
		address     pgtype.Text
		company     pgtype.Text
		managerID   pgtype.Text
		userID      pgtype.Text
		lastContact pgtype.Timestamptz
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &phone, &address, &company,
		&managerID, &userID, &c.Status, &c.TotalAmount, &lastContact,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Phone = phone.String
	c.Address = address.String
	c.Company = company.String
	if managerID.Valid {
		c.ManagerID = &managerID.String
	}
	if userID.Valid {
		c.UserID = &userID.String
	}
	if lastContact.Valid {
		t := lastContact.Time
		c.LastContact = &t
	}
	return &c, nil
}

func textOrNull(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}
