package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const documentColumns = `id, client_id, invoice_id, name, type, path, size, uploaded_by, created_at`

// Create stores a document record.
func (r *Repository) Create(ctx context.Context, input CreateDocumentInput) (*Document, error) {
	doc := Document{
		ID:         uuid.NewString(),
		ClientID:   input.ClientID,
		InvoiceID:  input.InvoiceID,
		Name:       input.Name,
		Type:       input.Type,
		Path:       input.Path,
		Size:       input.Size,
		UploadedBy: input.UploadedBy,
	}

	var invoiceID, uploadedBy any
	if doc.InvoiceID != nil {
		invoiceID = *doc.InvoiceID
	}
	if doc.UploadedBy != nil {
		uploadedBy = *doc.UploadedBy
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO documents (id, client_id, invoice_id, name, type, path, size, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at`,
		doc.ID, doc.ClientID, invoiceID, doc.Name, string(doc.Type), doc.Path, doc.Size, uploadedBy,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("documents: insert: %w", err)
	}
	return &doc, nil
}

// Get retrieves a document by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("documents: get: %w", err)
	}
	return doc, nil
}

// List enumerates documents, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	var (
		where []string
		args  []any
	)
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if len(filter.ClientIDs) > 0 {
		args = append(args, filter.ClientIDs)
		where = append(where, fmt.Sprintf("client_id = ANY($%d)", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("documents: list: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("documents: scan: %w", err)
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

// Delete removes a document record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("documents: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var (
		doc        Document
		invoiceID  pgtype.Text
		uploadedBy pgtype.Text
	)
	err := row.Scan(&doc.ID, &doc.ClientID, &invoiceID, &doc.Name, &doc.Type,
		&doc.Path, &doc.Size, &uploadedBy, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if invoiceID.Valid {
		doc.InvoiceID = &invoiceID.String
	}
	if uploadedBy.Valid {
		doc.UploadedBy = &uploadedBy.String
	}
	return &doc, nil
}
