package communications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for communications.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const communicationColumns = `id, client_id, user_id, type, subject, content, status,
	scheduled_at, sent_at, metadata, created_at, updated_at`

// Create inserts a new communication.
func (r *Repository) Create(ctx context.Context, input CreateCommunicationInput) (*Communication, error) {
	status := input.Status
	if status == "" {
		status = StatusSent
	}

	c := Communication{
		ID:          uuid.NewString(),
		ClientID:    input.ClientID,
		UserID:      input.UserID,
		Type:        input.Type,
		Subject:     input.Subject,
		Content:     input.Content,
		Status:      status,
		ScheduledAt: input.ScheduledAt,
		SentAt:      input.SentAt,
		Metadata:    input.Metadata,
	}

	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("communications: marshal metadata: %w", err)
	}
	var userID, scheduledAt, sentAt any
	if c.UserID != nil {
		userID = *c.UserID
	}
	if c.ScheduledAt != nil {
		scheduledAt = *c.ScheduledAt
	}
	if c.SentAt != nil {
		sentAt = *c.SentAt
	}

	query := `
		INSERT INTO communications (id, client_id, user_id, type, subject, content, status, scheduled_at, sent_at, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at`
	err = r.pool.QueryRow(ctx, query,
		c.ID, c.ClientID, userID, string(c.Type), c.Subject, c.Content,
		string(c.Status), scheduledAt, sentAt, metadata,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("communications: insert: %w", err)
	}
	return &c, nil
}

// Get retrieves a communication by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Communication, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+communicationColumns+` FROM communications WHERE id = $1`, id)
	c, err := scanCommunication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("communications: get: %w", err)
	}
	return c, nil
}

// List enumerates communications matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Communication, error) {
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
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}

	query := `SELECT ` + communicationColumns + ` FROM communications`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("communications: list: %w", err)
	}
	defer rows.Close()

	var out []Communication
	for rows.Next() {
		c, err := scanCommunication(rows)
		if err != nil {
			return nil, fmt.Errorf("communications: scan: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// HasRuleCommunication reports whether a communication tagged with the rule
// exists for the client since the given time.
func (r *Repository) HasRuleCommunication(ctx context.Context, clientID, ruleID string, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM communications
			WHERE client_id = $1 AND metadata->>'rule_id' = $2 AND created_at >= $3
		)`, clientID, ruleID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("communications: has rule communication: %w", err)
	}
	return exists, nil
}

// UpdateStatus records a delivery-status update.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE communications SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("communications: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCommunication(row pgx.Row) (*Communication, error) {
	var (
		c           Communication
		userID      pgtype.Text
		subject     pgtype.Text
		scheduledAt pgtype.Timestamptz
		sentAt      pgtype.Timestamptz
		metadata    []byte
	)
	err := row.Scan(&c.ID, &c.ClientID, &userID, &c.Type, &subject, &c.Content,
		&c.Status, &scheduledAt, &sentAt, &metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		c.UserID = &userID.String
	}
	c.Subject = subject.String
	if scheduledAt.Valid {
		t := scheduledAt.Time
		c.ScheduledAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		c.SentAt = &t
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("communications: unmarshal metadata: %w", err)
		}
	}
	return &c, nil
}
