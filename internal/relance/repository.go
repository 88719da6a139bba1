package relance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recouvra/recouvra/internal/clients"
)

// Repository provides PostgreSQL backed persistence for rules and
// templates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ruleColumns = `id, name, trigger_days, action, template_id, new_status, is_active, created_at, updated_at`
const templateColumns = `id, name, type, subject, content, variables, created_at, updated_at`

// InsertRule stores a new rule.
func (r *Repository) InsertRule(ctx context.Context, input CreateRuleInput) (*Rule, error) {
	rule := Rule{
		ID:          uuid.NewString(),
		Name:        input.Name,
		TriggerDays: input.TriggerDays,
		Action:      input.Action,
		TemplateID:  input.TemplateID,
		NewStatus:   input.NewStatus,
		IsActive:    input.IsActive,
	}

	var templateID, newStatus any
	if rule.TemplateID != nil {
		templateID = *rule.TemplateID
	}
	if rule.NewStatus != nil {
		newStatus = string(*rule.NewStatus)
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO relance_rules (id, name, trigger_days, action, template_id, new_status, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at`,
		rule.ID, rule.Name, rule.TriggerDays, string(rule.Action), templateID, newStatus, rule.IsActive,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("relance: insert rule: %w", err)
	}
	return &rule, nil
}

// ListRules enumerates every rule, ordered by ascending trigger_days.
func (r *Repository) ListRules(ctx context.Context) ([]Rule, error) {
	return r.listRules(ctx, `SELECT `+ruleColumns+` FROM relance_rules ORDER BY trigger_days ASC`)
}

// ListActiveRules enumerates active rules, ordered by ascending
// trigger_days.
func (r *Repository) ListActiveRules(ctx context.Context) ([]Rule, error) {
	return r.listRules(ctx, `SELECT `+ruleColumns+` FROM relance_rules WHERE is_active ORDER BY trigger_days ASC`)
}

func (r *Repository) listRules(ctx context.Context, query string) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("relance: list rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("relance: scan rule: %w", err)
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

// SetRuleActive toggles a rule.
func (r *Repository) SetRuleActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE relance_rules SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("relance: set rule active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// DeleteRule removes a rule.
func (r *Repository) DeleteRule(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM relance_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("relance: delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// InsertTemplate stores a new template.
func (r *Repository) InsertTemplate(ctx context.Context, input CreateTemplateInput) (*Template, error) {
	tpl := Template{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Type:      input.Type,
		Subject:   input.Subject,
		Content:   input.Content,
		Variables: input.Variables,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO relance_templates (id, name, type, subject, content, variables, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at`,
		tpl.ID, tpl.Name, string(tpl.Type), tpl.Subject, tpl.Content, tpl.Variables,
	).Scan(&tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("relance: insert template: %w", err)
	}
	return &tpl, nil
}

// GetTemplate retrieves a template by ID.
func (r *Repository) GetTemplate(ctx context.Context, id string) (*Template, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM relance_templates WHERE id = $1`, id)
	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("relance: get template: %w", err)
	}
	return tpl, nil
}

// ListTemplates enumerates templates, newest first.
func (r *Repository) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+` FROM relance_templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("relance: list templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("relance: scan template: %w", err)
		}
		out = append(out, *tpl)
	}
	return out, rows.Err()
}

// DeleteTemplate removes a template. Rules referencing it keep their
// template_id; evaluation treats the dangling reference as a non-fatal
// configuration error.
func (r *Repository) DeleteTemplate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM relance_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("relance: delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func scanRule(row pgx.Row) (*Rule, error) {
	var (
		rule       Rule
		templateID pgtype.Text
		newStatus  pgtype.Text
	)
	err := row.Scan(&rule.ID, &rule.Name, &rule.TriggerDays, &rule.Action,
		&templateID, &newStatus, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if templateID.Valid {
		rule.TemplateID = &templateID.String
	}
	if newStatus.Valid {
		status := clients.Status(newStatus.String)
		rule.NewStatus = &status
	}
	return &rule, nil
}

func scanTemplate(row pgx.Row) (*Template, error) {
	var (
		tpl     Template
		subject pgtype.Text
	)
	err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Type, &subject, &tpl.Content,
		&tpl.Variables, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tpl.Subject = subject.String
	return &tpl, nil
}
