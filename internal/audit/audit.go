// Package audit writes the system_logs trail. Recording is best-effort: a
// failed audit write is logged and never fails the business operation it
// describes.
package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry describes one audited event.
type Entry struct {
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Detail   string
}

// Recorder accepts audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Service persists entries to the system_logs table.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService constructs the audit service.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{pool: pool, logger: logger}
}

// Record inserts a system log row.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if s == nil || s.pool == nil {
		return
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO system_logs (id, actor_id, action, entity, entity_id, detail, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NOW())`,
		uuid.NewString(), entry.ActorID, entry.Action, entry.Entity, entry.EntityID, entry.Detail)
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record",
			slog.String("action", entry.Action),
			slog.String("entity", entry.Entity),
			slog.Any("error", err))
	}
}

// Noop discards entries; used in tests.
type Noop struct{}

// Record implements Recorder.
func (Noop) Record(context.Context, Entry) {}
