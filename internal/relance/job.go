package relance

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/recouvra/recouvra/jobs"
)

// ScanJob processes escalation scan tasks.
type ScanJob struct {
	service *Service
	logger  *slog.Logger
}

// NewScanJob constructs a job handler.
func NewScanJob(service *Service, logger *slog.Logger) *ScanJob {
	return &ScanJob{service: service, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *ScanJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.RelanceScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	report, err := j.service.RunScan(ctx, payload.AsOf)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("relance scan", slog.Any("error", err))
		}
		return err
	}
	if j.logger != nil {
		j.logger.Info("relance scan complete",
			slog.Int("evaluated", report.Evaluated),
			slog.Int("status_changes", report.StatusChanges),
			slog.Int("dispatched", report.Dispatched),
			slog.Int("escalated", report.Escalated),
			slog.Int("skipped", report.Skipped),
			slog.Int("failures", report.Failures))
	}
	return nil
}
