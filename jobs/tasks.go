package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/recouvra/recouvra/internal/communications"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRelanceScan is the task type for the escalation scan.
	TaskRelanceScan = "relance:scan"
	// TaskDispatchMessage is the task type for delivering an outbound
	// communication.
	TaskDispatchMessage = "comm:dispatch"
)

// RelanceScanPayload configures one scan run. A zero AsOf means "now".
type RelanceScanPayload struct {
	AsOf time.Time `json:"as_of,omitzero"`
}

// NewRelanceScanTask constructs an Asynq task for the escalation scan.
func NewRelanceScanTask(payload RelanceScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRelanceScan, data), nil
}

// DispatchMessagePayload carries a rendered message to the worker.
type DispatchMessagePayload struct {
	Message communications.Message `json:"message"`
}

// NewDispatchMessageTask constructs an Asynq task for message delivery.
func NewDispatchMessageTask(payload DispatchMessagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDispatchMessage, data), nil
}
