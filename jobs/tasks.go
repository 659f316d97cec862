package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskReconcileDebts rewrites the customer debt mirror from the ledger.
	TaskReconcileDebts = "debts:reconcile"
	// TaskStockAlerts scans the catalog for low stock and expiry.
	TaskStockAlerts = "inventory:stock_alerts"
	// TaskDebtReminders emits reminders for overdue debts.
	TaskDebtReminders = "debts:remind"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// TaskTypes lists every task the worker understands, in trigger order.
var TaskTypes = []string{TaskReconcileDebts, TaskStockAlerts, TaskDebtReminders, TaskIdempotencyCleanup}

// Payload is shared by all scheduled tasks.
type Payload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask builds a task of the given type stamped with at.
func NewTask(taskType string, at time.Time) (*asynq.Task, error) {
	if !Known(taskType) {
		return nil, fmt.Errorf("jobs: unknown task %q", taskType)
	}
	data, err := json.Marshal(Payload{ScheduledFor: at.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// Known reports whether taskType is registered.
func Known(taskType string) bool {
	for _, t := range TaskTypes {
		if t == taskType {
			return true
		}
	}
	return false
}

func decodePayload(t *asynq.Task) (Payload, error) {
	var p Payload
	if len(t.Payload()) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return p, nil
}

// NewCronTask builds a task for periodic registration. It carries no payload
// since the scheduler replays the same task on every tick.
func NewCronTask(taskType string) (*asynq.Task, error) {
	if !Known(taskType) {
		return nil, fmt.Errorf("jobs: unknown task %q", taskType)
	}
	return asynq.NewTask(taskType, nil), nil
}
