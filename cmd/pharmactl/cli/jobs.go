package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pharmadesk/pharmadesk/jobs"
)

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    taskEnqueuer
	inspector queueInspector
	now       func() time.Time
}

// NewJobsCLI initialises the CLI helpers using the provided Redis options.
func NewJobsCLI(redisOpts asynq.RedisClientOpt) (*JobsCLI, error) {
	if redisOpts.Addr == "" {
		return nil, errors.New("jobs cli: redis address required")
	}
	return &JobsCLI{
		client:    asynq.NewClient(redisOpts),
		inspector: asynq.NewInspector(redisOpts),
		now:       time.Now,
	}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name with default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	if !jobs.Known(name) {
		return nil, fmt.Errorf("jobs cli: unsupported job %s (known: %s)", name, strings.Join(jobs.TaskTypes, ", "))
	}
	task, err := jobs.NewTask(name, c.now())
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// Output carries the writers of a command.
type Output struct {
	JSON   bool
	Stdout io.Writer
	Stderr io.Writer
}

func (o *Output) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// TriggerCommand enqueues name and returns a process exit code.
func (c *JobsCLI) TriggerCommand(ctx context.Context, name string, out Output) int {
	out.defaults()
	info, err := c.Trigger(ctx, strings.TrimSpace(name))
	if err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "trigger: %v\n", err)
		return 1
	}
	if out.JSON {
		_ = json.NewEncoder(out.Stdout).Encode(map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue})
		return 0
	}
	_, _ = fmt.Fprintf(out.Stdout, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	return 0
}

// QueueCommand prints queue statistics and the next scheduled tasks.
func (c *JobsCLI) QueueCommand(ctx context.Context, out Output) int {
	out.defaults()
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "queue: %v\n", err)
		return 1
	}
	scheduled, err := c.ListScheduled(ctx, 10)
	if err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "queue: list scheduled: %v\n", err)
		return 1
	}
	if out.JSON {
		type upcoming struct {
			Type string    `json:"type"`
			At   time.Time `json:"at"`
		}
		next := make([]upcoming, 0, len(scheduled))
		for _, t := range scheduled {
			next = append(next, upcoming{Type: t.Type, At: t.NextProcessAt})
		}
		_ = json.NewEncoder(out.Stdout).Encode(struct {
			QueueStats
			Upcoming []upcoming `json:"upcoming"`
		}{stats, next})
		return 0
	}
	tw := tabwriter.NewWriter(out.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "queue\t%s\n", stats.Queue)
	_, _ = fmt.Fprintf(tw, "pending\t%d\nactive\t%d\nscheduled\t%d\nretry\t%d\narchived\t%d\n",
		stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	for _, t := range scheduled {
		_, _ = fmt.Fprintf(tw, "next\t%s\t%s\n", t.Type, t.NextProcessAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
	return 0
}
