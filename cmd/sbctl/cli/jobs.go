package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/sitebooks/sitebooks/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	raw       *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	if redisAddr == "" {
		return nil, errors.New("jobs cli: redis address required")
	}
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, raw: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.raw != nil {
		if closeErr := c.raw.Close(); closeErr != nil {
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

// EnqueueCompletion queues completion of order id.
func (c *JobsCLI) EnqueueCompletion(ctx context.Context, id int64) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueCompletion(ctx, id)
}

// Trigger enqueues a supported job by name with default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.raw == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskVoucherIntegrity:
		return c.raw.EnqueueContext(ctx, jobs.NewVoucherIntegrityTask(), asynq.MaxRetry(3))
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
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

func jobsCLI(cmd *cobra.Command) (*JobsCLI, error) {
	addr, _ := cmd.Flags().GetString("redis-addr")
	return NewJobsCLI(addr)
}

func newJobsCommand() *cobra.Command {
	root := &cobra.Command{Use: "jobs", Short: "Background job helpers"}
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jc, err := jobsCLI(cmd)
			if err != nil {
				return err
			}
			defer jc.Close()
			s, err := jc.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, s)
		},
	}
	trigger := &cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a scheduled job immediately",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskVoucherIntegrity},
		RunE: func(cmd *cobra.Command, args []string) error {
			jc, err := jobsCLI(cmd)
			if err != nil {
				return err
			}
			defer jc.Close()
			info, err := jc.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s (%s)\n", info.ID, info.Type)
			return nil
		},
	}
	root.AddCommand(stats, trigger)
	return root
}
