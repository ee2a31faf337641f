package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sitebooks/sitebooks/internal/jobs"
)

// TaskVoucherIntegrity scans posted vouchers for imbalances.
const TaskVoucherIntegrity = "accounting:voucher_integrity"

// NewVoucherIntegrityTask constructs the scheduled integrity scan task.
func NewVoucherIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskVoucherIntegrity, nil, asynq.Queue(QueueDefault))
}

// IntegrityChecker lists posted vouchers whose lines do not balance.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context) ([]int64, error)
}

// IntegrityJob reports unbalanced posted vouchers.
type IntegrityJob struct {
	Checker IntegrityChecker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIntegrityJob wires the integrity scan handler.
func NewIntegrityJob(checker IntegrityChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{Checker: checker, Logger: logger, Metrics: metrics}
}

// Handle executes one scan.
func (j *IntegrityJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Checker == nil {
		return errors.New("voucher integrity: handler not configured")
	}
	start := time.Now()
	tracker := j.Metrics.Track(TaskVoucherIntegrity)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	broken, err := j.Checker.CheckIntegrity(ctx)
	if err != nil {
		logger.Error("integrity scan failed", slog.Any("error", err))
		return err
	}
	j.Metrics.SetUnbalanced(len(broken))
	for _, id := range broken {
		logger.Warn("unbalanced voucher", slog.Int64("voucher_id", id))
	}
	logger.Info("integrity scan completed",
		slog.Int("unbalanced", len(broken)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
