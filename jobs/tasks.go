package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sitebooks/sitebooks/internal/jobs"
	"github.com/sitebooks/sitebooks/internal/procurement"
	"github.com/sitebooks/sitebooks/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCompletePurchaseOrder runs the purchase order completion transition.
	TaskCompletePurchaseOrder = "procurement:po_complete"
)

// CompletePurchaseOrderPayload identifies the order to complete.
type CompletePurchaseOrderPayload struct {
	OrderID int64 `json:"order_id"`
}

// NewCompletePurchaseOrderTask constructs an Asynq task for order completion.
func NewCompletePurchaseOrderTask(orderID int64) (*asynq.Task, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("jobs: invalid order id %d", orderID)
	}
	body, err := json.Marshal(CompletePurchaseOrderPayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCompletePurchaseOrder, body, asynq.Queue(QueueDefault)), nil
}

// Completer runs the completion transition.
type Completer interface {
	CompletePurchaseOrder(ctx context.Context, id int64) (procurement.PurchaseOrder, error)
}

// CompletionJob processes TaskCompletePurchaseOrder tasks.
type CompletionJob struct {
	Service Completer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCompletionJob wires the completion handler.
func NewCompletionJob(service Completer, logger *slog.Logger, metrics *jobmetrics.Metrics) *CompletionJob {
	return &CompletionJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle completes the order named in the payload. Failures that cannot
// change on retry skip the retry queue; ErrBusy and infrastructure errors
// are retried.
func (j *CompletionJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("po complete: handler not configured")
	}
	var payload CompletePurchaseOrderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.OrderID <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskCompletePurchaseOrder)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.Int64("order_id", payload.OrderID))
	po, err := j.Service.CompletePurchaseOrder(ctx, payload.OrderID)
	if err != nil {
		if permanent(err) {
			logger.Warn("completion rejected", slog.Any("error", err))
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		logger.Error("completion failed", slog.Any("error", err))
		return err
	}
	attrs := []any{slog.String("number", po.Number)}
	if po.JournalVoucherID != nil {
		attrs = append(attrs, slog.Int64("voucher_id", *po.JournalVoucherID))
	}
	logger.Info("purchase order completed", attrs...)
	return nil
}

func (j *CompletionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func permanent(err error) bool {
	return errors.Is(err, shared.ErrNotFound) ||
		errors.Is(err, shared.ErrInvalidState) ||
		errors.Is(err, shared.ErrMissingConfiguration) ||
		errors.Is(err, shared.ErrValidation)
}
