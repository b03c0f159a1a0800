package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "freelancehub/contracts/mq"
	"freelancehub/internal/model"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/util"
)

const (
	maxRetries = 5

	completionHandlerName = "project_completion"
)

// Deduper is satisfied by util.Deduper.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, eventID string) bool
	Release(ctx context.Context, handler, eventID string)
}

// RetryCounter is satisfied by util.RetryCounter.
type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// DeadLetter is satisfied by mq.Publisher.
type DeadLetter interface {
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError, source string) error
}

// ProjectCompleter is satisfied by roadmap.Engine.
type ProjectCompleter interface {
	CompleteProjectIfFinished(ctx context.Context, projectID string) (bool, error)
}

// ProjectCompletionHandler consumes milestone.status_changed and closes the
// project once its last milestone is COMPLETED.
type ProjectCompletionHandler struct {
	completer    ProjectCompleter
	deduper      Deduper
	retryCounter RetryCounter
	dlq          DeadLetter
	logger       *zap.Logger
}

func NewProjectCompletionHandler(
	completer ProjectCompleter,
	deduper Deduper,
	retryCounter RetryCounter,
	dlq DeadLetter,
	logger *zap.Logger,
) *ProjectCompletionHandler {
	return &ProjectCompletionHandler{
		completer:    completer,
		deduper:      deduper,
		retryCounter: retryCounter,
		dlq:          dlq,
		logger:       logger,
	}
}

// Handle returns an error only when the message should be requeued.
func (h *ProjectCompletionHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var p mqcontracts.MilestoneStatusChangedPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.EventID == "" || p.ProjectID == "" {
		if err == nil {
			err = fmt.Errorf("missing event_id or project_id")
		}
		log.Error("Invalid milestone.status_changed payload, sending to DLQ", zap.Error(err))
		h.deadLetter(ctx, raw, err)
		return nil
	}

	if p.To != string(model.MilestoneCompleted) {
		return nil
	}

	// Redis 去重
	if !h.deduper.AcquireOnce(ctx, completionHandlerName, p.EventID) {
		return nil
	}

	retryKey := util.FormatRetryKey(completionHandlerName, p.EventID)
	completed, err := h.completer.CompleteProjectIfFinished(ctx, p.ProjectID)
	if err != nil {
		return h.handleError(ctx, raw, p, retryKey, err)
	}
	if err := h.retryCounter.Reset(ctx, retryKey); err != nil {
		log.Warn("Failed to reset retry counter", zap.String("key", retryKey), zap.Error(err))
	}

	if completed {
		log.Info("Project completed",
			zap.String("project_id", p.ProjectID),
			zap.String("last_milestone_id", p.MilestoneID),
		)
	}
	return nil
}

func (h *ProjectCompletionHandler) handleError(ctx context.Context, raw json.RawMessage, p mqcontracts.MilestoneStatusChangedPayload, retryKey string, err error) error {
	log := logger.WithTrace(ctx, h.logger)
	isRetryable, errType := util.IsRetryableError(err)

	retryCount, cerr := h.retryCounter.IncrementAndGet(ctx, retryKey)
	if cerr != nil {
		log.Warn("Retry counter unavailable", zap.Error(cerr))
	}

	log.Error("Project completion check failed",
		zap.String("project_id", p.ProjectID),
		zap.String("event_id", p.EventID),
		zap.String("error_type", errType),
		zap.Bool("retryable", isRetryable),
		zap.Int64("retry", retryCount),
		zap.Error(err),
	)

	if util.ShouldRetry(retryCount, maxRetries, isRetryable) {
		// the redelivery must get past the dedup check
		h.deduper.Release(ctx, completionHandlerName, p.EventID)
		return err
	}

	h.deadLetter(ctx, raw, err)
	if rerr := h.retryCounter.Reset(ctx, retryKey); rerr != nil {
		log.Warn("Failed to reset retry counter", zap.String("key", retryKey), zap.Error(rerr))
	}
	return nil
}

func (h *ProjectCompletionHandler) deadLetter(ctx context.Context, raw json.RawMessage, cause error) {
	if err := h.dlq.PublishToDLQ(ctx, mqcontracts.RoutingMilestoneStatusChanged, raw, cause.Error(), completionHandlerName); err != nil {
		logger.WithTrace(ctx, h.logger).Error("Failed to publish to DLQ", zap.Error(err))
	}
}
