package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/corray333/frameshop/order/internal/dal/interfaces/ieventpublisher"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/iwarningrepo"
	"github.com/corray333/frameshop/order/internal/service/models/event"
	"github.com/corray333/frameshop/order/internal/service/models/outbox"
	"github.com/corray333/frameshop/order/internal/service/models/warning"
)

// Worker relays change events from the outbox table to the event publisher.
type Worker struct {
	outboxRepo    ioutboxrepo.IOutboxRepository
	publisher     ieventpublisher.IEventPublisher
	warnings      iwarningrepo.IWarningRepository
	pollInterval  time.Duration
	batchSize     int
	retryInterval time.Duration
	now           func() time.Time
	stopCh        chan struct{}
}

// NewWorker creates a new outbox worker.
// Messages that exhaust their retries are recorded in warnings and removed.
func NewWorker(
	outboxRepo ioutboxrepo.IOutboxRepository,
	publisher ieventpublisher.IEventPublisher,
	warnings iwarningrepo.IWarningRepository,
) *Worker {
	pollIntervalSeconds := viper.GetInt("outbox.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 1
	}

	batchSize := viper.GetInt("outbox.batch_size")
	if batchSize == 0 {
		batchSize = 100
	}

	retryIntervalSeconds := viper.GetInt("outbox.retry_interval_seconds")
	if retryIntervalSeconds == 0 {
		retryIntervalSeconds = 30
	}

	return &Worker{
		outboxRepo:    outboxRepo,
		publisher:     publisher,
		warnings:      warnings,
		pollInterval:  time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:     batchSize,
		retryInterval: time.Duration(retryIntervalSeconds) * time.Second,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

// Start begins processing messages from the outbox.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.processMessages(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// processMessages retrieves and relays pending messages from the outbox.
func (w *Worker) processMessages(ctx context.Context) {
	messages, err := w.outboxRepo.GetPendingMessages(ctx, w.batchSize)
	if err != nil {
		slog.Error("Failed to get pending messages from outbox", "error", err)

		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Debug("Processing outbox messages", "count", len(messages))

	for _, msg := range messages {
		if err := w.publisher.Publish(ctx, msg); err != nil {
			w.handleFailure(ctx, msg, err)
			continue
		}

		if err := w.outboxRepo.Delete(ctx, msg.ID); err != nil {
			slog.Error("Failed to delete message from outbox after successful publish",
				"outbox_id", msg.ID,
				"error", err,
			)
		}
	}
}

func (w *Worker) handleFailure(ctx context.Context, msg outbox.OutboxMessage, publishErr error) {
	newRetryCount := msg.RetryCount + 1
	if newRetryCount >= msg.MaxRetries {
		w.deadLetter(ctx, msg, publishErr)
		return
	}

	// 2^n * retry interval: 60s, 120s, 240s with the default interval
	backoff := time.Duration(math.Pow(2, float64(newRetryCount))) * w.retryInterval
	nextRetryAt := w.now().Add(backoff)

	slog.Warn("Failed to publish message from outbox, will retry",
		"outbox_id", msg.ID,
		"retry_count", newRetryCount,
		"next_retry", nextRetryAt,
		"error", publishErr,
	)

	if err := w.outboxRepo.UpdateRetry(ctx, msg.ID, newRetryCount, publishErr.Error(), nextRetryAt); err != nil {
		slog.Error("Failed to update retry information", "outbox_id", msg.ID, "error", err)
	}
}

// deadLetter records an undeliverable event as a consistency warning and drops it.
func (w *Worker) deadLetter(ctx context.Context, msg outbox.OutboxMessage, publishErr error) {
	cw := warning.ConsistencyWarning{
		Source:    warning.SourceOutbox,
		Message:   fmt.Sprintf("change event %d undeliverable after %d attempts: %v", msg.ID, msg.RetryCount+1, publishErr),
		CreatedAt: w.now(),
	}
	var e event.Event
	if err := json.Unmarshal(msg.Payload, &e); err == nil && e.OrderID != uuid.Nil {
		cw.OrderID = &e.OrderID
	}

	slog.Warn("Consistency warning", "source", cw.Source, "outbox_id", msg.ID, "order_id", cw.OrderID, "error", publishErr)

	if w.warnings != nil {
		if err := w.warnings.Insert(ctx, cw); err != nil {
			slog.Error("Failed to persist consistency warning", "outbox_id", msg.ID, "error", err)
			return
		}
	}
	if err := w.outboxRepo.Delete(ctx, msg.ID); err != nil {
		slog.Error("Failed to delete dead-lettered outbox message", "outbox_id", msg.ID, "error", err)
	}
}
