package worker

import (
	"context"
	"fmt"
	"log/slog"

	"peppermint/internal/amqp"
	"peppermint/internal/audit"
)

// AuditWorker consumes transaction mutation events and appends them to the
// audit log.
type AuditWorker struct {
	appender audit.Appender
}

func NewAuditWorker(appender audit.Appender) *AuditWorker {
	return &AuditWorker{appender: appender}
}

// HandleEvent processes a single mutation event from AMQP.
func (w *AuditWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"action", msg.Action,
		"account_id", msg.AccountID,
		"transaction_id", msg.TransactionID)

	if w.appender == nil {
		slog.WarnContext(ctx, "No audit appender configured, dropping event")
		return nil
	}

	if err := msg.Validate(); err != nil {
		// A malformed event will never become valid on redelivery.
		slog.ErrorContext(ctx, "Dropping invalid event", "error", err)
		return nil
	}

	ref, err := w.appender.Append(ctx, msg)
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}

	slog.InfoContext(ctx, "Audit row recorded", "ref", ref)
	return nil
}
