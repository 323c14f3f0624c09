// Package audit defines the outbound port for the mutation audit log.
package audit

import (
	"context"

	"peppermint/internal/amqp"
)

// Appender records one committed mutation in the audit log.
type Appender interface {
	Append(ctx context.Context, ev *amqp.TransactionEventMessage) (rowRef string, err error)
}
