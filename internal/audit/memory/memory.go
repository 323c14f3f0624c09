// Package memory is an in-process audit appender for tests and demo mode.
package memory

import (
	"context"
	"fmt"
	"sync"

	"peppermint/internal/amqp"
)

type Store struct {
	mu   sync.Mutex
	rows []*amqp.TransactionEventMessage
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, ev *amqp.TransactionEventMessage) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, ev)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the appended events.
func (s *Store) Rows() []*amqp.TransactionEventMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*amqp.TransactionEventMessage(nil), s.rows...)
}
