package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventAction names the mutation that produced an event.
type EventAction string

const (
	ActionCreated EventAction = "created"
	ActionUpdated EventAction = "updated"
	ActionDeleted EventAction = "deleted"
)

// TransactionEventMessage describes one committed mutation against the
// backend. The audit worker consumes these and appends them to the audit
// log. The amount travels as its decimal string so no precision is lost in
// transit.
type TransactionEventMessage struct {
	Action        EventAction `json:"action"`
	AccountID     string      `json:"account_id"`
	TransactionID string      `json:"transaction_id"`
	Description   string      `json:"description,omitempty"`
	Category      string      `json:"category,omitempty"`
	Amount        string      `json:"amount,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

func NewTransactionEvent(action EventAction, accountID, transactionID string) *TransactionEventMessage {
	return &TransactionEventMessage{
		Action:        action,
		AccountID:     accountID,
		TransactionID: transactionID,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionEventMessage) Validate() error {
	switch m.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return fmt.Errorf("invalid action %q", m.Action)
	}
	if m.AccountID == "" {
		return fmt.Errorf("empty account id")
	}
	if m.TransactionID == "" {
		return fmt.Errorf("empty transaction id")
	}
	return nil
}

func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
