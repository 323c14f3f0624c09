package amqp

import (
	"testing"
	"time"
)

func TestTransactionEventValidate(t *testing.T) {
	good := NewTransactionEvent(ActionDeleted, "acc-1", "tx-1")
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []*TransactionEventMessage{
		{Action: "exploded", AccountID: "a", TransactionID: "t"},
		{Action: ActionCreated, AccountID: "", TransactionID: "t"},
		{Action: ActionCreated, AccountID: "a", TransactionID: ""},
	}
	for i, m := range bads {
		if err := m.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionEventJSONRoundTrip(t *testing.T) {
	msg := NewTransactionEvent(ActionCreated, "acc-1", "tx-1")
	msg.Description = "rent"
	msg.Category = "Housing"
	msg.Amount = "-900.00"
	msg.Timestamp = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := TransactionEventFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Action != ActionCreated || got.Amount != "-900.00" || !got.Timestamp.Equal(msg.Timestamp) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestTransactionEventFromJSONRejectsGarbage(t *testing.T) {
	if _, err := TransactionEventFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error")
	}
}
