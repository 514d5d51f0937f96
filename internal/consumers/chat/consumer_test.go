package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielvega/tradeyard-backend/pkg/db/models"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
	"github.com/danielvega/tradeyard-backend/pkg/logger"
	"github.com/danielvega/tradeyard-backend/pkg/outbox"
	"github.com/danielvega/tradeyard-backend/pkg/outbox/payloads"
)

type stubWriter struct {
	inserted []*models.ChatMessage
	err      error
}

func (w *stubWriter) Insert(_ context.Context, message *models.ChatMessage) error {
	if w.err != nil {
		return w.err
	}
	w.inserted = append(w.inserted, message)
	return nil
}

type stubIdempotency struct {
	seen    map[string]bool
	deleted []string
	err     error
}

func newStubIdempotency() *stubIdempotency {
	return &stubIdempotency{seen: map[string]bool{}}
}

func (m *stubIdempotency) CheckAndMarkProcessed(_ context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	key := consumer + ":" + eventID.String()
	if m.seen[key] {
		return true, nil
	}
	m.seen[key] = true
	return false, nil
}

func (m *stubIdempotency) Delete(_ context.Context, consumer string, eventID uuid.UUID) error {
	key := consumer + ":" + eventID.String()
	delete(m.seen, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func newChatConsumer(t *testing.T, writer *stubWriter, manager *stubIdempotency) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(writer, manager, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return consumer
}

func statusEnvelope(t *testing.T, status enums.OrderStatus, reason string) (outbox.PayloadEnvelope, payloads.OrderStatusChangedEvent) {
	t.Helper()
	payload := payloads.OrderStatusChangedEvent{
		OrderID:    uuid.New(),
		ItemID:     uuid.New(),
		BuyerID:    uuid.New(),
		SellerID:   uuid.New(),
		NewStatus:  status,
		Price:      decimal.NewFromInt(40),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: payload.OccurredAt,
		Data:       raw,
	}, payload
}

func TestProcessAppendsSystemMessage(t *testing.T) {
	writer := &stubWriter{}
	manager := newStubIdempotency()
	consumer := newChatConsumer(t, writer, manager)

	envelope, payload := statusEnvelope(t, enums.OrderStatusPaid, "")
	if err := consumer.Process(context.Background(), enums.EventOrderPaid, envelope); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(writer.inserted) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.inserted))
	}
	message := writer.inserted[0]
	if message.OrderID != payload.OrderID {
		t.Fatalf("message bound to wrong order: %s", message.OrderID)
	}
	if !message.System {
		t.Fatal("expected a system message")
	}
	if !strings.Contains(message.Body, "Payment received") {
		t.Fatalf("unexpected body: %q", message.Body)
	}
}

func TestProcessDeduplicatesRedelivery(t *testing.T) {
	writer := &stubWriter{}
	manager := newStubIdempotency()
	consumer := newChatConsumer(t, writer, manager)

	envelope, _ := statusEnvelope(t, enums.OrderStatusShipped, "")
	for i := 0; i < 3; i++ {
		if err := consumer.Process(context.Background(), enums.EventOrderShipped, envelope); err != nil {
			t.Fatalf("Process attempt %d: %v", i, err)
		}
	}

	if len(writer.inserted) != 1 {
		t.Fatalf("expected exactly 1 message after redelivery, got %d", len(writer.inserted))
	}
}

func TestProcessIgnoresUnhandledEvent(t *testing.T) {
	writer := &stubWriter{}
	manager := newStubIdempotency()
	consumer := newChatConsumer(t, writer, manager)

	envelope, _ := statusEnvelope(t, enums.OrderStatusCompleted, "")
	if err := consumer.Process(context.Background(), enums.EventOrderCompleted, envelope); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(writer.inserted) != 0 {
		t.Fatal("completion event should not produce a chat message")
	}
	if len(manager.seen) != 0 {
		t.Fatal("unhandled events must not consume idempotency markers")
	}
}

func TestProcessInsertFailureReleasesMarker(t *testing.T) {
	writer := &stubWriter{err: errors.New("db down")}
	manager := newStubIdempotency()
	consumer := newChatConsumer(t, writer, manager)

	envelope, _ := statusEnvelope(t, enums.OrderStatusPending, "")
	if err := consumer.Process(context.Background(), enums.EventOrderCreated, envelope); err == nil {
		t.Fatal("expected insert failure to propagate")
	}
	if len(manager.deleted) != 1 {
		t.Fatalf("expected idempotency marker rollback, got %d deletes", len(manager.deleted))
	}

	// Redelivery after the failure must go through again.
	writer.err = nil
	if err := consumer.Process(context.Background(), enums.EventOrderCreated, envelope); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected the retry to insert, got %d", len(writer.inserted))
	}
}

func TestProcessBadPayloadIsNacked(t *testing.T) {
	writer := &stubWriter{}
	manager := newStubIdempotency()
	consumer := newChatConsumer(t, writer, manager)

	envelope := outbox.PayloadEnvelope{
		Version: 1,
		EventID: uuid.NewString(),
		Data:    json.RawMessage(`{"orderId": 7}`),
	}
	if err := consumer.Process(context.Background(), enums.EventOrderCanceled, envelope); err == nil {
		t.Fatal("expected decode error")
	}
	if len(manager.deleted) != 1 {
		t.Fatal("decode failure must release the idempotency marker")
	}
}

func TestSystemMessageBodies(t *testing.T) {
	cases := []struct {
		status enums.OrderStatus
		reason string
		want   string
	}{
		{enums.OrderStatusPending, "", "Order placed"},
		{enums.OrderStatusPaid, "", "Payment received"},
		{enums.OrderStatusShipped, "", "marked the order as shipped"},
		{enums.OrderStatusCancelled, "expired", "Order cancelled (expired)."},
		{enums.OrderStatusCancelled, "", "Order cancelled."},
	}
	for _, tc := range cases {
		body := systemMessageBody(payloads.OrderStatusChangedEvent{NewStatus: tc.status, Reason: tc.reason})
		if !strings.Contains(body, tc.want) {
			t.Fatalf("status %s: body %q missing %q", tc.status, body, tc.want)
		}
	}
}
