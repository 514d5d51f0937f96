package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danielvega/tradeyard-backend/pkg/db/models"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
	"github.com/danielvega/tradeyard-backend/pkg/logger"
	"github.com/danielvega/tradeyard-backend/pkg/outbox"
	"github.com/danielvega/tradeyard-backend/pkg/outbox/payloads"
)

const chatConsumerName = "chat-worker"

type MessageWriter interface {
	Insert(ctx context.Context, message *models.ChatMessage) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer appends a system message to the order's chat thread for every
// lifecycle event. Redelivery is deduplicated via the Redis guard, so one
// event produces at most one message.
type Consumer struct {
	writer  MessageWriter
	manager idempotencyChecker
	logg    *logger.Logger
	handled map[enums.OutboxEventType]struct{}
}

// NewConsumer builds the chat system-message consumer.
func NewConsumer(writer MessageWriter, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if writer == nil {
		return nil, fmt.Errorf("chat message writer required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		writer:  writer,
		manager: manager,
		logg:    logg,
		handled: map[enums.OutboxEventType]struct{}{
			enums.EventOrderCreated:   {},
			enums.EventOrderPaid:      {},
			enums.EventOrderShipped:   {},
			enums.EventOrderConfirmed: {},
			enums.EventOrderCanceled:  {},
		},
	}, nil
}

// Process handles one delivered envelope. Returning an error nacks the
// message so the broker redelivers it.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if _, ok := c.handled[eventType]; !ok {
		c.logg.Info(logCtx, "event not handled by chat consumer")
		return nil
	}

	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, chatConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	var payload payloads.OrderStatusChangedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to decode status event", err)
		_ = c.manager.Delete(ctx, chatConsumerName, eventID)
		return fmt.Errorf("decode status event: %w", err)
	}

	message := &models.ChatMessage{
		OrderID: payload.OrderID,
		Body:    systemMessageBody(payload),
		System:  true,
	}
	if err := c.writer.Insert(ctx, message); err != nil {
		c.logg.Error(logCtx, "failed to append system message", err)
		_ = c.manager.Delete(ctx, chatConsumerName, eventID)
		return err
	}

	c.logg.Info(logCtx, "system message appended")
	return nil
}

func systemMessageBody(payload payloads.OrderStatusChangedEvent) string {
	switch payload.NewStatus {
	case enums.OrderStatusPending:
		return "Order placed. The item is reserved for this buyer."
	case enums.OrderStatusPaid:
		return "Payment received. Waiting for the seller to ship."
	case enums.OrderStatusShipped:
		return "The seller marked the order as shipped."
	case enums.OrderStatusCompleted:
		return "The buyer confirmed receipt. Order complete."
	case enums.OrderStatusCancelled:
		if payload.Reason != "" {
			return fmt.Sprintf("Order cancelled (%s).", payload.Reason)
		}
		return "Order cancelled."
	default:
		return fmt.Sprintf("Order status changed to %s.", payload.NewStatus)
	}
}

type gormMessageWriter struct {
	db *gorm.DB
}

// NewMessageWriter returns the default GORM-backed chat message writer.
func NewMessageWriter(db *gorm.DB) MessageWriter {
	return &gormMessageWriter{db: db}
}

func (w *gormMessageWriter) Insert(ctx context.Context, message *models.ChatMessage) error {
	return w.db.WithContext(ctx).Create(message).Error
}
