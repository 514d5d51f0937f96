package reviews

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/danielvega/tradeyard-backend/pkg/db/models"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
	"github.com/danielvega/tradeyard-backend/pkg/logger"
	"github.com/danielvega/tradeyard-backend/pkg/outbox"
	"github.com/danielvega/tradeyard-backend/pkg/outbox/payloads"
)

type ObligationWriter interface {
	InsertIfAbsent(ctx context.Context, reviews []*models.PendingReview) error
}

// Consumer materializes review obligations from completion events: one row
// for the buyer reviewing the seller and one for the seller reviewing the
// buyer. Deduplication lives in the database, the unique (order, reviewer)
// index makes redelivered events write nothing, so no Redis marker is needed.
type Consumer struct {
	writer ObligationWriter
	logg   *logger.Logger
}

// NewConsumer builds the review-obligation consumer.
func NewConsumer(writer ObligationWriter, logg *logger.Logger) (*Consumer, error) {
	if writer == nil {
		return nil, fmt.Errorf("obligation writer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{writer: writer, logg: logg}, nil
}

// Process handles one delivered envelope. Returning an error nacks the
// message so the broker redelivers it.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if eventType != enums.EventOrderCompleted {
		c.logg.Info(logCtx, "event not handled by reviews consumer")
		return nil
	}

	var payload payloads.OrderCompletedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to decode completion event", err)
		return fmt.Errorf("decode completion event: %w", err)
	}

	obligations := []*models.PendingReview{
		{
			OrderID:    payload.OrderID,
			ReviewerID: payload.BuyerID,
			SubjectID:  payload.SellerID,
			ItemID:     payload.ItemID,
		},
		{
			OrderID:    payload.OrderID,
			ReviewerID: payload.SellerID,
			SubjectID:  payload.BuyerID,
			ItemID:     payload.ItemID,
		},
	}
	if err := c.writer.InsertIfAbsent(ctx, obligations); err != nil {
		c.logg.Error(logCtx, "failed to materialize review obligations", err)
		return err
	}

	c.logg.Info(c.logg.WithOrderID(logCtx, payload.OrderID.String()), "review obligations materialized")
	return nil
}

type gormObligationWriter struct {
	db *gorm.DB
}

// NewObligationWriter returns the default GORM-backed obligation writer.
func NewObligationWriter(db *gorm.DB) ObligationWriter {
	return &gormObligationWriter{db: db}
}

func (w *gormObligationWriter) InsertIfAbsent(ctx context.Context, reviews []*models.PendingReview) error {
	return w.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(reviews).Error
}
