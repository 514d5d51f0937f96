package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/danielvega/tradeyard-backend/pkg/db/models"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
	"github.com/danielvega/tradeyard-backend/pkg/logger"
	"github.com/danielvega/tradeyard-backend/pkg/outbox"
	"github.com/danielvega/tradeyard-backend/pkg/outbox/payloads"
)

type stubObligationWriter struct {
	batches [][]*models.PendingReview
	err     error
}

func (w *stubObligationWriter) InsertIfAbsent(_ context.Context, reviews []*models.PendingReview) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, reviews)
	return nil
}

func newReviewsConsumer(t *testing.T, writer *stubObligationWriter) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(writer, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return consumer
}

func completionEnvelope(t *testing.T) (outbox.PayloadEnvelope, payloads.OrderCompletedEvent) {
	t.Helper()
	payload := payloads.OrderCompletedEvent{
		OrderID:     uuid.New(),
		ItemID:      uuid.New(),
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		CompletedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: payload.CompletedAt,
		Data:       raw,
	}, payload
}

func TestProcessMaterializesBothObligations(t *testing.T) {
	writer := &stubObligationWriter{}
	consumer := newReviewsConsumer(t, writer)

	envelope, payload := completionEnvelope(t)
	if err := consumer.Process(context.Background(), enums.EventOrderCompleted, envelope); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(writer.batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(writer.batches))
	}
	batch := writer.batches[0]
	if len(batch) != 2 {
		t.Fatalf("expected two obligations, got %d", len(batch))
	}

	byReviewer := map[uuid.UUID]*models.PendingReview{}
	for _, review := range batch {
		if review.OrderID != payload.OrderID {
			t.Fatalf("obligation bound to wrong order: %s", review.OrderID)
		}
		if review.ItemID != payload.ItemID {
			t.Fatalf("obligation bound to wrong item: %s", review.ItemID)
		}
		byReviewer[review.ReviewerID] = review
	}
	if got := byReviewer[payload.BuyerID]; got == nil || got.SubjectID != payload.SellerID {
		t.Fatal("missing buyer-reviews-seller obligation")
	}
	if got := byReviewer[payload.SellerID]; got == nil || got.SubjectID != payload.BuyerID {
		t.Fatal("missing seller-reviews-buyer obligation")
	}
}

func TestProcessIgnoresStatusEvents(t *testing.T) {
	writer := &stubObligationWriter{}
	consumer := newReviewsConsumer(t, writer)

	envelope, _ := completionEnvelope(t)
	if err := consumer.Process(context.Background(), enums.EventOrderPaid, envelope); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(writer.batches) != 0 {
		t.Fatal("status events must not create obligations")
	}
}

func TestProcessBadPayloadIsNacked(t *testing.T) {
	writer := &stubObligationWriter{}
	consumer := newReviewsConsumer(t, writer)

	envelope := outbox.PayloadEnvelope{
		Version: 1,
		EventID: uuid.NewString(),
		Data:    json.RawMessage(`{"buyerId": 12}`),
	}
	if err := consumer.Process(context.Background(), enums.EventOrderCompleted, envelope); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestProcessWriteFailurePropagates(t *testing.T) {
	writer := &stubObligationWriter{err: errors.New("db down")}
	consumer := newReviewsConsumer(t, writer)

	envelope, _ := completionEnvelope(t)
	if err := consumer.Process(context.Background(), enums.EventOrderCompleted, envelope); err == nil {
		t.Fatal("expected write failure to propagate")
	}
}
