package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielvega/tradeyard-backend/pkg/enums"
)

// OrderStatusChangedEvent is the shared payload for every lifecycle
// transition on the order events topic. Reason is only set for
// cancellations ("expired" when the reaper closed the order).
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"orderId"`
	ItemID     uuid.UUID         `json:"itemId"`
	BuyerID    uuid.UUID         `json:"buyerId"`
	SellerID   uuid.UUID         `json:"sellerId"`
	NewStatus  enums.OrderStatus `json:"newStatus"`
	Price      decimal.Decimal   `json:"price"`
	Reason     string            `json:"reason,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// OrderCompletedEvent is the distinguished completion payload that feeds
// the pending-review consumer.
type OrderCompletedEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	ItemID      uuid.UUID `json:"itemId"`
	BuyerID     uuid.UUID `json:"buyerId"`
	SellerID    uuid.UUID `json:"sellerId"`
	CompletedAt time.Time `json:"completedAt"`
}
