package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielvega/tradeyard-backend/pkg/db/models"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
)

// CreateOrderInput carries everything the create transition needs.
// PriceExpected, when set, must match the listing price at creation time so
// a buyer never commits to a price they did not see.
type CreateOrderInput struct {
	BuyerID       uuid.UUID
	ItemID        uuid.UUID
	PriceExpected *decimal.Decimal
	Note          *string
}

// TransitionInput identifies the order and the acting participant for
// pay/ship/confirm.
type TransitionInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
}

// CancelInput adds the optional, free-form cancellation reason.
type CancelInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Reason  string
}

// ListFilters describe the inputs supported by the order list endpoints.
type ListFilters struct {
	Role   ParticipantRole
	Status *enums.OrderStatus
	Limit  int
	Offset int
}

// OrderView is the serialized order returned to API clients.
type OrderView struct {
	ID            uuid.UUID         `json:"id"`
	ItemID        uuid.UUID         `json:"item_id"`
	BuyerID       uuid.UUID         `json:"buyer_id"`
	SellerID      uuid.UUID         `json:"seller_id"`
	PriceSnapshot decimal.Decimal   `json:"price_snapshot"`
	Note          *string           `json:"note,omitempty"`
	Status        enums.OrderStatus `json:"status"`
	Version       int               `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	ClosedAt      *time.Time        `json:"closed_at,omitempty"`
}

// NewOrderView maps the persisted row to its API shape.
func NewOrderView(order *models.Order) OrderView {
	return OrderView{
		ID:            order.ID,
		ItemID:        order.ItemID,
		BuyerID:       order.BuyerID,
		SellerID:      order.SellerID,
		PriceSnapshot: order.PriceSnapshot,
		Note:          order.Note,
		Status:        order.Status,
		Version:       order.Version,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
		ClosedAt:      order.ClosedAt,
	}
}
