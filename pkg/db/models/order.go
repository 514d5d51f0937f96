package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielvega/tradeyard-backend/pkg/enums"
)

// Order is one buyer's commitment to purchase one listed item. Rows are never
// deleted; terminal states are final and closed_at is written exactly once.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID        uuid.UUID         `gorm:"column:item_id;type:uuid;not null;index"`
	BuyerID       uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID      uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	PriceSnapshot decimal.Decimal   `gorm:"column:price_snapshot;type:numeric(12,2);not null"`
	Note          *string           `gorm:"column:note"`
	Status        enums.OrderStatus `gorm:"column:status;type:text;not null;default:pending"`
	// Version guards every mutation with an optimistic compare-and-swap.
	Version   int        `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	ClosedAt  *time.Time `gorm:"column:closed_at"`
}
