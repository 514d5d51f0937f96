package models

import (
	"time"

	"github.com/google/uuid"
)

// PendingReview is a post-sale review obligation. At most one row exists per
// (order, reviewer) pair; the unique index backs the insert-if-absent write the
// reviews consumer relies on under redelivery.
type PendingReview struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_pending_reviews_order_reviewer"`
	ReviewerID uuid.UUID `gorm:"column:reviewer_id;type:uuid;not null;uniqueIndex:ux_pending_reviews_order_reviewer"`
	SubjectID  uuid.UUID `gorm:"column:subject_id;type:uuid;not null"`
	ItemID     uuid.UUID `gorm:"column:item_id;type:uuid;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
