package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a transcript row for the conversation attached to an order.
// The worker only appends system messages; user messages are owned by the chat
// service and share the same table.
type ChatMessage struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	SenderID  *uuid.UUID `gorm:"column:sender_id;type:uuid"`
	Body      string     `gorm:"column:body;not null"`
	System    bool       `gorm:"column:is_system;not null;default:false"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
