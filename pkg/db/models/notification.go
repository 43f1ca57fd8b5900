package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to a user.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RecipientID uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null"`
	Type        enums.NotificationType `gorm:"column:type;type:text;not null"`
	Title       string                 `gorm:"column:title;type:text;not null"`
	Message     string                 `gorm:"column:message;type:text;not null"`
	Link        *string                `gorm:"column:link;type:text"`
	ReadAt      *time.Time             `gorm:"column:read_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }
