package models

import (
	"time"

	"github.com/fatflowers/partypay/pkg/types"
)

type Notification struct {
	ID            string                 `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID        string                 `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Type          types.NotificationType `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Title         string                 `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Content       string                 `gorm:"column:content;type:text" json:"content"`
	IsRead        bool                   `gorm:"column:is_read;not null;default:false" json:"is_read"`
	TransactionID *string                `gorm:"column:transaction_id;type:varchar(64)" json:"transaction_id"`
	CreatedAt     time.Time              `json:"created_at"`
}

func (Notification) TableName() string { return "notification" }
