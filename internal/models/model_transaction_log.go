package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/partypay/pkg/types"
)

// TransactionLog is the audit trail of status transitions, kept for troubleshooting disputes.
type TransactionLog struct {
	ID            string                  `gorm:"column:id;primary_key;type:uuid"`
	TransactionID string                  `gorm:"column:transaction_id;type:varchar(64);not null;index"`
	FromStatus    types.TransactionStatus `gorm:"column:from_status;type:varchar(64)"`
	ToStatus      types.TransactionStatus `gorm:"column:to_status;type:varchar(64);not null"`
	Actor         string                  `gorm:"column:actor;type:varchar(128);not null"`
	Reason        string                  `gorm:"column:reason;type:varchar(255)"`
	// Before/After are full row snapshots
	Before    datatypes.JSONType[*Transaction] `gorm:"column:before;type:jsonb;default:'null'"`
	After     datatypes.JSONType[*Transaction] `gorm:"column:after;type:jsonb;default:'null'"`
	TraceID   string                           `gorm:"column:trace_id;type:varchar(128)"`
	CreatedAt time.Time                        `json:"created_at"`
}

func (TransactionLog) TableName() string {
	return "transaction_log"
}
