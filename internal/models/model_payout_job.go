package models

import (
	"time"

	"github.com/fatflowers/partypay/pkg/types"
)

// PayoutJob is a durable "run at" record for money movements that happen after a transition:
// escrow release at escrow end and provider payouts. The sweeper picks pending rows whose RunAt passed.
type PayoutJob struct {
	ID            string                `gorm:"column:id;primary_key;type:uuid" json:"id"`
	TransactionID string                `gorm:"column:transaction_id;type:varchar(64);not null;uniqueIndex:unique_transaction_id_kind,priority:1" json:"transaction_id"`
	Kind          types.PayoutJobKind   `gorm:"column:kind;type:varchar(32);not null;uniqueIndex:unique_transaction_id_kind,priority:2" json:"kind"`
	RunAt         time.Time             `gorm:"column:run_at;not null;index:idx_status_run_at,priority:2" json:"run_at"`
	Status        types.PayoutJobStatus `gorm:"column:status;type:varchar(16);not null;index:idx_status_run_at,priority:1" json:"status"`
	Attempts      int                   `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError     *string               `gorm:"column:last_error;type:text" json:"last_error"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func (PayoutJob) TableName() string { return "payout_job" }
