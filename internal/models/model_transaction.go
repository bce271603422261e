package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/partypay/pkg/types"
)

// Transaction is the payment record of one booked offer.
// Amount and the fee percent snapshot never change after creation; Status only moves through
// conditional updates guarded by the current status and Version.
type Transaction struct {
	ID             string  `gorm:"column:id;primary_key;type:uuid" json:"id"`
	OfferID        string  `gorm:"column:offer_id;type:varchar(64);not null;uniqueIndex" json:"offer_id"`
	ClientID       string  `gorm:"column:client_id;type:varchar(64);not null;index" json:"client_id"`
	ProviderID     string  `gorm:"column:provider_id;type:varchar(64);not null;index" json:"provider_id"`
	IdempotencyKey *string `gorm:"column:idempotency_key;type:varchar(128);uniqueIndex" json:"-"`

	Amount   decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency string                  `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status   types.TransactionStatus `gorm:"column:status;type:varchar(64);not null;index" json:"status"`
	Flow     types.PaymentFlow       `gorm:"column:flow;type:varchar(32)" json:"flow"`

	// PaymentIntentID is the gateway order id, PaymentMethodID the gateway capture id.
	PaymentIntentID *string `gorm:"column:payment_intent_id;type:varchar(128);index" json:"payment_intent_id"`
	PaymentMethodID *string `gorm:"column:payment_method_id;type:varchar(128);index" json:"payment_method_id"`
	ApproveURL      *string `gorm:"column:approve_url;type:text" json:"approve_url"`

	ClientFeePercent        decimal.Decimal `gorm:"column:client_fee_percent;type:numeric(5,2)" json:"client_fee_percent"`
	ProviderFeePercent      decimal.Decimal `gorm:"column:provider_fee_percent;type:numeric(5,2)" json:"provider_fee_percent"`
	TotalClientPaysCents    int64           `gorm:"column:total_client_pays_cents;not null;default:0" json:"total_client_pays_cents"`
	ProviderReceivesCents   int64           `gorm:"column:provider_receives_cents;not null;default:0" json:"provider_receives_cents"`
	PlatformCommissionCents int64           `gorm:"column:platform_commission_cents;not null;default:0" json:"platform_commission_cents"`

	EscrowStartTime     *time.Time `gorm:"column:escrow_start_time;default:null" json:"escrow_start_time"`
	EscrowEndTime       *time.Time `gorm:"column:escrow_end_time;default:null" json:"escrow_end_time"`
	EscrowManualRelease bool       `gorm:"column:escrow_manual_release;not null;default:false" json:"escrow_manual_release"`

	PayoutReference *string `gorm:"column:payout_reference;type:varchar(128)" json:"payout_reference"`
	RefundID        *string `gorm:"column:refund_id;type:varchar(128)" json:"refund_id"`

	Version   int       `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}

func (t *Transaction) OrderID() string {
	if t == nil || t.PaymentIntentID == nil {
		return ""
	}
	return *t.PaymentIntentID
}

func (t *Transaction) CaptureID() string {
	if t == nil || t.PaymentMethodID == nil {
		return ""
	}
	return *t.PaymentMethodID
}

// IsParty reports whether userID is the client or the provider user of the transaction.
func (t *Transaction) IsParty(userID string) bool {
	return t != nil && userID != "" && (t.ClientID == userID || t.ProviderID == userID)
}
