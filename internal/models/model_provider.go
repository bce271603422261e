package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/partypay/pkg/types"
)

// PaypalStatusIssue is one reason a seller account cannot receive payments yet.
type PaypalStatusIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Provider holds the PayPal seller account of a provider user.
type Provider struct {
	ID     string `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex" json:"user_id"`

	PaypalEmail              *string                                 `gorm:"column:paypal_email;type:varchar(255)" json:"paypal_email"`
	PaypalMerchantID         *string                                 `gorm:"column:paypal_merchant_id;type:varchar(64);index" json:"paypal_merchant_id"`
	PaypalAccountID          *string                                 `gorm:"column:paypal_account_id;type:varchar(64)" json:"paypal_account_id"`
	PaypalTrackingID         *string                                 `gorm:"column:paypal_tracking_id;type:varchar(128);index" json:"paypal_tracking_id"`
	PaypalOnboardingComplete bool                                    `gorm:"column:paypal_onboarding_complete;not null;default:false" json:"paypal_onboarding_complete"`
	PaypalOnboardingStatus   string                                  `gorm:"column:paypal_onboarding_status;type:varchar(64)" json:"paypal_onboarding_status"`
	PaypalCanReceivePayments bool                                    `gorm:"column:paypal_can_receive_payments;not null;default:false" json:"paypal_can_receive_payments"`
	PaypalStatusIssues       datatypes.JSONType[[]PaypalStatusIssue] `gorm:"column:paypal_status_issues;type:jsonb;default:'[]'" json:"paypal_status_issues"`
	PaypalEnvironment        types.PaypalEnvironment                 `gorm:"column:paypal_environment;type:varchar(16)" json:"paypal_environment"`
	PaypalStatusCheckedAt    *time.Time                              `gorm:"column:paypal_status_checked_at" json:"paypal_status_checked_at"`
	CreatedAt                time.Time                               `json:"created_at"`
	UpdatedAt                time.Time                               `json:"updated_at"`
}

func (Provider) TableName() string { return "provider" }

func (p *Provider) MerchantID() string {
	if p == nil || p.PaypalMerchantID == nil {
		return ""
	}
	return *p.PaypalMerchantID
}

// MarketplaceEligible reports whether orders can pay the provider directly at capture.
func (p *Provider) MarketplaceEligible() bool {
	return p != nil && p.MerchantID() != "" && p.PaypalOnboardingComplete && p.PaypalCanReceivePayments
}

// PayoutDestination returns where a payout can be sent: the merchant id when onboarded,
// otherwise the PayPal email. ok is false when neither is known.
func (p *Provider) PayoutDestination() (receiver string, byMerchantID bool, ok bool) {
	if p == nil {
		return "", false, false
	}
	if id := p.MerchantID(); id != "" {
		return id, true, true
	}
	if p.PaypalEmail != nil && *p.PaypalEmail != "" {
		return *p.PaypalEmail, false, true
	}
	return "", false, false
}
