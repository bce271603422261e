package paypal

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusCreated   = "CREATED"
	OrderStatusApproved  = "APPROVED"
	OrderStatusCompleted = "COMPLETED"

	CaptureStatusCompleted = "COMPLETED"
	CaptureStatusPending   = "PENDING"

	IssueEmailNotConfirmed     = "EMAIL_NOT_CONFIRMED"
	IssueCannotReceivePayments = "CANNOT_RECEIVE_PAYMENTS"
	IssueNoOAuthPermissions    = "NO_OAUTH_PERMISSIONS"
	IssueStatusCheckFailed     = "STATUS_CHECK_FAILED"
)

// Money is the PayPal amount object. Value is a decimal string with two fraction digits.
type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

func NewMoney(cents int64, currency string) Money {
	return Money{CurrencyCode: currency, Value: FormatCents(cents)}
}

// FormatCents renders 10500 as "105.00".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ParseCents turns "105.00" into 10500. Sub-cent digits are rounded half-up.
func ParseCents(value string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

func findLink(links []Link, rels ...string) string {
	for _, rel := range rels {
		for _, l := range links {
			if l.Rel == rel {
				return l.Href
			}
		}
	}
	return ""
}

type Payee struct {
	MerchantID   string `json:"merchant_id,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
}

type PlatformFee struct {
	Amount Money  `json:"amount"`
	Payee  *Payee `json:"payee,omitempty"`
}

type PaymentInstruction struct {
	PlatformFees     []PlatformFee `json:"platform_fees,omitempty"`
	DisbursementMode string        `json:"disbursement_mode,omitempty"`
}

type captureResource struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Money  `json:"amount"`
}

type purchaseUnit struct {
	ReferenceID        string              `json:"reference_id,omitempty"`
	CustomID           string              `json:"custom_id,omitempty"`
	InvoiceID          string              `json:"invoice_id,omitempty"`
	Description        string              `json:"description,omitempty"`
	Amount             Money               `json:"amount"`
	Payee              *Payee              `json:"payee,omitempty"`
	PaymentInstruction *PaymentInstruction `json:"payment_instruction,omitempty"`
	Payments           *struct {
		Captures []captureResource `json:"captures,omitempty"`
	} `json:"payments,omitempty"`
}

type applicationContext struct {
	BrandName          string `json:"brand_name,omitempty"`
	ShippingPreference string `json:"shipping_preference,omitempty"`
	UserAction         string `json:"user_action,omitempty"`
	ReturnURL          string `json:"return_url,omitempty"`
	CancelURL          string `json:"cancel_url,omitempty"`
}

type orderRequest struct {
	Intent             string              `json:"intent"`
	PurchaseUnits      []purchaseUnit      `json:"purchase_units"`
	ApplicationContext *applicationContext `json:"application_context,omitempty"`
}

type orderResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Links         []Link         `json:"links"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

// Order is the subset of a PayPal order the payment flow needs.
type Order struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Links    []Link `json:"links"`
	CustomID string `json:"custom_id,omitempty"`
	// Capture is set once the order has been captured.
	Capture *Capture `json:"capture,omitempty"`
}

// ApproveURL is where the buyer approves the order.
func (o *Order) ApproveURL() string {
	if o == nil {
		return ""
	}
	return findLink(o.Links, "approve", "payer-action")
}

// CreateOrderRequest is a regular-flow order: the platform receives the whole amount.
type CreateOrderRequest struct {
	TransactionID  string
	AmountCents    int64
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
	ReturnURL      string
	CancelURL      string
}

// CreateMarketplaceOrderRequest pays the provider merchant directly and keeps PlatformFeeCents
// for the platform. With DelayedDisbursement the provider share stays on hold until released.
type CreateMarketplaceOrderRequest struct {
	TransactionID       string
	TotalCents          int64
	ProviderCents       int64
	PlatformFeeCents    int64
	ProviderMerchantID  string
	Currency            string
	Description         string
	Metadata            map[string]string
	DelayedDisbursement bool
	IdempotencyKey      string
	ReturnURL           string
	CancelURL           string
}

type Capture struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type Refund struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

type RecipientType string

const (
	RecipientTypePaypalID RecipientType = "PAYPAL_ID"
	RecipientTypeEmail    RecipientType = "EMAIL"
)

type PayoutRequest struct {
	// SenderBatchID must be unique per payout; PayPal rejects a reused id, which makes retries safe.
	SenderBatchID string
	RecipientType RecipientType
	Receiver      string
	AmountCents   int64
	Currency      string
	Note          string
	EmailSubject  string
}

type Payout struct {
	BatchID     string `json:"batch_id"`
	BatchStatus string `json:"batch_status"`
}

type DisbursementRelease struct {
	ItemID string `json:"item_id"`
	Status string `json:"status"`
}

type SellerData struct {
	TrackingID string
	Email      string
	ReturnURL  string
}

type PartnerReferral struct {
	PartnerReferralID string `json:"partner_referral_id"`
	ActionURL         string `json:"action_url"`
	Links             []Link `json:"links"`
}

type MerchantStatus struct {
	MerchantID            string `json:"merchant_id"`
	TrackingID            string `json:"tracking_id"`
	PaymentsReceivable    bool   `json:"payments_receivable"`
	PrimaryEmailConfirmed bool   `json:"primary_email_confirmed"`
	PrimaryEmail          string `json:"primary_email"`
	OAuthIntegrations     []struct {
		IntegrationType   string `json:"integration_type"`
		IntegrationMethod string `json:"integration_method"`
	} `json:"oauth_integrations"`
}

type StatusIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SellerStatus struct {
	CanReceivePayments bool          `json:"can_receive_payments"`
	Issues             []StatusIssue `json:"issues"`
	PrimaryEmail       string        `json:"primary_email,omitempty"`
}

// WebhookHeaders are the PayPal-Transmission-* headers of a webhook delivery.
type WebhookHeaders struct {
	AuthAlgo         string
	CertURL          string
	TransmissionID   string
	TransmissionSig  string
	TransmissionTime string
}
