package types

type PaymentProvider string

const (
	PaymentProviderPaypal PaymentProvider = "paypal"
)

// PaymentFlow tells how the gateway order splits the money.
type PaymentFlow string

const (
	// PaymentFlowMarketplace: the gateway pays the provider and keeps the platform fee at capture.
	PaymentFlowMarketplace PaymentFlow = "marketplace"
	// PaymentFlowRegular: the platform collects everything and pays the provider out later.
	PaymentFlowRegular PaymentFlow = "regular"
)

type UserRole string

const (
	UserRoleClient   UserRole = "client"
	UserRoleProvider UserRole = "provider"
	UserRoleAdmin    UserRole = "admin"
)

type PriceUnit string

const (
	PriceUnitFixed  PriceUnit = "fixed"
	PriceUnitHourly PriceUnit = "hourly"
)

type NotificationType string

const (
	NotificationTypePayment NotificationType = "PAYMENT"
	NotificationTypeSystem  NotificationType = "SYSTEM"
	NotificationTypeBooking NotificationType = "BOOKING"
)

type PayoutJobKind string

const (
	PayoutJobKindEscrowRelease  PayoutJobKind = "escrow_release"
	PayoutJobKindProviderPayout PayoutJobKind = "provider_payout"
)

type PayoutJobStatus string

const (
	PayoutJobStatusPending PayoutJobStatus = "pending"
	PayoutJobStatusRunning PayoutJobStatus = "running"
	PayoutJobStatusDone    PayoutJobStatus = "done"
	PayoutJobStatusFailed  PayoutJobStatus = "failed"
)

type PaypalEnvironment string

const (
	PaypalEnvironmentSandbox PaypalEnvironment = "sandbox"
	PaypalEnvironmentLive    PaypalEnvironment = "live"
)

// Actor identifies who triggers a state change. Empty UserID means the system itself.
type Actor struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

var SystemActor = Actor{Role: UserRoleAdmin}

func (a Actor) IsAdmin() bool {
	return a.Role == UserRoleAdmin
}

func (a Actor) IsSystem() bool {
	return a.UserID == "" && a.Role == UserRoleAdmin
}

func (a Actor) Label() string {
	if a.IsSystem() {
		return "system"
	}
	return string(a.Role) + ":" + a.UserID
}
