package payment

import (
	"errors"
	"fmt"

	"github.com/fatflowers/partypay/internal/platform/paypal"
	"github.com/fatflowers/partypay/pkg/apperr"
)

var (
	ErrInvalidAmount   = apperr.New(apperr.CodeValidation, "service amount must be positive")
	ErrOfferNotFound   = apperr.New(apperr.CodeNotFound, "offer not found")
	ErrForbidden       = apperr.New(apperr.CodeForbidden, "caller may not act on this transaction")
	ErrMissingPayment  = apperr.New(apperr.CodeMissingPayment, "transaction has no payment order")
	ErrOrderCreation   = apperr.New(apperr.CodeOrderCreationFailed, "payment order creation failed")
	ErrPaymentCapture  = apperr.New(apperr.CodeCaptureFailed, "payment capture failed")
	ErrAmountMismatch  = apperr.New(apperr.CodeAmountMismatch, "captured amount does not match the transaction total")
	ErrNotApproved     = apperr.New(apperr.CodeInvalidState, "payment order is not approved by the buyer")
	ErrGatewayTimeout  = apperr.New(apperr.CodeGatewayTimeout, "payment gateway timed out")
	ErrGateway         = apperr.New(apperr.CodeGateway, "payment gateway error")
	ErrNotConfigured   = apperr.New(apperr.CodeConfig, "payment gateway is not configured")
	ErrRefundFailed    = apperr.New(apperr.CodeGateway, "refund failed")
	ErrPayoutFailed    = apperr.New(apperr.CodeGateway, "provider payout failed")
	ErrNoPayoutAccount = apperr.New(apperr.CodeInvalidState, "provider has no payout destination")
)

// gatewayError gives a gateway failure its API code. Timeouts and missing credentials keep
// their own codes whatever the operation; everything else becomes fallback.
func gatewayError(fallback error, err error) error {
	switch {
	case errors.Is(err, paypal.ErrCredentialsMissing):
		return fmt.Errorf("%w: %v", ErrNotConfigured, err)
	case paypal.IsTimeout(err):
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	default:
		return fmt.Errorf("%w: %v", fallback, err)
	}
}
