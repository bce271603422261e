package paypal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrCredentialsMissing is returned by every call when no client id/secret is configured
	// for the active mode.
	ErrCredentialsMissing = errors.New("paypal: client id/secret not configured")
	ErrOrderCreation      = errors.New("paypal: order creation failed")
	ErrCapture            = errors.New("paypal: capture failed")
	// ErrGatewayTimeout marks a call that ran out of time; the outcome upstream is unknown
	// and the call may be retried with the same request id.
	ErrGatewayTimeout = errors.New("paypal: request timed out")
)

// GatewayError is a non-2xx answer from the PayPal REST API.
type GatewayError struct {
	Op         string
	StatusCode int
	Name       string
	Message    string
	DebugID    string
	// Issues are the detail issue codes, e.g. INSTRUMENT_DECLINED.
	Issues []string
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("paypal %s: status %d", e.Op, e.StatusCode)
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Issues) > 0 {
		msg += " [" + strings.Join(e.Issues, ",") + "]"
	}
	if e.DebugID != "" {
		msg += " (debug_id " + e.DebugID + ")"
	}
	return msg
}

// GatewayAuthError is a failed client-credentials token request.
type GatewayAuthError struct {
	StatusCode int
	Body       string
}

func (e *GatewayAuthError) Error() string {
	return fmt.Sprintf("paypal: access token request failed with status %d", e.StatusCode)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrGatewayTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
