package webhook

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/fatflowers/partypay/pkg/apperr"
)

const (
	EventOrderApproved      = "CHECKOUT.ORDER.APPROVED"
	EventCaptureRefunded    = "PAYMENT.CAPTURE.REFUNDED"
	EventOnboardingComplete = "MERCHANT.ONBOARDING.COMPLETED"
	EventConsentRevoked     = "MERCHANT.PARTNER-CONSENT.REVOKED"
)

var ErrMalformedEvent = apperr.New(apperr.CodeValidation, "malformed webhook event")

// Event is a PayPal webhook delivery. Resource stays raw until the event type is known.
type Event struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	CreateTime   time.Time       `json:"create_time"`
	Resource     json.RawMessage `json:"resource"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type resource struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	MerchantID string `json:"merchant_id"`
	TrackingID string `json:"tracking_id"`
	Links      []link `json:"links"`
}

func ParseEvent(body []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if e.ID == "" || e.EventType == "" {
		return nil, fmt.Errorf("%w: id and event_type are required", ErrMalformedEvent)
	}
	if e.CreateTime.IsZero() {
		e.CreateTime = time.Now()
	}
	return &e, nil
}

func (e *Event) resource() (resource, error) {
	var r resource
	if len(e.Resource) == 0 {
		return r, fmt.Errorf("%w: %s has no resource", ErrMalformedEvent, e.EventType)
	}
	if err := json.Unmarshal(e.Resource, &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return r, nil
}

// ResourceID is the id of the object the event is about, when it has one.
func (e *Event) ResourceID() string {
	r, err := e.resource()
	if err != nil {
		return ""
	}
	if r.ID != "" {
		return r.ID
	}
	return r.MerchantID
}

// captureIDFromRefund reads the capture a refund belongs to from its "up" link,
// e.g. https://api.paypal.com/v2/payments/captures/<capture id>.
func captureIDFromRefund(r resource) string {
	for _, l := range r.Links {
		if l.Rel == "up" && strings.Contains(l.Href, "/captures/") {
			return path.Base(strings.TrimRight(l.Href, "/"))
		}
	}
	return ""
}
