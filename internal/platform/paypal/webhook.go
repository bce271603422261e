package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	sdk "github.com/plutov/paypal/v4"
)

// VerifyWebhookSignature asks PayPal to validate a webhook delivery against the configured webhook id.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers WebhookHeaders, body []byte) (bool, error) {
	if c.opts.WebhookID == "" {
		return false, errors.New("paypal: webhook id not configured")
	}
	if !json.Valid(body) {
		return false, nil
	}
	var resp *sdk.VerifyWebhookResponse
	err := c.call(ctx, "verify_webhook", func(ctx context.Context, api *sdk.Client) error {
		delivery, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(body))
		if err != nil {
			return err
		}
		headers.apply(delivery.Header)
		resp, err = api.VerifyWebhookSignature(ctx, delivery, c.opts.WebhookID)
		return err
	})
	if err != nil {
		return false, err
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

// WebhookHeadersFrom reads the PayPal-Transmission-* headers.
func WebhookHeadersFrom(h http.Header) WebhookHeaders {
	return WebhookHeaders{
		AuthAlgo:         h.Get("Paypal-Auth-Algo"),
		CertURL:          h.Get("Paypal-Cert-Url"),
		TransmissionID:   h.Get("Paypal-Transmission-Id"),
		TransmissionSig:  h.Get("Paypal-Transmission-Sig"),
		TransmissionTime: h.Get("Paypal-Transmission-Time"),
	}
}

func (w WebhookHeaders) apply(h http.Header) {
	h.Set("Paypal-Auth-Algo", w.AuthAlgo)
	h.Set("Paypal-Cert-Url", w.CertURL)
	h.Set("Paypal-Transmission-Id", w.TransmissionID)
	h.Set("Paypal-Transmission-Sig", w.TransmissionSig)
	h.Set("Paypal-Transmission-Time", w.TransmissionTime)
}
