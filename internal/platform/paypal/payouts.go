package paypal

import (
	"context"
	"fmt"
	"net/http"

	sdk "github.com/plutov/paypal/v4"
)

// CreatePayout sends one payout item to a provider, used by the regular flow after the
// platform collected the full amount. The body is sent through do rather than the SDK's
// CreatePayout so the sender batch id also travels as PayPal-Request-Id.
func (c *Client) CreatePayout(ctx context.Context, req PayoutRequest) (*Payout, error) {
	if req.Receiver == "" {
		return nil, fmt.Errorf("paypal create_payout: receiver is required")
	}
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("paypal create_payout: amount must be positive, got %d cents", req.AmountCents)
	}
	recipientType := req.RecipientType
	if recipientType == "" {
		recipientType = RecipientTypeEmail
	}
	subject := req.EmailSubject
	if subject == "" {
		subject = "You have a payout"
	}
	body := map[string]any{
		"sender_batch_header": map[string]string{
			"sender_batch_id": req.SenderBatchID,
			"email_subject":   subject,
		},
		"items": []map[string]any{{
			"recipient_type": recipientType,
			"amount": map[string]string{
				"value":    FormatCents(req.AmountCents),
				"currency": req.Currency,
			},
			"receiver":       req.Receiver,
			"note":           req.Note,
			"sender_item_id": req.SenderBatchID,
		}},
	}
	var resp sdk.PayoutResponse
	if err := c.do(ctx, request{
		op:             "create_payout",
		method:         http.MethodPost,
		path:           "/v1/payments/payouts",
		body:           body,
		idempotencyKey: req.SenderBatchID,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.BatchHeader == nil {
		return nil, fmt.Errorf("paypal create_payout: response carries no batch header")
	}
	return &Payout{BatchID: resp.BatchHeader.PayoutBatchID, BatchStatus: resp.BatchHeader.BatchStatus}, nil
}

// ReleaseDelayedDisbursement releases funds of a DELAYED marketplace capture to the payee
// through the referenced payouts API, which the SDK has no typed helper for.
func (c *Client) ReleaseDelayedDisbursement(ctx context.Context, captureID, idempotencyKey string) (*DisbursementRelease, error) {
	if captureID == "" {
		return nil, fmt.Errorf("paypal release_disbursement: capture id is required")
	}
	var resp struct {
		ItemID          string `json:"item_id"`
		ProcessingState struct {
			Status string `json:"status"`
		} `json:"processing_state"`
	}
	if err := c.do(ctx, request{
		op:     "release_disbursement",
		method: http.MethodPost,
		path:   "/v1/payments/referenced-payouts-items",
		body: map[string]string{
			"reference_id":   captureID,
			"reference_type": "TRANSACTION_ID",
		},
		idempotencyKey: idempotencyKey,
	}, &resp); err != nil {
		return nil, err
	}
	return &DisbursementRelease{ItemID: resp.ItemID, Status: resp.ProcessingState.Status}, nil
}
