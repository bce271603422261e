package paypal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	sdk "github.com/plutov/paypal/v4"
)

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d cents", ErrOrderCreation, req.AmountCents)
	}
	body := orderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: req.TransactionID,
			CustomID:    req.TransactionID,
			Description: describe(req.Description, req.Metadata),
			Amount:      NewMoney(req.AmountCents, req.Currency),
		}},
		ApplicationContext: c.applicationContext(req.ReturnURL, req.CancelURL),
	}
	return c.createOrder(ctx, "create_order", body, req.IdempotencyKey)
}

func (c *Client) CreateMarketplaceOrder(ctx context.Context, req CreateMarketplaceOrderRequest) (*Order, error) {
	if req.ProviderMerchantID == "" {
		return nil, fmt.Errorf("%w: provider merchant id is required", ErrOrderCreation)
	}
	if req.TotalCents <= 0 || req.PlatformFeeCents < 0 || req.PlatformFeeCents > req.TotalCents {
		return nil, fmt.Errorf("%w: invalid split total=%d platform_fee=%d", ErrOrderCreation, req.TotalCents, req.PlatformFeeCents)
	}
	instruction := &PaymentInstruction{}
	if req.PlatformFeeCents > 0 {
		instruction.PlatformFees = []PlatformFee{{Amount: NewMoney(req.PlatformFeeCents, req.Currency)}}
	}
	if req.DelayedDisbursement {
		instruction.DisbursementMode = "DELAYED"
	}
	body := orderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID:        req.TransactionID,
			CustomID:           req.TransactionID,
			Description:        describe(req.Description, req.Metadata),
			Amount:             NewMoney(req.TotalCents, req.Currency),
			Payee:              &Payee{MerchantID: req.ProviderMerchantID},
			PaymentInstruction: instruction,
		}},
		ApplicationContext: c.applicationContext(req.ReturnURL, req.CancelURL),
	}
	return c.createOrder(ctx, "create_marketplace_order", body, req.IdempotencyKey)
}

func (c *Client) createOrder(ctx context.Context, op string, body orderRequest, idempotencyKey string) (*Order, error) {
	var resp orderResponse
	if err := c.do(ctx, request{
		op:             op,
		method:         http.MethodPost,
		path:           "/v2/checkout/orders",
		body:           body,
		idempotencyKey: idempotencyKey,
		prefer:         true,
	}, &resp); err != nil {
		if IsTimeout(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrOrderCreation, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("%w: response carries no order id", ErrOrderCreation)
	}
	return toOrder(resp), nil
}

// CaptureOrder captures an approved order. Anything but a COMPLETED capture is an error,
// including PENDING captures held for review.
func (c *Client) CaptureOrder(ctx context.Context, orderID, idempotencyKey string) (*Capture, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrCapture)
	}
	var resp orderResponse
	if err := c.do(ctx, request{
		op:             "capture_order",
		method:         http.MethodPost,
		path:           "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture",
		body:           struct{}{},
		idempotencyKey: idempotencyKey,
		prefer:         true,
	}, &resp); err != nil {
		if IsTimeout(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	order := toOrder(resp)
	if order.Capture == nil {
		return nil, fmt.Errorf("%w: order %s returned no capture (status %s)", ErrCapture, orderID, resp.Status)
	}
	if order.Capture.Status != CaptureStatusCompleted {
		return order.Capture, fmt.Errorf("%w: capture %s status %s", ErrCapture, order.Capture.ID, order.Capture.Status)
	}
	return order.Capture, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var resp *sdk.Order
	if err := c.call(ctx, "get_order", func(ctx context.Context, api *sdk.Client) error {
		var err error
		resp, err = api.GetOrder(ctx, url.PathEscape(orderID))
		return err
	}); err != nil {
		return nil, err
	}
	order := &Order{ID: resp.ID, Status: resp.Status}
	for _, l := range resp.Links {
		order.Links = append(order.Links, Link{Href: l.Href, Rel: l.Rel, Method: l.Method})
	}
	return order, nil
}

// RefundCapture refunds amountCents of a capture; zero refunds the whole capture.
func (c *Client) RefundCapture(ctx context.Context, captureID string, amountCents int64, currency, idempotencyKey string) (*Refund, error) {
	var body any = struct{}{}
	if amountCents > 0 {
		body = sdk.RefundCaptureRequest{Amount: &sdk.Money{Currency: currency, Value: FormatCents(amountCents)}}
	}
	var resp sdk.RefundResponse
	if err := c.do(ctx, request{
		op:             "refund_capture",
		method:         http.MethodPost,
		path:           "/v2/payments/captures/" + url.PathEscape(captureID) + "/refund",
		body:           body,
		idempotencyKey: idempotencyKey,
		prefer:         true,
	}, &resp); err != nil {
		return nil, err
	}
	refund := &Refund{ID: resp.ID, Status: resp.Status, AmountCents: amountCents}
	if resp.Amount != nil {
		if cents, err := ParseCents(resp.Amount.Value); err == nil {
			refund.AmountCents = cents
		}
	}
	return refund, nil
}

func (c *Client) applicationContext(returnURL, cancelURL string) *applicationContext {
	return &applicationContext{
		BrandName:          c.opts.BrandName,
		ShippingPreference: "NO_SHIPPING",
		UserAction:         "PAY_NOW",
		ReturnURL:          returnURL,
		CancelURL:          cancelURL,
	}
}

func toOrder(resp orderResponse) *Order {
	order := &Order{ID: resp.ID, Status: resp.Status, Links: resp.Links}
	for _, pu := range resp.PurchaseUnits {
		if order.CustomID == "" {
			order.CustomID = pu.CustomID
		}
		if pu.Payments == nil {
			continue
		}
		for _, cp := range pu.Payments.Captures {
			cents, _ := ParseCents(cp.Amount.Value)
			order.Capture = &Capture{
				ID:          cp.ID,
				OrderID:     resp.ID,
				Status:      cp.Status,
				AmountCents: cents,
				Currency:    cp.Amount.CurrencyCode,
			}
			return order
		}
	}
	return order
}

// maxDescription is PayPal's purchase unit description limit in bytes.
const maxDescription = 127

// describe folds metadata into the purchase unit description, cut on a rune boundary at
// maxDescription.
func describe(description string, metadata map[string]string) string {
	parts := make([]string, 0, len(metadata)+1)
	if description != "" {
		parts = append(parts, description)
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+metadata[k])
	}
	s := strings.Join(parts, " ")
	if len(s) <= maxDescription {
		return s
	}
	cut := maxDescription
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
