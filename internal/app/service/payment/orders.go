package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatflowers/partypay/internal/app/service/transaction"
	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/internal/platform/paypal"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/types"
)

// OrderResult has the same shape for both flows, so callers never need to know which one ran.
type OrderResult struct {
	TransactionID string                  `json:"transaction_id"`
	OrderID       string                  `json:"order_id"`
	ApproveURL    string                  `json:"approve_url"`
	Flow          types.PaymentFlow       `json:"flow"`
	Status        types.TransactionStatus `json:"status"`
	Breakdown     Breakdown               `json:"breakdown"`
}

func orderResultOf(t *models.Transaction) *OrderResult {
	res := &OrderResult{
		TransactionID: t.ID,
		OrderID:       t.OrderID(),
		Flow:          t.Flow,
		Status:        t.Status,
		Breakdown:     BreakdownOf(t),
	}
	if t.ApproveURL != nil {
		res.ApproveURL = *t.ApproveURL
	}
	return res
}

type CheckoutRequest struct {
	OfferID        string            `json:"offer_id" binding:"required"`
	IdempotencyKey string            `json:"-"`
	Metadata       map[string]string `json:"metadata"`
}

// CheckoutOffer creates (or returns the existing) transaction and gateway order for an offer.
// A repeated idempotency key, or an offer already waiting for payment, returns the stored order.
func (s *Service) CheckoutOffer(ctx context.Context, req CheckoutRequest, actor types.Actor) (*OrderResult, error) {
	if req.IdempotencyKey != "" {
		t, err := s.store.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		switch {
		case err == nil:
			if !isClientOrAdmin(t, actor) {
				return nil, fmt.Errorf("%w: %s", ErrForbidden, t.ID)
			}
			return orderResultOf(t), nil
		case !errors.Is(err, transaction.ErrNotFound):
			return nil, err
		}
	}

	var offer models.Offer
	if err := s.db.WithContext(ctx).Where("id = ?", req.OfferID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOfferNotFound, req.OfferID)
		}
		return nil, fmt.Errorf("failed to load offer: %w", err)
	}
	if !actor.IsAdmin() && actor.UserID != offer.ClientID {
		return nil, fmt.Errorf("%w: offer %s belongs to another client", ErrForbidden, offer.ID)
	}
	if !offer.Price.IsPositive() {
		return nil, fmt.Errorf("%w: offer %s has price %s", ErrInvalidAmount, offer.ID, offer.Price)
	}

	t, err := s.store.GetByOfferID(ctx, offer.ID)
	switch {
	case err == nil:
		switch {
		case t.Status == types.TransactionStatusPendingPayment && t.OrderID() != "":
			return orderResultOf(t), nil
		case t.Status != types.TransactionStatusPending:
			return nil, fmt.Errorf("%w: offer %s is already %s", transaction.ErrDuplicateOffer, offer.ID, t.Status)
		}
		// an earlier attempt failed before the order existed; retry it on the same row
	case errors.Is(err, transaction.ErrNotFound):
		t = &models.Transaction{
			OfferID:    offer.ID,
			ClientID:   offer.ClientID,
			ProviderID: offer.ProviderID,
			Amount:     offer.Price,
			Currency:   s.currency,
			Status:     types.TransactionStatusPending,
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			t.IdempotencyKey = &key
		}
		if err := s.store.Create(ctx, t, actor); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	metadata := map[string]string{"offer_id": offer.ID, "service_id": offer.ServiceID}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	return s.CreateMarketplacePaymentOrder(ctx, t.ID, t.Amount, t.ProviderID, metadata)
}

// CreateMarketplacePaymentOrder creates a split order paying the provider's merchant account
// directly when the provider is eligible, and falls back to a regular order otherwise.
func (s *Service) CreateMarketplacePaymentOrder(ctx context.Context, transactionID string, serviceAmount decimal.Decimal, providerID string, metadata map[string]string) (*OrderResult, error) {
	t, err := s.pendingTransaction(ctx, transactionID, serviceAmount)
	if err != nil {
		return nil, err
	}
	provider, err := s.providerByUser(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !provider.MarketplaceEligible() {
		logctx.FromCtx(ctx, s.log).Infow("marketplace_ineligible_fallback_regular",
			"transaction_id", t.ID, "provider_id", providerID, "has_provider", provider != nil)
		return s.CreatePaymentOrder(ctx, transactionID, serviceAmount, metadata)
	}

	bd := CalculateBreakdown(serviceAmount, s.fees.GetFeeSettings(ctx), t.Currency)
	order, err := s.gateway.CreateMarketplaceOrder(ctx, paypal.CreateMarketplaceOrderRequest{
		TransactionID:      t.ID,
		TotalCents:         bd.TotalClientPaysCents,
		ProviderCents:      bd.ProviderReceivesCents,
		PlatformFeeCents:   bd.PlatformCommissionCents,
		ProviderMerchantID: provider.MerchantID(),
		Currency:           t.Currency,
		Description:        "Booking " + t.OfferID,
		Metadata:           metadata,
		// held until the provider accepts or escrow ends
		DelayedDisbursement: true,
		IdempotencyKey:      "order-" + t.ID,
		ReturnURL:           s.returnURL(t.ID),
		CancelURL:           s.cancelURL(t.ID),
	})
	if err != nil {
		return nil, gatewayError(ErrOrderCreation, err)
	}
	return s.recordOrder(ctx, t, order, bd, types.PaymentFlowMarketplace)
}

// CreatePaymentOrder creates a regular order: the platform collects the buyer total and pays
// the provider out later.
func (s *Service) CreatePaymentOrder(ctx context.Context, transactionID string, serviceAmount decimal.Decimal, metadata map[string]string) (*OrderResult, error) {
	t, err := s.pendingTransaction(ctx, transactionID, serviceAmount)
	if err != nil {
		return nil, err
	}
	bd := CalculateBreakdown(serviceAmount, s.fees.GetFeeSettings(ctx), t.Currency)
	order, err := s.gateway.CreateOrder(ctx, paypal.CreateOrderRequest{
		TransactionID:  t.ID,
		AmountCents:    bd.TotalClientPaysCents,
		Currency:       t.Currency,
		Description:    "Booking " + t.OfferID,
		Metadata:       metadata,
		IdempotencyKey: "order-" + t.ID,
		ReturnURL:      s.returnURL(t.ID),
		CancelURL:      s.cancelURL(t.ID),
	})
	if err != nil {
		return nil, gatewayError(ErrOrderCreation, err)
	}
	return s.recordOrder(ctx, t, order, bd, types.PaymentFlowRegular)
}

func (s *Service) pendingTransaction(ctx context.Context, id string, serviceAmount decimal.Decimal) (*models.Transaction, error) {
	if !serviceAmount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidAmount, serviceAmount)
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(t, types.TransactionStatusPending); err != nil {
		return nil, err
	}
	if !t.Amount.Equal(serviceAmount) {
		return nil, fmt.Errorf("%w: %s does not match transaction amount %s", ErrInvalidAmount, serviceAmount, t.Amount)
	}
	return t, nil
}

func (s *Service) recordOrder(ctx context.Context, t *models.Transaction, order *paypal.Order, bd Breakdown, flow types.PaymentFlow) (*OrderResult, error) {
	updates := bd.snapshot()
	updates["payment_intent_id"] = order.ID
	updates["approve_url"] = order.ApproveURL()
	updates["flow"] = flow

	updated, err := s.store.Transition(ctx, transaction.TransitionRequest{
		ID:      t.ID,
		From:    []types.TransactionStatus{types.TransactionStatusPending},
		To:      types.TransactionStatusPendingPayment,
		Updates: updates,
		Actor:   types.SystemActor,
		Reason:  "gateway order " + order.ID + " created",
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("payment_order_created",
		"transaction_id", t.ID, "order_id", order.ID, "flow", flow, "total_cents", bd.TotalClientPaysCents)
	return orderResultOf(updated), nil
}
