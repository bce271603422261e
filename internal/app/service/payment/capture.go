package payment

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fatflowers/partypay/internal/app/service/escrow"
	"github.com/fatflowers/partypay/internal/app/service/notification"
	"github.com/fatflowers/partypay/internal/app/service/transaction"
	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/internal/platform/paypal"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/types"
)

// CapturePayment captures a buyer-approved order and leaves the booking waiting for the
// provider's acceptance.
func (s *Service) CapturePayment(ctx context.Context, orderID string, actor types.Actor) (*CaptureResult, error) {
	t, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isClientOrAdmin(t, actor) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, t.ID)
	}
	if err := requireStatus(t, types.TransactionStatusPendingPayment); err != nil {
		return nil, err
	}

	capture, err := s.capture(ctx, t)
	if err != nil {
		return nil, err
	}
	res := &CaptureResult{Result: Result{Transaction: t}, Capture: capture, Breakdown: BreakdownOf(t)}

	updated, err := s.store.Transition(ctx, transaction.TransitionRequest{
		ID:      t.ID,
		From:    []types.TransactionStatus{types.TransactionStatusPendingPayment},
		To:      types.TransactionStatusPaidPendingProviderAcceptance,
		Updates: map[string]any{"payment_method_id": capture.ID},
		Actor:   actor,
		Reason:  "payment captured",
	})
	if err != nil {
		// a concurrent call with the same request id captured and recorded it first
		if current, getErr := s.store.Get(ctx, t.ID); getErr == nil && current.CaptureID() == capture.ID {
			res.Transaction = current
			return res, nil
		}
		s.degrade(ctx, &res.Result, t.ID, "payment captured but the transaction could not be updated", err)
		return res, nil
	}
	res.Transaction = updated
	s.notifier.EmitAsync(ctx, updated.ProviderID, notification.PaymentReceived(updated.ID, formatAmount(updated.TotalClientPaysCents, updated.Currency)))
	return res, nil
}

// AuthorizePayment records that the buyer approved the order without capturing it; the
// provider then approves (capture) or rejects.
func (s *Service) AuthorizePayment(ctx context.Context, orderID string, actor types.Actor) (*Result, error) {
	t, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isClientOrAdmin(t, actor) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, t.ID)
	}
	if t.Status == types.TransactionStatusProviderReview {
		return &Result{Transaction: t, Message: "payment already authorized"}, nil
	}
	if err := requireStatus(t, types.TransactionStatusPendingPayment); err != nil {
		return nil, err
	}

	order, err := s.gateway.GetOrder(ctx, orderID)
	if err != nil {
		return nil, gatewayError(ErrGateway, err)
	}
	if order.Status != paypal.OrderStatusApproved {
		return nil, fmt.Errorf("%w: order %s is %s", ErrNotApproved, orderID, order.Status)
	}

	updated, err := s.store.Transition(ctx, transaction.TransitionRequest{
		ID:     t.ID,
		From:   []types.TransactionStatus{types.TransactionStatusPendingPayment},
		To:     types.TransactionStatusProviderReview,
		Actor:  actor,
		Reason: "buyer approved order",
	})
	if err != nil {
		return nil, err
	}
	s.notifier.EmitAsync(ctx, updated.ProviderID, notification.PaymentAuthorized(updated.ID, formatAmount(updated.TotalClientPaysCents, updated.Currency)))
	return &Result{Transaction: updated, Message: "payment authorized, waiting for provider review"}, nil
}

// RecordOrderApproval notes PayPal's approval notice for an order. The buyer's return decides
// between capture and authorization, so the transaction status is left as it is.
func (s *Service) RecordOrderApproval(ctx context.Context, orderID string) (*models.Transaction, error) {
	t, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("payment_order_approved", "transaction_id", t.ID, "order_id", orderID, "status", t.Status)
	return t, nil
}

// ApproveTransaction is the provider's approval of an authorized booking: it captures the
// payment and holds it in escrow.
func (s *Service) ApproveTransaction(ctx context.Context, transactionID string, actor types.Actor) (*CaptureResult, error) {
	t, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !isProviderOrAdmin(t, actor) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, t.ID)
	}
	if err := requireStatus(t, types.TransactionStatusProviderReview); err != nil {
		return nil, err
	}
	if t.OrderID() == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingPayment, t.ID)
	}

	capture, err := s.capture(ctx, t)
	if err != nil {
		return nil, err
	}
	res := &CaptureResult{Result: Result{Transaction: t}, Capture: capture, Breakdown: BreakdownOf(t)}

	autoRelease, err := s.canAutoRelease(ctx, t)
	if err != nil {
		s.degrade(ctx, &res.Result, t.ID, "payment captured but the provider could not be loaded", err)
		return res, nil
	}
	start := s.now()
	end := start.Add(s.escrowHold)

	var updated *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = s.store.WithTx(tx).Transition(ctx, transaction.TransitionRequest{
			ID:   t.ID,
			From: []types.TransactionStatus{types.TransactionStatusProviderReview},
			To:   types.TransactionStatusEscrow,
			Updates: map[string]any{
				"payment_method_id":     capture.ID,
				"escrow_start_time":     start,
				"escrow_end_time":       end,
				"escrow_manual_release": !autoRelease,
			},
			Actor:  actor,
			Reason: "approved by provider",
		})
		if err != nil {
			return err
		}
		if !autoRelease {
			return nil
		}
		return escrow.Enqueue(ctx, tx, t.ID, types.PayoutJobKindEscrowRelease, end)
	})
	if err != nil {
		s.degrade(ctx, &res.Result, t.ID, "payment captured but escrow could not be recorded", err)
		return res, nil
	}

	res.Transaction = updated
	if autoRelease {
		res.Message = fmt.Sprintf("payment held in escrow until %s", end.UTC().Format(time.RFC3339))
	} else {
		res.Message = "payment held in escrow; the provider has no payout destination, so an admin must release it"
	}
	s.notifier.EmitAsync(ctx, updated.ClientID, notification.BookingApproved(updated.ID, end.UTC().Format(time.RFC1123)))
	return res, nil
}

// capture runs the gateway capture and reconciles the captured amount.
func (s *Service) capture(ctx context.Context, t *models.Transaction) (*paypal.Capture, error) {
	capture, err := s.gateway.CaptureOrder(ctx, t.OrderID(), "capture-"+t.ID)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("payment_capture_failed", "transaction_id", t.ID, "order_id", t.OrderID(), "err", err)
		return nil, gatewayError(ErrPaymentCapture, err)
	}
	if err := s.reconcile(ctx, t, capture); err != nil {
		return nil, err
	}
	return capture, nil
}

// reconcile compares the captured amount with the stored total. On mismatch the capture id is
// kept for the admin to sort out, the status stays as it is.
func (s *Service) reconcile(ctx context.Context, t *models.Transaction, capture *paypal.Capture) error {
	currencyOK := capture.Currency == "" || capture.Currency == t.Currency
	if capture.AmountCents == t.TotalClientPaysCents && currencyOK {
		return nil
	}
	got := formatAmount(capture.AmountCents, capture.Currency)
	want := formatAmount(t.TotalClientPaysCents, t.Currency)
	lg := logctx.FromCtx(ctx, s.log)
	lg.Errorw("payment_amount_mismatch", "transaction_id", t.ID, "capture_id", capture.ID, "captured", got, "expected", want)

	if _, err := s.store.Update(ctx, t.ID, t.Status, map[string]any{"payment_method_id": capture.ID}); err != nil {
		lg.Errorw("failed to record mismatched capture", "transaction_id", t.ID, "capture_id", capture.ID, "err", err)
	}
	s.notifier.NotifyAdminsAsync(ctx, notification.AdminAlert(t.ID, "Captured amount mismatch",
		fmt.Sprintf("Transaction %s captured %s (capture %s) but expected %s.", t.ID, got, capture.ID, want)))
	return fmt.Errorf("%w: captured %s, expected %s", ErrAmountMismatch, got, want)
}

// canAutoRelease reports whether escrow can end with an automatic payout. Marketplace
// orders release the held disbursement; regular ones need a payout destination.
func (s *Service) canAutoRelease(ctx context.Context, t *models.Transaction) (bool, error) {
	if t.Flow == types.PaymentFlowMarketplace {
		return true, nil
	}
	provider, err := s.providerByUser(ctx, t.ProviderID)
	if err != nil {
		return false, err
	}
	_, _, ok := provider.PayoutDestination()
	return ok, nil
}
