package payment

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fatflowers/partypay/internal/app/service/escrow"
	"github.com/fatflowers/partypay/internal/app/service/notification"
	"github.com/fatflowers/partypay/internal/app/service/transaction"
	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/internal/platform/paypal"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/types"
)

// HandleProviderAcceptance completes a captured booking the provider accepted. When the
// provider can be paid automatically a payout job is queued with the transition; otherwise
// the funds wait in escrow for a manual release.
func (s *Service) HandleProviderAcceptance(ctx context.Context, transactionID string, actor types.Actor) (*Result, error) {
	t, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !isProviderOrAdmin(t, actor) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, t.ID)
	}
	if err := requireStatus(t, types.TransactionStatusPaidPendingProviderAcceptance); err != nil {
		return nil, err
	}
	autoPayout, err := s.canAutoRelease(ctx, t)
	if err != nil {
		return nil, err
	}

	req := transaction.TransitionRequest{
		ID:     t.ID,
		From:   []types.TransactionStatus{types.TransactionStatusPaidPendingProviderAcceptance},
		To:     types.TransactionStatusCompleted,
		Actor:  actor,
		Reason: "accepted by provider",
	}
	message := "booking accepted, provider payout scheduled"
	if !autoPayout {
		req.To = types.TransactionStatusEscrow
		req.Updates = map[string]any{"escrow_start_time": s.now(), "escrow_manual_release": true}
		message = "booking accepted; the provider has no payout destination, so funds stay in escrow for manual release"
	}

	var updated *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = s.store.WithTx(tx).Transition(ctx, req)
		if err != nil {
			return err
		}
		if !autoPayout {
			return nil
		}
		return escrow.Enqueue(ctx, tx, t.ID, types.PayoutJobKindProviderPayout, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.notifier.EmitAsync(ctx, updated.ClientID, notification.BookingAccepted(updated.ID))
	return &Result{Transaction: updated, Message: message}, nil
}

// RejectTransaction declines a booking. A captured payment is refunded right away.
func (s *Service) RejectTransaction(ctx context.Context, transactionID string, actor types.Actor, reason string) (*Result, error) {
	t, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !isProviderOrAdmin(t, actor) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, t.ID)
	}
	if err := requireStatus(t, types.TransactionStatusProviderReview, types.TransactionStatusPaidPendingProviderAcceptance); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "rejected by provider"
	}
	updated, err := s.store.Transition(ctx, transaction.TransitionRequest{
		ID:     t.ID,
		From:   []types.TransactionStatus{types.TransactionStatusProviderReview, types.TransactionStatusPaidPendingProviderAcceptance},
		To:     types.TransactionStatusRejected,
		Actor:  actor,
		Reason: reason,
	})
	if err != nil {
		return nil, err
	}
	s.notifier.EmitAsync(ctx, updated.ClientID, notification.BookingRejected(updated.ID, reason))

	res := &Result{Transaction: updated, Message: "booking rejected"}
	if updated.CaptureID() == "" {
		return res, nil
	}
	refunded, err := s.refund(ctx, updated, actor, "refund after rejection")
	if err != nil {
		s.degrade(ctx, res, updated.ID, "booking rejected but the refund failed", err)
		return res, nil
	}
	res.Transaction = refunded
	res.Message = "booking rejected and payment refunded"
	return res, nil
}

var clientCancellable = []types.TransactionStatus{
	types.TransactionStatusPending,
	types.TransactionStatusPendingPayment,
	types.TransactionStatusProviderReview,
}

// CancelTransaction lets the client drop a booking before money is captured. Admins may
// cancel any booking that can still be cancelled; captured money is refunded.
func (s *Service) CancelTransaction(ctx context.Context, transactionID string, actor types.Actor) (*Result, error) {
	t, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !isClientOrAdmin(t, actor) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, t.ID)
	}
	req := transaction.TransitionRequest{
		ID:     t.ID,
		To:     types.TransactionStatusCancelled,
		Actor:  actor,
		Reason: "cancelled by " + actor.Label(),
	}
	if !actor.IsAdmin() {
		if err := requireStatus(t, clientCancellable...); err != nil {
			return nil, err
		}
		req.From = clientCancellable
	}

	var updated *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = s.store.WithTx(tx).Transition(ctx, req)
		if err != nil {
			return err
		}
		return escrow.CancelPending(ctx, tx, t.ID, "transaction cancelled")
	})
	if err != nil {
		return nil, err
	}
	msg := notification.BookingCancelled(updated.ID)
	s.notifier.EmitAsync(ctx, updated.ProviderID, msg)
	if actor.IsAdmin() {
		s.notifier.EmitAsync(ctx, updated.ClientID, msg)
	}

	res := &Result{Transaction: updated, Message: "booking cancelled"}
	if updated.CaptureID() == "" {
		return res, nil
	}
	refunded, err := s.refund(ctx, updated, actor, "refund after cancellation")
	if err != nil {
		s.degrade(ctx, res, updated.ID, "booking cancelled but the refund failed", err)
		return res, nil
	}
	res.Transaction = refunded
	res.Message = "booking cancelled and payment refunded"
	return res, nil
}

// ReleaseEscrow completes an escrowed booking and pays the provider. Calling it again on a
// completed booking whose payout never went out retries the payout.
func (s *Service) ReleaseEscrow(ctx context.Context, transactionID string, actor types.Actor) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins release escrow", ErrForbidden)
	}
	t, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	switch {
	case t.Status == types.TransactionStatusEscrow:
		t, err = s.store.Transition(ctx, transaction.TransitionRequest{
			ID:     t.ID,
			From:   []types.TransactionStatus{types.TransactionStatusEscrow},
			To:     types.TransactionStatusCompleted,
			Actor:  actor,
			Reason: "escrow released",
		})
		if err != nil {
			return nil, err
		}
	case t.Status == types.TransactionStatusCompleted && t.PayoutReference == nil:
	default:
		return nil, requireStatus(t, types.TransactionStatusEscrow)
	}

	res := &Result{Transaction: t, Message: "escrow released, provider paid"}
	paid, err := s.payout(ctx, t)
	switch {
	case err == nil:
		res.Transaction = paid
	case errors.Is(err, ErrNoPayoutAccount):
		res.Message = "escrow released; the provider has no payout destination, pay out manually"
		res.Warnings = append(res.Warnings, err.Error())
	default:
		// the payout job keeps retrying on its own schedule
		if qErr := escrow.Enqueue(ctx, s.db, t.ID, types.PayoutJobKindProviderPayout, s.now()); qErr != nil {
			err = errors.Join(err, qErr)
		}
		s.degrade(ctx, res, t.ID, "escrow released but the provider payout failed", err)
		res.Message = "escrow released, provider payout pending"
	}
	return res, nil
}

// PayoutProvider pays the provider of a completed booking. It is a no-op once a payout
// reference is recorded.
func (s *Service) PayoutProvider(ctx context.Context, transactionID string) (*models.Transaction, error) {
	t, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(t, types.TransactionStatusCompleted); err != nil {
		return nil, err
	}
	if t.PayoutReference != nil {
		return t, nil
	}
	return s.payout(ctx, t)
}

func (s *Service) payout(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	var reference string
	switch t.Flow {
	case types.PaymentFlowMarketplace:
		if t.CaptureID() == "" {
			return nil, fmt.Errorf("%w: %s has no capture", ErrMissingPayment, t.ID)
		}
		rel, err := s.gateway.ReleaseDelayedDisbursement(ctx, t.CaptureID(), "release-"+t.ID)
		if err != nil {
			return nil, gatewayError(ErrPayoutFailed, err)
		}
		reference = rel.ItemID
		if reference == "" {
			reference = t.CaptureID()
		}
	default:
		provider, err := s.providerByUser(ctx, t.ProviderID)
		if err != nil {
			return nil, err
		}
		receiver, byMerchantID, ok := provider.PayoutDestination()
		if !ok {
			return nil, fmt.Errorf("%w: provider %s", ErrNoPayoutAccount, t.ProviderID)
		}
		recipientType := paypal.RecipientTypeEmail
		if byMerchantID {
			recipientType = paypal.RecipientTypePaypalID
		}
		p, err := s.gateway.CreatePayout(ctx, paypal.PayoutRequest{
			SenderBatchID: "payout-" + t.ID,
			RecipientType: recipientType,
			Receiver:      receiver,
			AmountCents:   t.ProviderReceivesCents,
			Currency:      t.Currency,
			Note:          "Payout for booking " + t.OfferID,
			EmailSubject:  "You received a payout",
		})
		if err != nil {
			return nil, gatewayError(ErrPayoutFailed, err)
		}
		reference = p.BatchID
	}

	updated, err := s.store.Update(ctx, t.ID, types.TransactionStatusCompleted, map[string]any{"payout_reference": reference})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("provider_payout_sent", "transaction_id", t.ID, "flow", t.Flow, "reference", reference, "amount_cents", t.ProviderReceivesCents)
	s.notifier.EmitAsync(ctx, updated.ProviderID, notification.PayoutSent(updated.ID, formatAmount(updated.ProviderReceivesCents, updated.Currency)))
	return updated, nil
}

// RefundTransaction returns the captured total to the buyer.
func (s *Service) RefundTransaction(ctx context.Context, transactionID string, actor types.Actor) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins refund", ErrForbidden)
	}
	t, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(t, types.TransactionStatusCompleted, types.TransactionStatusCancelled, types.TransactionStatusRejected); err != nil {
		return nil, err
	}
	if t.CaptureID() == "" {
		return nil, fmt.Errorf("%w: %s was never captured", ErrMissingPayment, t.ID)
	}
	refunded, err := s.refund(ctx, t, actor, "refunded by admin")
	if err != nil {
		return nil, err
	}
	return &Result{Transaction: refunded, Message: "payment refunded"}, nil
}

func (s *Service) refund(ctx context.Context, t *models.Transaction, actor types.Actor, reason string) (*models.Transaction, error) {
	refund, err := s.gateway.RefundCapture(ctx, t.CaptureID(), t.TotalClientPaysCents, t.Currency, "refund-"+t.ID)
	if err != nil {
		return nil, gatewayError(ErrRefundFailed, err)
	}
	return s.markRefunded(ctx, t, refund.ID, actor, reason)
}

func (s *Service) markRefunded(ctx context.Context, t *models.Transaction, refundID string, actor types.Actor, reason string) (*models.Transaction, error) {
	var updated *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = s.store.WithTx(tx).Transition(ctx, transaction.TransitionRequest{
			ID:      t.ID,
			From:    []types.TransactionStatus{t.Status},
			To:      types.TransactionStatusRefunded,
			Updates: map[string]any{"refund_id": refundID},
			Actor:   actor,
			Reason:  reason,
		})
		if err != nil {
			return err
		}
		return escrow.CancelPending(ctx, tx, t.ID, "transaction refunded")
	})
	if err != nil {
		return nil, err
	}
	s.notifier.EmitAsync(ctx, updated.ClientID, notification.PaymentRefunded(updated.ID, formatAmount(updated.TotalClientPaysCents, updated.Currency)))
	return updated, nil
}

// MarkRefunded records a refund reported by the gateway for captureID. Refunds the
// state machine does not allow are reported as ErrInvalidState.
func (s *Service) MarkRefunded(ctx context.Context, captureID, refundID string) (*models.Transaction, error) {
	t, err := s.store.GetByCaptureID(ctx, captureID)
	if err != nil {
		return nil, err
	}
	if t.Status == types.TransactionStatusRefunded {
		return t, nil
	}
	if !t.Status.CanTransitionTo(types.TransactionStatusRefunded) {
		return nil, requireStatus(t, types.TransactionStatusCompleted, types.TransactionStatusCancelled, types.TransactionStatusRejected)
	}
	return s.markRefunded(ctx, t, refundID, types.SystemActor, "refund reported by gateway")
}

// RunJob executes a due payout job for the escrow sweeper.
func (s *Service) RunJob(ctx context.Context, job *models.PayoutJob) error {
	t, err := s.store.Get(ctx, job.TransactionID)
	if err != nil {
		return err
	}
	lg := logctx.FromCtx(ctx, s.log)
	switch job.Kind {
	case types.PayoutJobKindEscrowRelease:
		if t.Status != types.TransactionStatusEscrow && t.Status != types.TransactionStatusCompleted {
			lg.Infow("escrow_release_skipped", "transaction_id", t.ID, "status", t.Status)
			return nil
		}
		res, err := s.ReleaseEscrow(ctx, t.ID, types.SystemActor)
		if err != nil {
			return err
		}
		if res.Degraded {
			lg.Warnw("escrow_release_degraded", "transaction_id", t.ID, "warnings", res.Warnings)
		}
		return nil
	case types.PayoutJobKindProviderPayout:
		if t.Status != types.TransactionStatusCompleted {
			lg.Infow("provider_payout_skipped", "transaction_id", t.ID, "status", t.Status)
			return nil
		}
		_, err := s.PayoutProvider(ctx, t.ID)
		return err
	default:
		return fmt.Errorf("unknown payout job kind %q", job.Kind)
	}
}
