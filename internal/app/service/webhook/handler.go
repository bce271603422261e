package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	notificationlog "github.com/fatflowers/partypay/internal/app/service/notification_log"
	"github.com/fatflowers/partypay/internal/app/service/payment"
	"github.com/fatflowers/partypay/internal/app/service/provider"
	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/internal/platform/paypal"
	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/config"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/types"
)

var ErrInvalidSignature = apperr.New(apperr.CodeUnauthorized, "webhook signature verification failed")

type payments interface {
	RecordOrderApproval(ctx context.Context, orderID string) (*models.Transaction, error)
	MarkRefunded(ctx context.Context, captureID, refundID string) (*models.Transaction, error)
}

type providers interface {
	CompleteOnboarding(ctx context.Context, userID string, req provider.CallbackRequest) (*provider.StatusView, error)
	RefreshByMerchantID(ctx context.Context, merchantID string) (*provider.StatusView, error)
	RevokeConsent(ctx context.Context, merchantID string) error
}

type logStore interface {
	Save(ctx context.Context, entry *models.PaymentNotificationLog)
	Handled(ctx context.Context, eventID string) (bool, error)
}

// Handler verifies, records and dispatches PayPal webhook deliveries.
type Handler struct {
	verify    bool
	gateway   paypal.Gateway
	logs      logStore
	payments  payments
	providers providers
	log       *zap.SugaredLogger
}

func NewHandler(cfg *config.Config, gateway paypal.Gateway, logs *notificationlog.Service, pay *payment.Service, prov *provider.Service, log *zap.SugaredLogger) *Handler {
	return &Handler{
		// live deliveries are always verified
		verify:    cfg.Paypal.WebhookVerify || cfg.Paypal.IsLive(),
		gateway:   gateway,
		logs:      logs,
		payments:  pay,
		providers: prov,
		log:       log,
	}
}

// Handle processes one delivery. A nil error means PayPal may consider it delivered;
// events about unknown objects or in a state that no longer allows them are acknowledged.
func (h *Handler) Handle(ctx context.Context, headers http.Header, body []byte) (resErr error) {
	lg := logctx.FromCtx(ctx, h.log)
	if h.verify {
		ok, err := h.gateway.VerifyWebhookSignature(ctx, paypal.WebhookHeadersFrom(headers), body)
		if err != nil {
			lg.Errorw("webhook_verification_error", "err", err)
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		if !ok {
			return ErrInvalidSignature
		}
	}

	event, err := ParseEvent(body)
	if err != nil {
		return err
	}
	lg = lg.With("event_id", event.ID, "event_type", event.EventType)

	handled, err := h.logs.Handled(ctx, event.ID)
	if err != nil {
		return err
	}
	if handled {
		lg.Infow("webhook_duplicate_ignored")
		return nil
	}

	entry := func(status models.PaymentNotificationLogStatus) *models.PaymentNotificationLog {
		return &models.PaymentNotificationLog{
			ProviderID:       types.PaymentProviderPaypal,
			EventID:          event.ID,
			EventType:        event.EventType,
			ResourceID:       event.ResourceID(),
			TraceID:          logctx.TraceID(ctx),
			NotificationTime: event.CreateTime,
			Data:             datatypes.JSON(body),
			Status:           status,
		}
	}
	h.logs.Save(ctx, entry(models.PaymentNotificationLogStatusReceived))

	var result any
	defer func() {
		resMap := map[string]any{"result": result}
		status := models.PaymentNotificationLogStatusHandled
		if resErr != nil {
			resMap["error"] = resErr.Error()
			status = models.PaymentNotificationLogStatusHandleFailed
		}
		resBytes, _ := json.Marshal(resMap)
		done := entry(status)
		done.NotificationTime = time.Now()
		done.Result = func() *datatypes.JSON { j := datatypes.JSON(resBytes); return &j }()
		if tx, ok := result.(*models.Transaction); ok && tx != nil {
			done.TransactionID = &tx.ID
		}
		h.logs.Save(ctx, done)
	}()

	result, resErr = h.dispatch(ctx, event)
	if resErr != nil && acknowledged(resErr) {
		lg.Warnw("webhook_event_not_applicable", "err", resErr)
		result = map[string]string{"ignored": resErr.Error()}
		resErr = nil
	}
	if resErr != nil {
		lg.Errorw("webhook_handle_failed", "err", resErr)
	}
	return resErr
}

func (h *Handler) dispatch(ctx context.Context, event *Event) (any, error) {
	switch event.EventType {
	case EventOrderApproved:
		r, err := event.resource()
		if err != nil {
			return nil, err
		}
		return h.payments.RecordOrderApproval(ctx, r.ID)
	case EventCaptureRefunded:
		r, err := event.resource()
		if err != nil {
			return nil, err
		}
		captureID := captureIDFromRefund(r)
		if captureID == "" {
			return nil, fmt.Errorf("%w: refund %s has no capture link", ErrMalformedEvent, r.ID)
		}
		return h.payments.MarkRefunded(ctx, captureID, r.ID)
	case EventOnboardingComplete:
		r, err := event.resource()
		if err != nil {
			return nil, err
		}
		if r.TrackingID != "" {
			return h.providers.CompleteOnboarding(ctx, "", provider.CallbackRequest{
				TrackingID:         r.TrackingID,
				MerchantIDInPaypal: r.MerchantID,
				PermissionsGranted: true,
				ConsentStatus:      true,
			})
		}
		return h.providers.RefreshByMerchantID(ctx, r.MerchantID)
	case EventConsentRevoked:
		r, err := event.resource()
		if err != nil {
			return nil, err
		}
		return nil, h.providers.RevokeConsent(ctx, r.MerchantID)
	default:
		logctx.FromCtx(ctx, h.log).Infow("webhook_event_unhandled", "event_type", event.EventType)
		return map[string]string{"unhandled": event.EventType}, nil
	}
}

// acknowledged reports failures a redelivery cannot fix.
func acknowledged(err error) bool {
	if errors.Is(err, ErrMalformedEvent) {
		return true
	}
	switch apperr.CodeOf(err) {
	case apperr.CodeNotFound, apperr.CodeInvalidState, apperr.CodeForbidden:
		return true
	}
	return false
}

var Module = fx.Options(
	fx.Provide(NewHandler),
)
