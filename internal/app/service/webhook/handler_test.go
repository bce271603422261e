package webhook

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/fatflowers/partypay/internal/app/service/provider"
	"github.com/fatflowers/partypay/internal/app/service/transaction"
	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/internal/platform/paypal/mocks"
	"github.com/fatflowers/partypay/pkg/apperr"
)

type memLogs struct {
	mu      sync.Mutex
	entries []*models.PaymentNotificationLog
}

func (m *memLogs) Save(_ context.Context, e *models.PaymentNotificationLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *memLogs) Handled(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.EventID == eventID && e.Status == models.PaymentNotificationLogStatusHandled {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLogs) statuses() []models.PaymentNotificationLogStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PaymentNotificationLogStatus, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Status)
	}
	return out
}

type stubPayments struct {
	approved []string
	refunded [][2]string
	err      error
}

func (s *stubPayments) RecordOrderApproval(_ context.Context, orderID string) (*models.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.approved = append(s.approved, orderID)
	return &models.Transaction{ID: "tx-1"}, nil
}

func (s *stubPayments) MarkRefunded(_ context.Context, captureID, refundID string) (*models.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.refunded = append(s.refunded, [2]string{captureID, refundID})
	return &models.Transaction{ID: "tx-1"}, nil
}

type stubProviders struct {
	completed []provider.CallbackRequest
	refreshed []string
	revoked   []string
}

func (s *stubProviders) CompleteOnboarding(_ context.Context, _ string, req provider.CallbackRequest) (*provider.StatusView, error) {
	s.completed = append(s.completed, req)
	return &provider.StatusView{}, nil
}

func (s *stubProviders) RefreshByMerchantID(_ context.Context, merchantID string) (*provider.StatusView, error) {
	s.refreshed = append(s.refreshed, merchantID)
	return &provider.StatusView{}, nil
}

func (s *stubProviders) RevokeConsent(_ context.Context, merchantID string) error {
	s.revoked = append(s.revoked, merchantID)
	return nil
}

func newTestHandler(t *testing.T, verify bool) (*Handler, *mocks.MockGateway, *memLogs, *stubPayments, *stubProviders) {
	gw := mocks.NewMockGateway(gomock.NewController(t))
	logs := &memLogs{}
	pay := &stubPayments{}
	prov := &stubProviders{}
	return &Handler{verify: verify, gateway: gw, logs: logs, payments: pay, providers: prov, log: zap.NewNop().Sugar()}, gw, logs, pay, prov
}

const refundEvent = `{
  "id": "WH-1",
  "event_type": "PAYMENT.CAPTURE.REFUNDED",
  "create_time": "2026-05-01T10:00:00Z",
  "resource": {
    "id": "REF-1",
    "status": "COMPLETED",
    "links": [
      {"rel": "self", "href": "https://api-m.paypal.com/v2/payments/refunds/REF-1"},
      {"rel": "up", "href": "https://api-m.paypal.com/v2/payments/captures/CAP-1"}
    ]
  }
}`

func TestHandle_VerifiesSignature(t *testing.T) {
	h, gw, logs, _, _ := newTestHandler(t, true)
	gw.EXPECT().VerifyWebhookSignature(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)

	err := h.Handle(context.Background(), http.Header{}, []byte(refundEvent))
	require.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
	require.Empty(t, logs.statuses())
}

func TestHandle_CaptureRefunded(t *testing.T) {
	h, gw, logs, pay, _ := newTestHandler(t, true)
	gw.EXPECT().VerifyWebhookSignature(gomock.Any(), gomock.Any(), []byte(refundEvent)).Return(true, nil).Times(2)

	require.NoError(t, h.Handle(context.Background(), http.Header{}, []byte(refundEvent)))
	require.Equal(t, [][2]string{{"CAP-1", "REF-1"}}, pay.refunded)
	require.Equal(t, []models.PaymentNotificationLogStatus{
		models.PaymentNotificationLogStatusReceived,
		models.PaymentNotificationLogStatusHandled,
	}, logs.statuses())
	require.Equal(t, "tx-1", *logs.entries[1].TransactionID)

	// redelivery of a handled event is ignored
	require.NoError(t, h.Handle(context.Background(), http.Header{}, []byte(refundEvent)))
	require.Len(t, pay.refunded, 1)
}

func TestHandle_Dispatch(t *testing.T) {
	h, _, _, pay, prov := newTestHandler(t, false)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, nil, []byte(`{"id":"WH-2","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-1","status":"APPROVED"}}`)))
	require.Equal(t, []string{"ORDER-1"}, pay.approved)

	require.NoError(t, h.Handle(ctx, nil, []byte(`{"id":"WH-3","event_type":"MERCHANT.ONBOARDING.COMPLETED","resource":{"merchant_id":"M-1","tracking_id":"T-1"}}`)))
	require.Len(t, prov.completed, 1)
	require.Equal(t, "T-1", prov.completed[0].TrackingID)
	require.Equal(t, "M-1", prov.completed[0].MerchantIDInPaypal)

	require.NoError(t, h.Handle(ctx, nil, []byte(`{"id":"WH-4","event_type":"MERCHANT.ONBOARDING.COMPLETED","resource":{"merchant_id":"M-2"}}`)))
	require.Equal(t, []string{"M-2"}, prov.refreshed)

	require.NoError(t, h.Handle(ctx, nil, []byte(`{"id":"WH-5","event_type":"MERCHANT.PARTNER-CONSENT.REVOKED","resource":{"merchant_id":"M-1"}}`)))
	require.Equal(t, []string{"M-1"}, prov.revoked)

	require.NoError(t, h.Handle(ctx, nil, []byte(`{"id":"WH-6","event_type":"BILLING.PLAN.CREATED","resource":{}}`)))
}

func TestHandle_Errors(t *testing.T) {
	h, _, logs, pay, _ := newTestHandler(t, false)
	ctx := context.Background()

	err := h.Handle(ctx, nil, []byte(`not json`))
	require.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	// a refund the state machine rejects is acknowledged, not retried
	pay.err = transaction.ErrInvalidState
	require.NoError(t, h.Handle(ctx, nil, []byte(refundEvent)))

	pay.err = errors.New("database down")
	err = h.Handle(ctx, nil, []byte(`{"id":"WH-7","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-1"}}`))
	require.Error(t, err)
	statuses := logs.statuses()
	require.Equal(t, models.PaymentNotificationLogStatusHandleFailed, statuses[len(statuses)-1])
}
