package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mw "github.com/fatflowers/partypay/internal/app/api/middleware"
	"github.com/fatflowers/partypay/internal/app/service/fees"
	"github.com/fatflowers/partypay/internal/app/service/payment"
	"github.com/fatflowers/partypay/internal/app/service/statistics"
	"github.com/fatflowers/partypay/internal/app/service/transaction"
	"github.com/fatflowers/partypay/internal/app/service/webhook"
	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/pkg/types"
)

var (
	clientActor   = types.Actor{UserID: "client-1", Role: types.UserRoleClient}
	providerActor = types.Actor{UserID: "provider-1", Role: types.UserRoleProvider}
	adminActor    = types.Actor{UserID: "admin-1", Role: types.UserRoleAdmin}
)

type stubPayments struct {
	err      error
	checkout payment.CheckoutRequest
	actor    types.Actor
	reason   string
	approved int
}

func (s *stubPayments) result(id string) *payment.Result {
	return &payment.Result{Transaction: &models.Transaction{ID: id, Status: types.TransactionStatusEscrow}}
}

func (s *stubPayments) CheckoutOffer(_ context.Context, req payment.CheckoutRequest, actor types.Actor) (*payment.OrderResult, error) {
	s.checkout, s.actor = req, actor
	if s.err != nil {
		return nil, s.err
	}
	return &payment.OrderResult{TransactionID: "tx-1", OrderID: "ORDER-1", ApproveURL: "https://paypal.test/approve"}, nil
}

func (s *stubPayments) AuthorizePayment(_ context.Context, _ string, actor types.Actor) (*payment.Result, error) {
	s.actor = actor
	return s.result("tx-1"), s.err
}

func (s *stubPayments) CapturePayment(_ context.Context, _ string, actor types.Actor) (*payment.CaptureResult, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &payment.CaptureResult{Result: *s.result("tx-1")}, nil
}

func (s *stubPayments) GetTransaction(_ context.Context, id string, actor types.Actor) (*payment.TransactionView, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &payment.TransactionView{Transaction: &models.Transaction{ID: id}}, nil
}

func (s *stubPayments) ApproveTransaction(_ context.Context, id string, actor types.Actor) (*payment.CaptureResult, error) {
	s.actor = actor
	s.approved++
	if s.err != nil {
		return nil, s.err
	}
	return &payment.CaptureResult{Result: *s.result(id)}, nil
}

func (s *stubPayments) HandleProviderAcceptance(_ context.Context, id string, actor types.Actor) (*payment.Result, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return s.result(id), nil
}

func (s *stubPayments) RejectTransaction(_ context.Context, id string, actor types.Actor, reason string) (*payment.Result, error) {
	s.actor, s.reason = actor, reason
	if s.err != nil {
		return nil, s.err
	}
	return s.result(id), nil
}

func (s *stubPayments) CancelTransaction(_ context.Context, id string, actor types.Actor) (*payment.Result, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return s.result(id), nil
}

func (s *stubPayments) ReleaseEscrow(_ context.Context, id string, actor types.Actor) (*payment.Result, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return s.result(id), nil
}

func (s *stubPayments) RefundTransaction(_ context.Context, id string, actor types.Actor) (*payment.Result, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return s.result(id), nil
}

type stubFees struct{ current fees.FeeSettings }

func (s *stubFees) GetFeeSettings(context.Context) fees.FeeSettings { return s.current }

func (s *stubFees) UpdateFeeSettings(_ context.Context, req fees.UpdateFeeSettingsRequest) (fees.FeeSettings, error) {
	if req.ClientFeePercent != nil {
		s.current.ClientFeePercent = *req.ClientFeePercent
	}
	if req.ProviderFeePercent != nil {
		s.current.ProviderFeePercent = *req.ProviderFeePercent
	}
	return s.current, nil
}

type stubScanner struct {
	req *transaction.ScanTransactionsRequest
}

func (s *stubScanner) Scan(_ context.Context, req *transaction.ScanTransactionsRequest) (*transaction.ScanTransactionsResponse, error) {
	s.req = req
	return &transaction.ScanTransactionsResponse{Total: 1, Items: []*models.Transaction{{ID: "tx-1"}}}, nil
}

type stubStats struct{}

func (stubStats) GetStatistics(_ context.Context, req *statistics.Request) (*statistics.Response, error) {
	if len(req.DataItems) == 0 {
		return nil, statistics.ErrInvalidRequest
	}
	return &statistics.Response{DataItems: map[statistics.StatisticType][]statistics.DataPoint{
		req.DataItems[0].ID: {{Date: "2026-05-01", Value: 3}},
	}}, nil
}

type stubWebhook struct {
	err  error
	body []byte
}

func (s *stubWebhook) Handle(_ context.Context, _ http.Header, body []byte) error {
	s.body = body
	return s.err
}

// asActor stands in for AuthMiddleware.
func asActor(actor types.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		mw.WithActor(c, actor)
		c.Next()
	}
}

func newRouter(t *testing.T, actor *types.Actor, register func(r *gin.Engine)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())
	r := gin.New()
	if actor != nil {
		r.Use(asActor(*actor))
	}
	register(r)
	return r
}

func do(r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRegisterRoutes_RegistersEndpoints(t *testing.T) {
	r := newRouter(t, nil, func(r *gin.Engine) {
		RegisterHealthRoutes(r)
		RegisterPaymentRoutes(r.Group("/api/payments"), nil)
		RegisterTransactionRoutes(r.Group("/api/transactions"), nil)
		RegisterProviderRoutes(r.Group("/api/providers"), nil)
		RegisterWebhookRoutes(r.Group("/api/webhooks"), nil, zap.NewNop().Sugar())
		RegisterAdminRoutes(r.Group("/api/admin"), AdminDeps{})
	})

	registered := map[string]bool{}
	for _, rt := range r.Routes() {
		registered[rt.Method+" "+rt.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"POST /api/payments/create",
		"POST /api/payments/authorize",
		"POST /api/payments/capture",
		"GET /api/transactions/:id",
		"POST /api/transactions/:id/approve",
		"POST /api/transactions/:id/accept",
		"POST /api/transactions/:id/reject",
		"POST /api/transactions/:id/cancel",
		"POST /api/providers/paypal/onboard",
		"GET /api/providers/paypal/callback",
		"POST /api/providers/paypal/status",
		"POST /api/webhooks/paypal",
		"GET /api/admin/settings/fees",
		"PUT /api/admin/settings/fees",
		"POST /api/admin/transactions/list",
		"POST /api/admin/transactions/:id/release",
		"POST /api/admin/transactions/:id/refund",
		"POST /api/admin/providers/:id/paypal/status",
		"POST /api/admin/statistics",
	} {
		require.True(t, registered[want], want)
	}
}

func TestApprove_CompletedTransactionIsInvalidState(t *testing.T) {
	svc := &stubPayments{err: fmt.Errorf("%w: transaction tx-1 is COMPLETED, expected PROVIDER_REVIEW", transaction.ErrInvalidState)}
	r := newRouter(t, &providerActor, func(r *gin.Engine) { RegisterTransactionRoutes(r.Group("/api/transactions"), svc) })

	w := do(r, http.MethodPost, "/api/transactions/tx-1/approve", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	require.False(t, env.Success)
	require.Equal(t, "INVALID_STATE", env.Code)
	require.Contains(t, env.Message, "COMPLETED")
}

func TestApprove_NonProviderIsForbidden(t *testing.T) {
	svc := &stubPayments{err: fmt.Errorf("%w: tx-1", payment.ErrForbidden)}
	r := newRouter(t, &clientActor, func(r *gin.Engine) { RegisterTransactionRoutes(r.Group("/api/transactions"), svc) })

	w := do(r, http.MethodPost, "/api/transactions/tx-1/approve", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "FORBIDDEN", decode(t, w).Code)
	require.Equal(t, clientActor, svc.actor)
}

func TestApprove_Success(t *testing.T) {
	svc := &stubPayments{}
	r := newRouter(t, &providerActor, func(r *gin.Engine) { RegisterTransactionRoutes(r.Group("/api/transactions"), svc) })

	w := do(r, http.MethodPost, "/api/transactions/tx-9/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	require.True(t, env.Success)
	require.Equal(t, "OK", env.Code)
	require.Contains(t, string(env.Data), `"tx-9"`)
	require.Equal(t, 1, svc.approved)
}

func TestCreatePayment_PassesIdempotencyKeyAndActor(t *testing.T) {
	svc := &stubPayments{}
	r := newRouter(t, &clientActor, func(r *gin.Engine) { RegisterPaymentRoutes(r.Group("/api/payments"), svc) })

	w := do(r, http.MethodPost, "/api/payments/create", map[string]any{"offer_id": "offer-1"}, mw.HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "offer-1", svc.checkout.OfferID)
	require.Equal(t, "key-1", svc.checkout.IdempotencyKey)
	require.Equal(t, clientActor, svc.actor)
	require.Contains(t, string(decode(t, w).Data), "ORDER-1")

	w = do(r, http.MethodPost, "/api/payments/create", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_ERROR", decode(t, w).Code)
}

func TestCapturePayment_ErrorCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: declined", payment.ErrPaymentCapture), http.StatusPaymentRequired, "CAPTURE_FAILED"},
		{payment.ErrGatewayTimeout, http.StatusGatewayTimeout, "GATEWAY_TIMEOUT"},
		{payment.ErrNotConfigured, http.StatusServiceUnavailable, "CONFIG_ERROR"},
		{payment.ErrAmountMismatch, http.StatusConflict, "AMOUNT_MISMATCH"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			r := newRouter(t, &clientActor, func(r *gin.Engine) {
				RegisterPaymentRoutes(r.Group("/api/payments"), &stubPayments{err: tc.err})
			})
			w := do(r, http.MethodPost, "/api/payments/capture", map[string]any{"order_id": "ORDER-1"})
			require.Equal(t, tc.status, w.Code)
			require.Equal(t, tc.code, decode(t, w).Code)
		})
	}
}

func TestRejectTransaction_OptionalReason(t *testing.T) {
	svc := &stubPayments{}
	r := newRouter(t, &providerActor, func(r *gin.Engine) { RegisterTransactionRoutes(r.Group("/api/transactions"), svc) })

	w := do(r, http.MethodPost, "/api/transactions/tx-1/reject", map[string]any{"reason": "double booked"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "double booked", svc.reason)

	w = do(r, http.MethodPost, "/api/transactions/tx-1/reject", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, svc.reason)
}

func TestMissingActorIsUnauthorized(t *testing.T) {
	r := newRouter(t, nil, func(r *gin.Engine) { RegisterTransactionRoutes(r.Group("/api/transactions"), &stubPayments{}) })
	w := do(r, http.MethodGet, "/api/transactions/tx-1", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFeeSettingsRoutes(t *testing.T) {
	svc := &stubFees{current: fees.Defaults()}
	r := newRouter(t, &adminActor, func(r *gin.Engine) { RegisterAdminRoutes(r.Group("/api/admin"), AdminDeps{Fees: svc}) })

	w := do(r, http.MethodGet, "/api/admin/settings/fees", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"client_fee_percent":5,"provider_fee_percent":12}`, string(decode(t, w).Data))

	w = do(r, http.MethodPut, "/api/admin/settings/fees", map[string]any{"provider_fee_percent": 10.5})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 10.5, svc.current.ProviderFeePercent)

	w = do(r, http.MethodPut, "/api/admin/settings/fees", map[string]any{"client_fee_percent": 120})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_ERROR", decode(t, w).Code)
	require.Equal(t, 5.0, svc.current.ClientFeePercent)
}

func TestListTransactions(t *testing.T) {
	scanner := &stubScanner{}
	r := newRouter(t, &adminActor, func(r *gin.Engine) {
		RegisterAdminRoutes(r.Group("/api/admin"), AdminDeps{Transactions: scanner})
	})

	w := do(r, http.MethodPost, "/api/admin/transactions/list", map[string]any{
		"filters":    []map[string]any{{"field": "status", "operator": "eq", "values": []string{"ESCROW"}}},
		"size":       20,
		"sort_order": "asc",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 20, scanner.req.Size)
	require.Len(t, scanner.req.Filters, 1)
	require.Equal(t, "status", scanner.req.Filters[0].Field)

	w = do(r, http.MethodPost, "/api/admin/transactions/list", map[string]any{"sort_order": "sideways"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatisticsRoute(t *testing.T) {
	r := newRouter(t, &adminActor, func(r *gin.Engine) {
		RegisterAdminRoutes(r.Group("/api/admin"), AdminDeps{Statistics: stubStats{}})
	})
	w := do(r, http.MethodPost, "/api/admin/statistics", map[string]any{"data_items": []map[string]any{{"id": "daily_gmv"}}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, string(decode(t, w).Data), "daily_gmv")

	w = do(r, http.MethodPost, "/api/admin/statistics", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaypalWebhook(t *testing.T) {
	h := &stubWebhook{}
	r := newRouter(t, nil, func(r *gin.Engine) { RegisterWebhookRoutes(r.Group("/api/webhooks"), h, zap.NewNop().Sugar()) })

	w := do(r, http.MethodPost, "/api/webhooks/paypal", map[string]any{"id": "WH-1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, string(h.body), "WH-1")

	h.err = webhook.ErrInvalidSignature
	w = do(r, http.MethodPost, "/api/webhooks/paypal", map[string]any{"id": "WH-2"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHORIZED", decode(t, w).Code)
}
