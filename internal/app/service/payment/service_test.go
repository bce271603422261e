package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/partypay/internal/app/service/escrow"
	"github.com/fatflowers/partypay/internal/app/service/fees"
	"github.com/fatflowers/partypay/internal/app/service/notification"
	"github.com/fatflowers/partypay/internal/app/service/transaction"
	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/internal/platform/db/dbtest"
	"github.com/fatflowers/partypay/internal/platform/paypal"
	"github.com/fatflowers/partypay/internal/platform/paypal/mocks"
	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/config"
	"github.com/fatflowers/partypay/pkg/tool"
	"github.com/fatflowers/partypay/pkg/types"
)

var (
	clientActor   = types.Actor{UserID: "client-1", Role: types.UserRoleClient}
	providerActor = types.Actor{UserID: "provider-1", Role: types.UserRoleProvider}
	adminActor    = types.Actor{UserID: "admin-1", Role: types.UserRoleAdmin}
	fixedNow      = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
)

type sent struct {
	userID string
	msg    notification.Message
}

type recordingNotifier struct {
	mu     sync.Mutex
	sent   []sent
	alerts []notification.Message
}

func (r *recordingNotifier) EmitAsync(_ context.Context, userID string, msg notification.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{userID, msg})
}

func (r *recordingNotifier) NotifyAdminsAsync(_ context.Context, msg notification.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, msg)
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	gateway  *mocks.MockGateway
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	db := dbtest.New(t)
	log := zap.NewNop().Sugar()
	gw := mocks.NewMockGateway(gomock.NewController(t))
	cfg := &config.Config{
		App:    config.AppConfig{BaseURL: "https://party.example"},
		Paypal: config.PaypalConfig{Currency: "USD"},
		Escrow: config.EscrowConfig{HoldDuration: 24 * time.Hour},
	}
	svc := NewService(db, transaction.NewStore(db, log, nil), gw, fees.NewService(db, log), notification.NewEmitter(db, log), cfg, log)
	rec := &recordingNotifier{}
	svc.notifier = rec
	svc.now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, db: db, gateway: gw, notifier: rec}
}

type providerOpt func(*models.Provider)

func withMerchant(id string) providerOpt {
	return func(p *models.Provider) { p.PaypalMerchantID = lo.ToPtr(id) }
}

func withEmail(email string) providerOpt {
	return func(p *models.Provider) { p.PaypalEmail = lo.ToPtr(email) }
}

func onboarded(p *models.Provider) {
	p.PaypalOnboardingComplete = true
	p.PaypalCanReceivePayments = true
}

func (f *fixture) seedProvider(t *testing.T, opts ...providerOpt) {
	p := &models.Provider{ID: tool.GenerateUUIDV7(), UserID: providerActor.UserID}
	for _, o := range opts {
		o(p)
	}
	require.NoError(t, f.db.Create(p).Error)
}

func (f *fixture) seedOffer(t *testing.T, id string, price int64) {
	require.NoError(t, f.db.Create(&models.Offer{
		ID: id, ClientID: clientActor.UserID, ProviderID: providerActor.UserID, ServiceID: "svc-1", Price: decimal.NewFromInt(price),
	}).Error)
}

// seedTx stores a 100.00 booking already carrying the default 5% / 12% snapshot.
func (f *fixture) seedTx(t *testing.T, status types.TransactionStatus, flow types.PaymentFlow, mutate ...func(*models.Transaction)) *models.Transaction {
	tx := &models.Transaction{
		ID:                      tool.GenerateUUIDV7(),
		OfferID:                 tool.GenerateUUIDV7(),
		ClientID:                clientActor.UserID,
		ProviderID:              providerActor.UserID,
		Amount:                  decimal.NewFromInt(100),
		Currency:                "USD",
		Status:                  status,
		Flow:                    flow,
		ClientFeePercent:        decimal.NewFromInt(5),
		ProviderFeePercent:      decimal.NewFromInt(12),
		TotalClientPaysCents:    10500,
		ProviderReceivesCents:   8800,
		PlatformCommissionCents: 1700,
	}
	if status != types.TransactionStatusPending {
		tx.PaymentIntentID = lo.ToPtr("ORDER-" + tx.ID)
	}
	for _, m := range mutate {
		m(tx)
	}
	require.NoError(t, f.db.Create(tx).Error)
	return tx
}

func captured(tx *models.Transaction) { tx.PaymentMethodID = lo.ToPtr("CAP-" + tx.ID) }

func (f *fixture) reload(t *testing.T, id string) *models.Transaction {
	var tx models.Transaction
	require.NoError(t, f.db.First(&tx, "id = ?", id).Error)
	return &tx
}

func (f *fixture) jobs(t *testing.T, txID string) []models.PayoutJob {
	jobs, err := escrow.ListJobs(context.Background(), f.db, txID)
	require.NoError(t, err)
	return jobs
}

func approvedOrder(id string) *paypal.Order {
	return &paypal.Order{ID: id, Status: paypal.OrderStatusCreated, Links: []paypal.Link{{Rel: "approve", Href: "https://paypal.example/approve/" + id}}}
}

func TestCalculateBreakdown(t *testing.T) {
	tests := []struct {
		name                     string
		amount                   string
		client, provider         float64
		total, receives, platfee int64
	}{
		{"defaults", "100", 5, 12, 10500, 8800, 1700},
		{"half cent rounds up", "33.33", 5, 12, 3500, 2933, 567},
		{"zero fees", "80", 0, 0, 8000, 8000, 0},
		{"fractional percent", "250", 2.5, 7.25, 25625, 23187, 2438},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bd := CalculateBreakdown(decimal.RequireFromString(tt.amount), fees.FeeSettings{ClientFeePercent: tt.client, ProviderFeePercent: tt.provider}, "USD")
			require.Equal(t, tt.total, bd.TotalClientPaysCents)
			require.Equal(t, tt.receives, bd.ProviderReceivesCents)
			require.Equal(t, tt.platfee, bd.PlatformCommissionCents)
			require.Equal(t, bd.ClientFeeCents+bd.ProviderFeeCents, bd.PlatformCommissionCents)
			require.Equal(t, bd.TotalClientPaysCents, bd.ProviderReceivesCents+bd.PlatformCommissionCents)
		})
	}

	bd := CalculateBreakdown(decimal.NewFromInt(100), fees.Defaults(), "USD")
	require.Equal(t, "105.00", bd.TotalClientPays())
	require.Equal(t, "88.00", bd.ProviderReceives())
	require.Equal(t, "17.00", bd.PlatformCommission())
}

func TestCreateMarketplacePaymentOrder_Eligible(t *testing.T) {
	f := newFixture(t)
	f.seedProvider(t, withMerchant("MERCHANT-1"), onboarded)
	tx := f.seedTx(t, types.TransactionStatusPending, "")

	f.gateway.EXPECT().CreateMarketplaceOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req paypal.CreateMarketplaceOrderRequest) (*paypal.Order, error) {
			require.Equal(t, tx.ID, req.TransactionID)
			require.Equal(t, int64(10500), req.TotalCents)
			require.Equal(t, int64(8800), req.ProviderCents)
			require.Equal(t, int64(1700), req.PlatformFeeCents)
			require.Equal(t, "MERCHANT-1", req.ProviderMerchantID)
			require.Equal(t, "order-"+tx.ID, req.IdempotencyKey)
			require.True(t, req.DelayedDisbursement)
			require.Contains(t, req.ReturnURL, "https://party.example/payments/return")
			return approvedOrder("ORDER-M"), nil
		})

	res, err := f.svc.CreateMarketplacePaymentOrder(context.Background(), tx.ID, decimal.NewFromInt(100), providerActor.UserID, nil)
	require.NoError(t, err)
	require.Equal(t, types.PaymentFlowMarketplace, res.Flow)
	require.Equal(t, "ORDER-M", res.OrderID)
	require.Equal(t, "https://paypal.example/approve/ORDER-M", res.ApproveURL)
	require.Equal(t, types.TransactionStatusPendingPayment, res.Status)

	stored := f.reload(t, tx.ID)
	require.Equal(t, "ORDER-M", stored.OrderID())
	require.Equal(t, int64(1700), stored.PlatformCommissionCents)
	require.True(t, stored.ClientFeePercent.Equal(decimal.NewFromInt(5)))
}

func TestCreateMarketplacePaymentOrder_FallbackHasSameShape(t *testing.T) {
	ineligible := map[string][]providerOpt{
		"no provider row":       nil,
		"missing merchant id":   {onboarded},
		"onboarding incomplete": {withMerchant("M-1"), func(p *models.Provider) { p.PaypalCanReceivePayments = true }},
		"cannot receive":        {withMerchant("M-1"), func(p *models.Provider) { p.PaypalOnboardingComplete = true }},
	}
	for name, opts := range ineligible {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			if opts != nil {
				f.seedProvider(t, opts...)
			}
			tx := f.seedTx(t, types.TransactionStatusPending, "")
			f.gateway.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req paypal.CreateOrderRequest) (*paypal.Order, error) {
					require.Equal(t, int64(10500), req.AmountCents)
					return approvedOrder("ORDER-R"), nil
				})

			res, err := f.svc.CreateMarketplacePaymentOrder(context.Background(), tx.ID, decimal.NewFromInt(100), providerActor.UserID, nil)
			require.NoError(t, err)

			want := &OrderResult{
				TransactionID: tx.ID,
				OrderID:       "ORDER-R",
				ApproveURL:    "https://paypal.example/approve/ORDER-R",
				Flow:          types.PaymentFlowRegular,
				Status:        types.TransactionStatusPendingPayment,
				Breakdown:     BreakdownOf(f.reload(t, tx.ID)),
			}
			require.Equal(t, want, res)
			require.Equal(t, int64(10500), res.Breakdown.TotalClientPaysCents)
		})
	}
}

func TestCreatePaymentOrder_Failures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperr.Code
	}{
		{"rejected", paypal.ErrOrderCreation, apperr.CodeOrderCreationFailed},
		{"timeout", paypal.ErrGatewayTimeout, apperr.CodeGatewayTimeout},
		{"no credentials", paypal.ErrCredentialsMissing, apperr.CodeConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tx := f.seedTx(t, types.TransactionStatusPending, "")
			f.gateway.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			_, err := f.svc.CreatePaymentOrder(context.Background(), tx.ID, decimal.NewFromInt(100), nil)
			require.Equal(t, tt.code, apperr.CodeOf(err))
			require.Equal(t, types.TransactionStatusPending, f.reload(t, tx.ID).Status)
		})
	}

	f := newFixture(t)
	tx := f.seedTx(t, types.TransactionStatusPending, "")
	_, err := f.svc.CreatePaymentOrder(context.Background(), tx.ID, decimal.Zero, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.svc.CreatePaymentOrder(context.Background(), tx.ID, decimal.NewFromInt(99), nil)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCheckoutOffer_IdempotencyKeyReturnsExistingOrder(t *testing.T) {
	f := newFixture(t)
	f.seedOffer(t, "offer-1", 100)
	f.gateway.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(approvedOrder("ORDER-1"), nil).Times(1)

	req := CheckoutRequest{OfferID: "offer-1", IdempotencyKey: "key-1"}
	first, err := f.svc.CheckoutOffer(context.Background(), req, clientActor)
	require.NoError(t, err)
	second, err := f.svc.CheckoutOffer(context.Background(), req, clientActor)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// same offer without the key also lands on the waiting order
	third, err := f.svc.CheckoutOffer(context.Background(), CheckoutRequest{OfferID: "offer-1"}, clientActor)
	require.NoError(t, err)
	require.Equal(t, first.TransactionID, third.TransactionID)

	_, err = f.svc.CheckoutOffer(context.Background(), CheckoutRequest{OfferID: "offer-1"}, providerActor)
	require.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
}

func TestCapturePayment(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusPendingPayment, types.PaymentFlowRegular)
		f.gateway.EXPECT().CaptureOrder(gomock.Any(), tx.OrderID(), "capture-"+tx.ID).
			Return(&paypal.Capture{ID: "CAP-1", Status: paypal.CaptureStatusCompleted, AmountCents: 10500, Currency: "USD"}, nil)

		res, err := f.svc.CapturePayment(context.Background(), tx.OrderID(), clientActor)
		require.NoError(t, err)
		require.False(t, res.Degraded)
		require.Equal(t, types.TransactionStatusPaidPendingProviderAcceptance, res.Transaction.Status)
		require.Equal(t, "CAP-1", res.Transaction.CaptureID())
		require.Equal(t, int64(10500), res.Breakdown.TotalClientPaysCents)
		require.Len(t, f.notifier.sent, 1)
		require.Equal(t, providerActor.UserID, f.notifier.sent[0].userID)
	})

	t.Run("gateway failure leaves the transaction untouched", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusPendingPayment, types.PaymentFlowRegular)
		f.gateway.EXPECT().CaptureOrder(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &paypal.GatewayError{Op: "capture_order", StatusCode: 422, Name: "ORDER_NOT_APPROVED"})

		_, err := f.svc.CapturePayment(context.Background(), tx.OrderID(), clientActor)
		require.ErrorIs(t, err, ErrPaymentCapture)
		require.Equal(t, apperr.CodeCaptureFailed, apperr.CodeOf(err))
		stored := f.reload(t, tx.ID)
		require.Equal(t, types.TransactionStatusPendingPayment, stored.Status)
		require.Equal(t, tx.Version, stored.Version)
	})

	t.Run("amount mismatch records capture and alerts", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusPendingPayment, types.PaymentFlowRegular)
		f.gateway.EXPECT().CaptureOrder(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&paypal.Capture{ID: "CAP-X", AmountCents: 9000, Currency: "USD"}, nil)

		_, err := f.svc.CapturePayment(context.Background(), tx.OrderID(), clientActor)
		require.Equal(t, apperr.CodeAmountMismatch, apperr.CodeOf(err))
		stored := f.reload(t, tx.ID)
		require.Equal(t, types.TransactionStatusPendingPayment, stored.Status)
		require.Equal(t, "CAP-X", stored.CaptureID())
		require.Len(t, f.notifier.alerts, 1)
	})

	t.Run("approval notice before buyer return", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusPendingPayment, types.PaymentFlowRegular)

		noted, err := f.svc.RecordOrderApproval(context.Background(), tx.OrderID())
		require.NoError(t, err)
		require.Equal(t, types.TransactionStatusPendingPayment, noted.Status)
		require.Equal(t, tx.Version, f.reload(t, tx.ID).Version)

		f.gateway.EXPECT().CaptureOrder(gomock.Any(), tx.OrderID(), "capture-"+tx.ID).
			Return(&paypal.Capture{ID: "CAP-1", Status: paypal.CaptureStatusCompleted, AmountCents: 10500, Currency: "USD"}, nil)
		res, err := f.svc.CapturePayment(context.Background(), tx.OrderID(), clientActor)
		require.NoError(t, err)
		require.Equal(t, types.TransactionStatusPaidPendingProviderAcceptance, res.Transaction.Status)
	})

	t.Run("wrong state", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusProviderReview, types.PaymentFlowRegular)
		_, err := f.svc.CapturePayment(context.Background(), tx.OrderID(), clientActor)
		require.ErrorIs(t, err, transaction.ErrInvalidState)
	})
}

func TestAuthorizePayment(t *testing.T) {
	f := newFixture(t)
	tx := f.seedTx(t, types.TransactionStatusPendingPayment, types.PaymentFlowRegular)

	f.gateway.EXPECT().GetOrder(gomock.Any(), tx.OrderID()).Return(&paypal.Order{ID: tx.OrderID(), Status: paypal.OrderStatusCreated}, nil)
	_, err := f.svc.AuthorizePayment(context.Background(), tx.OrderID(), clientActor)
	require.ErrorIs(t, err, ErrNotApproved)

	f.gateway.EXPECT().GetOrder(gomock.Any(), tx.OrderID()).Return(&paypal.Order{ID: tx.OrderID(), Status: paypal.OrderStatusApproved}, nil)
	res, err := f.svc.AuthorizePayment(context.Background(), tx.OrderID(), clientActor)
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusProviderReview, res.Transaction.Status)

	// a repeated authorize is a no-op
	res, err = f.svc.AuthorizePayment(context.Background(), tx.OrderID(), types.SystemActor)
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusProviderReview, res.Transaction.Status)
}

func TestHandleProviderAcceptance(t *testing.T) {
	t.Run("requires paid pending acceptance", func(t *testing.T) {
		f := newFixture(t)
		for _, st := range []types.TransactionStatus{types.TransactionStatusPendingPayment, types.TransactionStatusEscrow, types.TransactionStatusCompleted} {
			tx := f.seedTx(t, st, types.PaymentFlowRegular)
			_, err := f.svc.HandleProviderAcceptance(context.Background(), tx.ID, providerActor)
			require.ErrorIs(t, err, transaction.ErrInvalidState)
			require.Equal(t, st, f.reload(t, tx.ID).Status)
		}
	})

	tests := []struct {
		name     string
		flow     types.PaymentFlow
		provider []providerOpt
		want     types.TransactionStatus
		jobs     int
	}{
		{"marketplace", types.PaymentFlowMarketplace, []providerOpt{withMerchant("M-1"), onboarded}, types.TransactionStatusCompleted, 1},
		{"regular with payout email", types.PaymentFlowRegular, []providerOpt{withEmail("dj@example.com")}, types.TransactionStatusCompleted, 1},
		{"regular without destination", types.PaymentFlowRegular, nil, types.TransactionStatusEscrow, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.provider != nil {
				f.seedProvider(t, tt.provider...)
			}
			tx := f.seedTx(t, types.TransactionStatusPaidPendingProviderAcceptance, tt.flow, captured)

			res, err := f.svc.HandleProviderAcceptance(context.Background(), tx.ID, providerActor)
			require.NoError(t, err)
			require.Equal(t, tt.want, res.Transaction.Status)
			require.Equal(t, tt.want == types.TransactionStatusEscrow, res.Transaction.EscrowManualRelease)
			jobs := f.jobs(t, tx.ID)
			require.Len(t, jobs, tt.jobs)
			if tt.jobs > 0 {
				require.Equal(t, types.PayoutJobKindProviderPayout, jobs[0].Kind)
			}
		})
	}
}

func TestApproveTransaction(t *testing.T) {
	t.Run("invalid state names the current status", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusCompleted, types.PaymentFlowRegular, captured)
		_, err := f.svc.ApproveTransaction(context.Background(), tx.ID, providerActor)
		require.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
		require.Contains(t, err.Error(), "COMPLETED")
	})

	t.Run("forbidden before any gateway call", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusProviderReview, types.PaymentFlowRegular)
		_, err := f.svc.ApproveTransaction(context.Background(), tx.ID, types.Actor{UserID: "someone-else", Role: types.UserRoleProvider})
		require.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
		require.Equal(t, types.TransactionStatusProviderReview, f.reload(t, tx.ID).Status)
	})

	t.Run("missing payment", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusProviderReview, types.PaymentFlowRegular, func(tx *models.Transaction) { tx.PaymentIntentID = nil })
		_, err := f.svc.ApproveTransaction(context.Background(), tx.ID, providerActor)
		require.Equal(t, apperr.CodeMissingPayment, apperr.CodeOf(err))
	})

	t.Run("capture failure leaves it in review", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusProviderReview, types.PaymentFlowRegular)
		f.gateway.EXPECT().CaptureOrder(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, paypal.ErrCapture)
		_, err := f.svc.ApproveTransaction(context.Background(), tx.ID, providerActor)
		require.Equal(t, apperr.CodeCaptureFailed, apperr.CodeOf(err))
		require.Equal(t, types.TransactionStatusProviderReview, f.reload(t, tx.ID).Status)
	})

	t.Run("escrow with automatic release", func(t *testing.T) {
		f := newFixture(t)
		f.seedProvider(t, withEmail("dj@example.com"))
		tx := f.seedTx(t, types.TransactionStatusProviderReview, types.PaymentFlowRegular)
		f.gateway.EXPECT().CaptureOrder(gomock.Any(), tx.OrderID(), "capture-"+tx.ID).
			Return(&paypal.Capture{ID: "CAP-1", AmountCents: 10500, Currency: "USD"}, nil)

		res, err := f.svc.ApproveTransaction(context.Background(), tx.ID, providerActor)
		require.NoError(t, err)
		require.False(t, res.Degraded)
		require.Equal(t, types.TransactionStatusEscrow, res.Transaction.Status)
		require.WithinDuration(t, fixedNow.Add(24*time.Hour), *res.Transaction.EscrowEndTime, time.Second)
		require.False(t, res.Transaction.EscrowManualRelease)

		jobs := f.jobs(t, tx.ID)
		require.Len(t, jobs, 1)
		require.Equal(t, types.PayoutJobKindEscrowRelease, jobs[0].Kind)
		require.WithinDuration(t, fixedNow.Add(24*time.Hour), jobs[0].RunAt, time.Second)
	})

	t.Run("escrow with manual release", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusProviderReview, types.PaymentFlowRegular)
		f.gateway.EXPECT().CaptureOrder(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&paypal.Capture{ID: "CAP-1", AmountCents: 10500, Currency: "USD"}, nil)

		res, err := f.svc.ApproveTransaction(context.Background(), tx.ID, adminActor)
		require.NoError(t, err)
		require.True(t, res.Transaction.EscrowManualRelease)
		require.Contains(t, res.Message, "admin must release")
		require.Empty(t, f.jobs(t, tx.ID))
	})
}

func TestRejectTransaction_RefundsCapturedPayment(t *testing.T) {
	f := newFixture(t)
	tx := f.seedTx(t, types.TransactionStatusPaidPendingProviderAcceptance, types.PaymentFlowRegular, captured)
	f.gateway.EXPECT().RefundCapture(gomock.Any(), tx.CaptureID(), int64(10500), "USD", "refund-"+tx.ID).
		Return(&paypal.Refund{ID: "REF-1", Status: "COMPLETED", AmountCents: 10500}, nil)

	res, err := f.svc.RejectTransaction(context.Background(), tx.ID, providerActor, "double booked")
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusRefunded, res.Transaction.Status)
	require.Equal(t, "REF-1", *res.Transaction.RefundID)
}

func TestRejectTransaction_RefundFailureDegrades(t *testing.T) {
	f := newFixture(t)
	tx := f.seedTx(t, types.TransactionStatusPaidPendingProviderAcceptance, types.PaymentFlowRegular, captured)
	f.gateway.EXPECT().RefundCapture(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("boom"))

	res, err := f.svc.RejectTransaction(context.Background(), tx.ID, providerActor, "")
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Equal(t, types.TransactionStatusRejected, res.Transaction.Status)
	require.Len(t, f.notifier.alerts, 1)
}

func TestCancelTransaction(t *testing.T) {
	t.Run("client cannot cancel a captured booking", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusEscrow, types.PaymentFlowRegular, captured)
		_, err := f.svc.CancelTransaction(context.Background(), tx.ID, clientActor)
		require.ErrorIs(t, err, transaction.ErrInvalidState)
	})

	t.Run("client cancels before capture", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusPendingPayment, types.PaymentFlowRegular)
		res, err := f.svc.CancelTransaction(context.Background(), tx.ID, clientActor)
		require.NoError(t, err)
		require.Equal(t, types.TransactionStatusCancelled, res.Transaction.Status)
	})

	t.Run("admin cancel refunds and drops jobs", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusEscrow, types.PaymentFlowRegular, captured)
		require.NoError(t, escrow.Enqueue(context.Background(), f.db, tx.ID, types.PayoutJobKindEscrowRelease, fixedNow))
		f.gateway.EXPECT().RefundCapture(gomock.Any(), tx.CaptureID(), int64(10500), "USD", gomock.Any()).
			Return(&paypal.Refund{ID: "REF-1"}, nil)

		res, err := f.svc.CancelTransaction(context.Background(), tx.ID, adminActor)
		require.NoError(t, err)
		require.Equal(t, types.TransactionStatusRefunded, res.Transaction.Status)
		jobs := f.jobs(t, tx.ID)
		require.Len(t, jobs, 1)
		require.Equal(t, types.PayoutJobStatusFailed, jobs[0].Status)
	})
}

func TestReleaseEscrow(t *testing.T) {
	t.Run("regular payout to email", func(t *testing.T) {
		f := newFixture(t)
		f.seedProvider(t, withEmail("dj@example.com"))
		tx := f.seedTx(t, types.TransactionStatusEscrow, types.PaymentFlowRegular, captured)
		f.gateway.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req paypal.PayoutRequest) (*paypal.Payout, error) {
				require.Equal(t, paypal.RecipientTypeEmail, req.RecipientType)
				require.Equal(t, "dj@example.com", req.Receiver)
				require.Equal(t, int64(8800), req.AmountCents)
				require.Equal(t, "payout-"+tx.ID, req.SenderBatchID)
				return &paypal.Payout{BatchID: "BATCH-1"}, nil
			})

		res, err := f.svc.ReleaseEscrow(context.Background(), tx.ID, adminActor)
		require.NoError(t, err)
		require.Equal(t, types.TransactionStatusCompleted, res.Transaction.Status)
		require.Equal(t, "BATCH-1", *res.Transaction.PayoutReference)
	})

	t.Run("payout failure queues a retry", func(t *testing.T) {
		f := newFixture(t)
		f.seedProvider(t, withMerchant("M-1"))
		tx := f.seedTx(t, types.TransactionStatusEscrow, types.PaymentFlowRegular, captured)
		f.gateway.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).Return(nil, paypal.ErrGatewayTimeout)

		res, err := f.svc.ReleaseEscrow(context.Background(), tx.ID, adminActor)
		require.NoError(t, err)
		require.True(t, res.Degraded)
		require.Equal(t, types.TransactionStatusCompleted, f.reload(t, tx.ID).Status)
		jobs := f.jobs(t, tx.ID)
		require.Len(t, jobs, 1)
		require.Equal(t, types.PayoutJobKindProviderPayout, jobs[0].Kind)
	})

	t.Run("only admins", func(t *testing.T) {
		f := newFixture(t)
		tx := f.seedTx(t, types.TransactionStatusEscrow, types.PaymentFlowRegular, captured)
		_, err := f.svc.ReleaseEscrow(context.Background(), tx.ID, providerActor)
		require.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
	})
}

func TestRunJob_MarketplaceReleasesDisbursement(t *testing.T) {
	f := newFixture(t)
	tx := f.seedTx(t, types.TransactionStatusCompleted, types.PaymentFlowMarketplace, captured)
	f.gateway.EXPECT().ReleaseDelayedDisbursement(gomock.Any(), tx.CaptureID(), "release-"+tx.ID).
		Return(&paypal.DisbursementRelease{ItemID: "ITEM-1", Status: "SUCCESS"}, nil)

	require.NoError(t, f.svc.RunJob(context.Background(), &models.PayoutJob{TransactionID: tx.ID, Kind: types.PayoutJobKindProviderPayout}))
	require.Equal(t, "ITEM-1", *f.reload(t, tx.ID).PayoutReference)

	// already paid: nothing else reaches the gateway
	require.NoError(t, f.svc.RunJob(context.Background(), &models.PayoutJob{TransactionID: tx.ID, Kind: types.PayoutJobKindProviderPayout}))
}

func TestRunJob_SkipsCancelledTransaction(t *testing.T) {
	f := newFixture(t)
	tx := f.seedTx(t, types.TransactionStatusCancelled, types.PaymentFlowRegular)
	require.NoError(t, f.svc.RunJob(context.Background(), &models.PayoutJob{TransactionID: tx.ID, Kind: types.PayoutJobKindEscrowRelease}))
}

func TestRefundTransaction(t *testing.T) {
	f := newFixture(t)
	tx := f.seedTx(t, types.TransactionStatusCompleted, types.PaymentFlowRegular, captured)

	_, err := f.svc.RefundTransaction(context.Background(), tx.ID, clientActor)
	require.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	f.gateway.EXPECT().RefundCapture(gomock.Any(), tx.CaptureID(), int64(10500), "USD", "refund-"+tx.ID).
		Return(&paypal.Refund{ID: "REF-1"}, nil)
	res, err := f.svc.RefundTransaction(context.Background(), tx.ID, adminActor)
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusRefunded, res.Transaction.Status)

	_, err = f.svc.RefundTransaction(context.Background(), tx.ID, adminActor)
	require.ErrorIs(t, err, transaction.ErrInvalidState)
}

func TestMarkRefunded(t *testing.T) {
	f := newFixture(t)
	tx := f.seedTx(t, types.TransactionStatusCompleted, types.PaymentFlowRegular, captured)

	got, err := f.svc.MarkRefunded(context.Background(), tx.CaptureID(), "REF-9")
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusRefunded, got.Status)

	got, err = f.svc.MarkRefunded(context.Background(), tx.CaptureID(), "REF-9")
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusRefunded, got.Status)

	review := f.seedTx(t, types.TransactionStatusProviderReview, types.PaymentFlowRegular, captured)
	_, err = f.svc.MarkRefunded(context.Background(), review.CaptureID(), "REF-10")
	require.ErrorIs(t, err, transaction.ErrInvalidState)
}

func TestGetTransaction_PartiesOnly(t *testing.T) {
	f := newFixture(t)
	tx := f.seedTx(t, types.TransactionStatusPendingPayment, types.PaymentFlowRegular)

	view, err := f.svc.GetTransaction(context.Background(), tx.ID, clientActor)
	require.NoError(t, err)
	require.Equal(t, int64(1700), view.Breakdown.PlatformCommissionCents)

	_, err = f.svc.GetTransaction(context.Background(), tx.ID, types.Actor{UserID: "x", Role: types.UserRoleClient})
	require.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
}
