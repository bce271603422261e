package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/internal/platform/db/dbtest"
	"github.com/fatflowers/partypay/internal/platform/paypal"
	"github.com/fatflowers/partypay/internal/platform/paypal/mocks"
	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/config"
	"github.com/fatflowers/partypay/pkg/types"
)

func newTestService(t *testing.T) (*Service, *mocks.MockGateway) {
	db := dbtest.New(t)
	gw := mocks.NewMockGateway(gomock.NewController(t))
	cfg := &config.Config{
		App:    config.AppConfig{BaseURL: "https://party.example/"},
		Paypal: config.PaypalConfig{Mode: types.PaypalEnvironmentSandbox},
	}
	s := NewService(db, gw, cfg, zap.NewNop().Sugar())
	s.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, db.Create(&models.User{ID: "provider-1", Email: "dj@example.com", Role: types.UserRoleProvider}).Error)
	return s, gw
}

func onboard(t *testing.T, s *Service, gw *mocks.MockGateway) string {
	gw.EXPECT().CreatePartnerReferral(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, seller paypal.SellerData) (*paypal.PartnerReferral, error) {
			require.Equal(t, "dj@example.com", seller.Email)
			require.Equal(t, "https://party.example/providers/paypal/callback", seller.ReturnURL)
			require.NotEmpty(t, seller.TrackingID)
			return &paypal.PartnerReferral{ActionURL: "https://paypal.example/onboard"}, nil
		})
	link, err := s.StartOnboarding(context.Background(), "provider-1", "")
	require.NoError(t, err)
	require.Equal(t, "https://paypal.example/onboard", link.ActionURL)
	return link.TrackingID
}

func TestOnboarding_CompleteWithoutIssues(t *testing.T) {
	s, gw := newTestService(t)
	tracking := onboard(t, s, gw)

	gw.EXPECT().CheckSellerStatus(gomock.Any(), "MERCHANT-1").
		Return(paypal.SellerStatus{CanReceivePayments: true, PrimaryEmail: "dj@paypal.example"})

	view, err := s.CompleteOnboarding(context.Background(), "provider-1", CallbackRequest{
		TrackingID: tracking, MerchantIDInPaypal: "MERCHANT-1", PermissionsGranted: true, ConsentStatus: true,
	})
	require.NoError(t, err)
	require.True(t, view.MarketplaceEligible)
	require.Equal(t, StatusCompleted, view.Provider.PaypalOnboardingStatus)
	require.Equal(t, "dj@paypal.example", *view.Provider.PaypalEmail)
	require.Empty(t, view.Issues)
}

func TestOnboarding_IssuesKeepProviderIneligible(t *testing.T) {
	s, gw := newTestService(t)
	tracking := onboard(t, s, gw)

	gw.EXPECT().CheckSellerStatus(gomock.Any(), "MERCHANT-1").Return(paypal.SellerStatus{
		Issues: []paypal.StatusIssue{{Code: paypal.IssueEmailNotConfirmed, Message: "primary email is not confirmed"}},
	})
	view, err := s.CompleteOnboarding(context.Background(), "provider-1", CallbackRequest{
		TrackingID: tracking, MerchantIDInPaypal: "MERCHANT-1", PermissionsGranted: true, ConsentStatus: true,
	})
	require.NoError(t, err)
	require.False(t, view.MarketplaceEligible)
	require.Equal(t, StatusActionRequired, view.Provider.PaypalOnboardingStatus)
	require.Len(t, view.Issues, 1)
	require.Equal(t, paypal.IssueEmailNotConfirmed, view.Issues[0].Code)

	// the issue gets fixed on PayPal's side
	gw.EXPECT().CheckSellerStatus(gomock.Any(), "MERCHANT-1").Return(paypal.SellerStatus{CanReceivePayments: true})
	view, err = s.RefreshStatus(context.Background(), "provider-1")
	require.NoError(t, err)
	require.True(t, view.MarketplaceEligible)
}

func TestCompleteOnboarding_Guards(t *testing.T) {
	s, gw := newTestService(t)
	tracking := onboard(t, s, gw)

	_, err := s.CompleteOnboarding(context.Background(), "someone-else", CallbackRequest{TrackingID: tracking, MerchantIDInPaypal: "M", PermissionsGranted: true, ConsentStatus: true})
	require.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	view, err := s.CompleteOnboarding(context.Background(), "provider-1", CallbackRequest{TrackingID: tracking, MerchantIDInPaypal: "M", PermissionsGranted: false, ConsentStatus: true})
	require.NoError(t, err)
	require.Equal(t, StatusPermissionsMissing, view.Provider.PaypalOnboardingStatus)
	require.Empty(t, view.Provider.MerchantID())

	_, err = s.CompleteOnboarding(context.Background(), "provider-1", CallbackRequest{TrackingID: "unknown"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshStatus_RequiresMerchant(t *testing.T) {
	s, gw := newTestService(t)
	onboard(t, s, gw)
	_, err := s.RefreshStatus(context.Background(), "provider-1")
	require.ErrorIs(t, err, ErrNotOnboarded)

	_, err = s.RefreshStatus(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeConsent(t *testing.T) {
	s, gw := newTestService(t)
	tracking := onboard(t, s, gw)
	gw.EXPECT().CheckSellerStatus(gomock.Any(), "MERCHANT-1").Return(paypal.SellerStatus{CanReceivePayments: true})
	_, err := s.CompleteOnboarding(context.Background(), "", CallbackRequest{TrackingID: tracking, MerchantIDInPaypal: "MERCHANT-1", PermissionsGranted: true, ConsentStatus: true})
	require.NoError(t, err)

	require.NoError(t, s.RevokeConsent(context.Background(), "MERCHANT-1"))
	view, err := s.GetStatus(context.Background(), "provider-1")
	require.NoError(t, err)
	require.False(t, view.MarketplaceEligible)
	require.Equal(t, StatusConsentRevoked, view.Provider.PaypalOnboardingStatus)

	require.ErrorIs(t, s.RevokeConsent(context.Background(), "MERCHANT-X"), ErrNotFound)
}
