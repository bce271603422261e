package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/internal/platform/paypal"
	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/config"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/tool"
	"github.com/fatflowers/partypay/pkg/types"
)

const (
	StatusPending            = "PENDING"
	StatusCompleted          = "COMPLETED"
	StatusActionRequired     = "ACTION_REQUIRED"
	StatusPermissionsMissing = "PERMISSIONS_NOT_GRANTED"
	StatusConsentRevoked     = "CONSENT_REVOKED"
)

var (
	ErrNotFound      = apperr.New(apperr.CodeNotFound, "provider not found")
	ErrNotOnboarded  = apperr.New(apperr.CodeInvalidState, "provider has not linked a PayPal account")
	ErrForbidden     = apperr.New(apperr.CodeForbidden, "tracking id belongs to another provider")
	ErrReferral      = apperr.New(apperr.CodeGateway, "could not start PayPal onboarding")
	ErrMissingParams = apperr.New(apperr.CodeValidation, "onboarding callback is missing parameters")
)

// Service links provider users to PayPal seller accounts and tracks whether they can be
// paid through marketplace orders.
type Service struct {
	db      *gorm.DB
	gateway paypal.Gateway
	log     *zap.SugaredLogger
	env     types.PaypalEnvironment
	baseURL string
	now     func() time.Time
}

func NewService(db *gorm.DB, gateway paypal.Gateway, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{
		db:      db,
		gateway: gateway,
		log:     log,
		env:     cfg.Paypal.Mode,
		baseURL: strings.TrimRight(cfg.App.BaseURL, "/"),
		now:     time.Now,
	}
}

type OnboardingLink struct {
	ActionURL  string `json:"action_url"`
	TrackingID string `json:"tracking_id"`
}

// CallbackRequest carries the query parameters PayPal appends to the onboarding return URL.
type CallbackRequest struct {
	TrackingID         string `form:"merchantId" binding:"required"`
	MerchantIDInPaypal string `form:"merchantIdInPayPal"`
	PermissionsGranted bool   `form:"permissionsGranted"`
	ConsentStatus      bool   `form:"consentStatus"`
	IsEmailConfirmed   bool   `form:"isEmailConfirmed"`
	AccountStatus      string `form:"accountStatus"`
}

// StatusView is what providers and admins see about a seller account.
type StatusView struct {
	Provider            *models.Provider           `json:"provider"`
	Issues              []models.PaypalStatusIssue `json:"issues"`
	MarketplaceEligible bool                       `json:"marketplace_eligible"`
}

func viewOf(p *models.Provider) *StatusView {
	return &StatusView{Provider: p, Issues: p.PaypalStatusIssues.Data(), MarketplaceEligible: p.MarketplaceEligible()}
}

// StartOnboarding creates a partner referral for the provider user and returns the PayPal
// page they must complete.
func (s *Service) StartOnboarding(ctx context.Context, userID, returnURL string) (*OnboardingLink, error) {
	p, err := s.ensureProvider(ctx, userID)
	if err != nil {
		return nil, err
	}
	var email string
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err == nil {
		email = user.Email
	}
	if returnURL == "" {
		returnURL = s.baseURL + "/providers/paypal/callback"
	}

	trackingID := p.ID
	ref, err := s.gateway.CreatePartnerReferral(ctx, paypal.SellerData{TrackingID: trackingID, Email: email, ReturnURL: returnURL})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReferral, err)
	}
	if ref.ActionURL == "" {
		return nil, fmt.Errorf("%w: referral has no action url", ErrReferral)
	}
	if err := s.db.WithContext(ctx).Model(&models.Provider{}).Where("id = ?", p.ID).Updates(map[string]any{
		"paypal_tracking_id":       trackingID,
		"paypal_onboarding_status": StatusPending,
		"paypal_environment":       s.env,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to save tracking id: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("provider_onboarding_started", "provider_id", p.ID, "user_id", userID)
	return &OnboardingLink{ActionURL: ref.ActionURL, TrackingID: trackingID}, nil
}

// CompleteOnboarding stores the merchant id PayPal returned and refreshes the seller status.
// userID is empty when the call comes from a webhook rather than the provider's browser.
func (s *Service) CompleteOnboarding(ctx context.Context, userID string, req CallbackRequest) (*StatusView, error) {
	if req.TrackingID == "" {
		return nil, ErrMissingParams
	}
	var p models.Provider
	if err := s.db.WithContext(ctx).Where("paypal_tracking_id = ?", req.TrackingID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tracking id %s", ErrNotFound, req.TrackingID)
		}
		return nil, fmt.Errorf("failed to load provider: %w", err)
	}
	if userID != "" && p.UserID != userID {
		return nil, ErrForbidden
	}

	if !req.PermissionsGranted || !req.ConsentStatus || req.MerchantIDInPaypal == "" {
		if err := s.db.WithContext(ctx).Model(&p).Updates(map[string]any{
			"paypal_onboarding_status":    StatusPermissionsMissing,
			"paypal_onboarding_complete":  false,
			"paypal_can_receive_payments": false,
		}).Error; err != nil {
			return nil, fmt.Errorf("failed to update provider: %w", err)
		}
		logctx.FromCtx(ctx, s.log).Warnw("provider_onboarding_incomplete", "provider_id", p.ID,
			"permissions_granted", req.PermissionsGranted, "consent", req.ConsentStatus)
		return s.view(ctx, p.ID)
	}

	if err := s.db.WithContext(ctx).Model(&p).Updates(map[string]any{
		"paypal_merchant_id": req.MerchantIDInPaypal,
		"paypal_account_id":  req.MerchantIDInPaypal,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to save merchant id: %w", err)
	}
	return s.RefreshStatus(ctx, p.UserID)
}

// RefreshStatus re-reads the seller account of the provider user from PayPal.
func (s *Service) RefreshStatus(ctx context.Context, userID string) (*StatusView, error) {
	p, err := s.byUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.MerchantID() == "" {
		return nil, fmt.Errorf("%w: user %s", ErrNotOnboarded, userID)
	}
	return s.refresh(ctx, p)
}

// RefreshByMerchantID is RefreshStatus keyed by the PayPal merchant id, as webhooks report it.
func (s *Service) RefreshByMerchantID(ctx context.Context, merchantID string) (*StatusView, error) {
	var p models.Provider
	if err := s.db.WithContext(ctx).Where("paypal_merchant_id = ?", merchantID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: merchant %s", ErrNotFound, merchantID)
		}
		return nil, fmt.Errorf("failed to load provider: %w", err)
	}
	return s.refresh(ctx, &p)
}

// RevokeConsent marks the seller as no longer payable after it revoked partner permissions.
func (s *Service) RevokeConsent(ctx context.Context, merchantID string) error {
	res := s.db.WithContext(ctx).Model(&models.Provider{}).Where("paypal_merchant_id = ?", merchantID).Updates(map[string]any{
		"paypal_onboarding_status":    StatusConsentRevoked,
		"paypal_onboarding_complete":  false,
		"paypal_can_receive_payments": false,
		"paypal_status_checked_at":    s.now(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to revoke provider consent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: merchant %s", ErrNotFound, merchantID)
	}
	logctx.FromCtx(ctx, s.log).Warnw("provider_consent_revoked", "merchant_id", merchantID)
	return nil
}

func (s *Service) refresh(ctx context.Context, p *models.Provider) (*StatusView, error) {
	st := s.gateway.CheckSellerStatus(ctx, p.MerchantID())
	issues := lo.Map(st.Issues, func(i paypal.StatusIssue, _ int) models.PaypalStatusIssue {
		return models.PaypalStatusIssue{Code: i.Code, Message: i.Message}
	})
	status := StatusCompleted
	if len(issues) > 0 {
		status = StatusActionRequired
	}
	updates := map[string]any{
		"paypal_can_receive_payments": st.CanReceivePayments,
		"paypal_onboarding_complete":  len(issues) == 0,
		"paypal_onboarding_status":    status,
		"paypal_status_issues":        datatypes.NewJSONType(issues),
		"paypal_status_checked_at":    s.now(),
		"paypal_environment":          s.env,
	}
	if st.PrimaryEmail != "" && (p.PaypalEmail == nil || *p.PaypalEmail == "") {
		updates["paypal_email"] = st.PrimaryEmail
	}
	if err := s.db.WithContext(ctx).Model(&models.Provider{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to save seller status: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("provider_status_refreshed", "provider_id", p.ID, "status", status,
		"issues", lo.Map(issues, func(i models.PaypalStatusIssue, _ int) string { return i.Code }))
	return s.view(ctx, p.ID)
}

// GetStatus returns the stored seller status without calling PayPal.
func (s *Service) GetStatus(ctx context.Context, userID string) (*StatusView, error) {
	p, err := s.byUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return viewOf(p), nil
}

func (s *Service) view(ctx context.Context, id string) (*StatusView, error) {
	var p models.Provider
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to load provider: %w", err)
	}
	return viewOf(&p), nil
}

func (s *Service) byUser(ctx context.Context, userID string) (*models.Provider, error) {
	var p models.Provider
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to load provider: %w", err)
	}
	return &p, nil
}

func (s *Service) ensureProvider(ctx context.Context, userID string) (*models.Provider, error) {
	p, err := s.byUser(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	p = &models.Provider{
		ID:                 tool.GenerateUUIDV7(),
		UserID:             userID,
		PaypalEnvironment:  s.env,
		PaypalStatusIssues: datatypes.NewJSONType([]models.PaypalStatusIssue{}),
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.byUser(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return p, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
