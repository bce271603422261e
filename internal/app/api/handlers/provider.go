package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/partypay/internal/app/service/provider"
	"github.com/fatflowers/partypay/pkg/response"
)

type ProviderService interface {
	StartOnboarding(ctx context.Context, userID, returnURL string) (*provider.OnboardingLink, error)
	CompleteOnboarding(ctx context.Context, userID string, req provider.CallbackRequest) (*provider.StatusView, error)
	RefreshStatus(ctx context.Context, userID string) (*provider.StatusView, error)
	GetStatus(ctx context.Context, userID string) (*provider.StatusView, error)
}

type OnboardRequest struct {
	ReturnURL string `json:"return_url" binding:"omitempty,url"`
}

// @Summary      Start PayPal onboarding
// @Description  Creates a partner referral and returns the PayPal page the provider must complete.
// @Tags         Provider
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body handlers.OnboardRequest false "Optional return URL"
// @Success      200  {object}  handlers.RespOnboardingLink
// @Failure      400,502  {object}  handlers.RespError
// @Router       /api/providers/paypal/onboard [post]
func ApiStartOnboarding(svc ProviderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		var req OnboardRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				response.Fail(c, bindError(err))
				return
			}
		}
		res, err := svc.StartOnboarding(c.Request.Context(), actor.UserID, req.ReturnURL)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      PayPal onboarding return
// @Description  Receives the query parameters PayPal appends when the provider returns from onboarding.
// @Tags         Provider
// @Produce      json
// @Security     BearerAuth
// @Param        merchantId query string true "Tracking ID"
// @Param        merchantIdInPayPal query string false "PayPal merchant ID"
// @Param        permissionsGranted query bool false "Permissions granted"
// @Param        consentStatus query bool false "Consent status"
// @Param        isEmailConfirmed query bool false "Email confirmed"
// @Param        accountStatus query string false "Account status"
// @Success      200  {object}  handlers.RespProviderStatus
// @Failure      400,403,404  {object}  handlers.RespError
// @Router       /api/providers/paypal/callback [get]
func ApiOnboardingCallback(svc ProviderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		var req provider.CallbackRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			response.Fail(c, provider.ErrMissingParams)
			return
		}
		res, err := svc.CompleteOnboarding(c.Request.Context(), actor.UserID, req)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Refresh PayPal seller status
// @Tags         Provider
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespProviderStatus
// @Failure      404,409  {object}  handlers.RespError
// @Router       /api/providers/paypal/status [post]
func ApiRefreshProviderStatus(svc ProviderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		res, err := svc.RefreshStatus(c.Request.Context(), actor.UserID)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Get stored PayPal seller status
// @Tags         Provider
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespProviderStatus
// @Failure      404  {object}  handlers.RespError
// @Router       /api/providers/paypal/status [get]
func ApiGetProviderStatus(svc ProviderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		res, err := svc.GetStatus(c.Request.Context(), actor.UserID)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// RegisterProviderRoutes mounts under /api/providers.
func RegisterProviderRoutes(r gin.IRouter, svc ProviderService) {
	r.POST("/paypal/onboard", ApiStartOnboarding(svc))
	r.GET("/paypal/callback", ApiOnboardingCallback(svc))
	r.POST("/paypal/status", ApiRefreshProviderStatus(svc))
	r.GET("/paypal/status", ApiGetProviderStatus(svc))
}
