package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/partypay/internal/app/service/fees"
	"github.com/fatflowers/partypay/internal/app/service/statistics"
	"github.com/fatflowers/partypay/internal/app/service/transaction"
	"github.com/fatflowers/partypay/pkg/response"
	"github.com/fatflowers/partypay/pkg/types"
)

type FeeService interface {
	GetFeeSettings(ctx context.Context) fees.FeeSettings
	UpdateFeeSettings(ctx context.Context, req fees.UpdateFeeSettingsRequest) (fees.FeeSettings, error)
}

type TransactionScanner interface {
	Scan(ctx context.Context, req *transaction.ScanTransactionsRequest) (*transaction.ScanTransactionsResponse, error)
}

type StatisticsService interface {
	GetStatistics(ctx context.Context, req *statistics.Request) (*statistics.Response, error)
}

// AdminDeps groups what the admin routes need.
type AdminDeps struct {
	Payments     PaymentService
	Fees         FeeService
	Transactions TransactionScanner
	Providers    ProviderService
	Statistics   StatisticsService
}

type ListTransactionRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from" binding:"min=0"`
	Size      int                   `json:"size" binding:"min=0,max=200"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order" binding:"omitempty,oneof=asc desc"`
}

// @Summary      Get fee settings (Admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespFeeSettings
// @Router       /api/admin/settings/fees [get]
func ApiGetFeeSettings(svc FeeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.OK(c, svc.GetFeeSettings(c.Request.Context()))
	}
}

// @Summary      Update fee settings (Admin)
// @Description  Updates the client and/or provider fee percentage. Values must lie in [0, 100].
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body fees.UpdateFeeSettingsRequest true "New percentages"
// @Success      200  {object}  handlers.RespFeeSettings
// @Failure      400  {object}  handlers.RespError
// @Router       /api/admin/settings/fees [put]
func ApiUpdateFeeSettings(svc FeeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fees.UpdateFeeSettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, bindError(err))
			return
		}
		res, err := svc.UpdateFeeSettings(c.Request.Context(), req)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      List transactions (Admin)
// @Description  Retrieves a paginated and filterable list of transactions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body handlers.ListTransactionRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListTransactions
// @Failure      400  {object}  handlers.RespError
// @Router       /api/admin/transactions/list [post]
func ApiListTransactions(svc TransactionScanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListTransactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, bindError(err))
			return
		}
		res, err := svc.Scan(c.Request.Context(), &transaction.ScanTransactionsRequest{
			Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder,
		})
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Release escrow (Admin)
// @Description  Completes an escrowed booking and pays the provider. Retries the payout of a completed booking that was never paid out.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Transaction ID"
// @Success      200  {object}  handlers.RespResult
// @Failure      404,409  {object}  handlers.RespError
// @Router       /api/admin/transactions/{id}/release [post]
func ApiReleaseEscrow(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		res, err := svc.ReleaseEscrow(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Refund transaction (Admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Transaction ID"
// @Success      200  {object}  handlers.RespResult
// @Failure      404,409,502  {object}  handlers.RespError
// @Router       /api/admin/transactions/{id}/refund [post]
func ApiRefundTransaction(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		res, err := svc.RefundTransaction(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Refresh a provider's PayPal status (Admin)
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Provider user ID"
// @Success      200  {object}  handlers.RespProviderStatus
// @Failure      404,409  {object}  handlers.RespError
// @Router       /api/admin/providers/{id}/paypal/status [post]
func ApiAdminRefreshProviderStatus(svc ProviderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.RefreshStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Get revenue statistics (Admin)
// @Description  Daily transaction count, GMV, platform commission, cumulative GMV and counts by status.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body statistics.Request true "Statistic request parameters"
// @Success      200  {object}  handlers.RespStatistics
// @Failure      400  {object}  handlers.RespError
// @Router       /api/admin/statistics [post]
func ApiGetStatistics(svc StatisticsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, bindError(err))
			return
		}
		res, err := svc.GetStatistics(c.Request.Context(), &req)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// RegisterAdminRoutes mounts under /api/admin.
func RegisterAdminRoutes(r gin.IRouter, deps AdminDeps) {
	r.GET("/settings/fees", ApiGetFeeSettings(deps.Fees))
	r.PUT("/settings/fees", ApiUpdateFeeSettings(deps.Fees))
	r.POST("/transactions/list", ApiListTransactions(deps.Transactions))
	r.POST("/transactions/:id/release", ApiReleaseEscrow(deps.Payments))
	r.POST("/transactions/:id/refund", ApiRefundTransaction(deps.Payments))
	r.POST("/providers/:id/paypal/status", ApiAdminRefreshProviderStatus(deps.Providers))
	r.POST("/statistics", ApiGetStatistics(deps.Statistics))
}
