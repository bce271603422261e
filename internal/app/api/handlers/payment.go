package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	mw "github.com/fatflowers/partypay/internal/app/api/middleware"
	"github.com/fatflowers/partypay/internal/app/service/payment"
	"github.com/fatflowers/partypay/pkg/response"
	"github.com/fatflowers/partypay/pkg/types"
)

// PaymentService is the orchestrator surface used by the payment and transaction routes.
type PaymentService interface {
	CheckoutOffer(ctx context.Context, req payment.CheckoutRequest, actor types.Actor) (*payment.OrderResult, error)
	AuthorizePayment(ctx context.Context, orderID string, actor types.Actor) (*payment.Result, error)
	CapturePayment(ctx context.Context, orderID string, actor types.Actor) (*payment.CaptureResult, error)
	GetTransaction(ctx context.Context, id string, actor types.Actor) (*payment.TransactionView, error)
	ApproveTransaction(ctx context.Context, id string, actor types.Actor) (*payment.CaptureResult, error)
	HandleProviderAcceptance(ctx context.Context, id string, actor types.Actor) (*payment.Result, error)
	RejectTransaction(ctx context.Context, id string, actor types.Actor, reason string) (*payment.Result, error)
	CancelTransaction(ctx context.Context, id string, actor types.Actor) (*payment.Result, error)
	ReleaseEscrow(ctx context.Context, id string, actor types.Actor) (*payment.Result, error)
	RefundTransaction(ctx context.Context, id string, actor types.Actor) (*payment.Result, error)
}

type OrderIDRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// @Summary      Create payment order
// @Description  Creates the transaction and PayPal order for an accepted offer. A repeated Idempotency-Key, or an offer already awaiting payment, returns the stored order.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key header string false "Idempotency key"
// @Param        request body payment.CheckoutRequest true "Offer to pay"
// @Success      200  {object}  handlers.RespOrder
// @Failure      400,403,404,409,502  {object}  handlers.RespError
// @Router       /api/payments/create [post]
func ApiCreatePayment(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		var req payment.CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, bindError(err))
			return
		}
		req.IdempotencyKey = c.GetHeader(mw.HeaderIdempotencyKey)
		res, err := svc.CheckoutOffer(c.Request.Context(), req, actor)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Authorize payment
// @Description  Confirms the buyer approved the PayPal order and moves the booking to provider review.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body handlers.OrderIDRequest true "PayPal order"
// @Success      200  {object}  handlers.RespResult
// @Failure      400,403,404,409  {object}  handlers.RespError
// @Router       /api/payments/authorize [post]
func ApiAuthorizePayment(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		var req OrderIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, bindError(err))
			return
		}
		res, err := svc.AuthorizePayment(c.Request.Context(), req.OrderID, actor)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Capture payment
// @Description  Captures the approved PayPal order; the booking then waits for the provider.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key header string false "Idempotency key"
// @Param        request body handlers.OrderIDRequest true "PayPal order"
// @Success      200  {object}  handlers.RespCapture
// @Failure      400,402,403,404,409,502,504  {object}  handlers.RespError
// @Router       /api/payments/capture [post]
func ApiCapturePayment(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		var req OrderIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, bindError(err))
			return
		}
		res, err := svc.CapturePayment(c.Request.Context(), req.OrderID, actor)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Get transaction
// @Tags         Transaction
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Transaction ID"
// @Success      200  {object}  handlers.RespTransaction
// @Failure      403,404  {object}  handlers.RespError
// @Router       /api/transactions/{id} [get]
func ApiGetTransaction(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		res, err := svc.GetTransaction(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Approve booking
// @Description  The provider approves a booking in review: the payment is captured and held in escrow.
// @Tags         Transaction
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Transaction ID"
// @Success      200  {object}  handlers.RespCapture
// @Failure      400,402,403,404,409,502,504  {object}  handlers.RespError
// @Router       /api/transactions/{id}/approve [post]
func ApiApproveTransaction(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		res, err := svc.ApproveTransaction(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Accept paid booking
// @Description  The provider accepts a captured booking; payout is scheduled or the funds stay in escrow.
// @Tags         Transaction
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Transaction ID"
// @Success      200  {object}  handlers.RespResult
// @Failure      403,404,409  {object}  handlers.RespError
// @Router       /api/transactions/{id}/accept [post]
func ApiAcceptTransaction(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		res, err := svc.HandleProviderAcceptance(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Reject booking
// @Description  The provider rejects the booking; a captured payment is refunded.
// @Tags         Transaction
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Transaction ID"
// @Param        request body handlers.RejectRequest false "Reason"
// @Success      200  {object}  handlers.RespResult
// @Failure      403,404,409  {object}  handlers.RespError
// @Router       /api/transactions/{id}/reject [post]
func ApiRejectTransaction(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		var req RejectRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				response.Fail(c, bindError(err))
				return
			}
		}
		res, err := svc.RejectTransaction(c.Request.Context(), c.Param("id"), actor, req.Reason)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      Cancel booking
// @Tags         Transaction
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Transaction ID"
// @Success      200  {object}  handlers.RespResult
// @Failure      403,404,409  {object}  handlers.RespError
// @Router       /api/transactions/{id}/cancel [post]
func ApiCancelTransaction(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := caller(c)
		if !ok {
			return
		}
		res, err := svc.CancelTransaction(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, res)
	}
}

// RegisterPaymentRoutes mounts under /api/payments.
func RegisterPaymentRoutes(r gin.IRouter, svc PaymentService) {
	r.POST("/create", ApiCreatePayment(svc))
	r.POST("/authorize", ApiAuthorizePayment(svc))
	r.POST("/capture", ApiCapturePayment(svc))
}

// RegisterTransactionRoutes mounts under /api/transactions.
func RegisterTransactionRoutes(r gin.IRouter, svc PaymentService) {
	r.GET("/:id", ApiGetTransaction(svc))
	r.POST("/:id/approve", ApiApproveTransaction(svc))
	r.POST("/:id/accept", ApiAcceptTransaction(svc))
	r.POST("/:id/reject", ApiRejectTransaction(svc))
	r.POST("/:id/cancel", ApiCancelTransaction(svc))
}
