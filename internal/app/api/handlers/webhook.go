package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/response"
)

const maxWebhookBody = 1 << 20

type WebhookHandler interface {
	Handle(ctx context.Context, headers http.Header, body []byte) error
}

// @Summary      PayPal webhook
// @Description  Receives PayPal webhook events. Events that cannot apply are acknowledged; other failures return an error status so PayPal retries.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload body object true "PayPal webhook event"
// @Success      200  {object}  handlers.RespOK
// @Failure      400,401,500  {object}  handlers.RespError
// @Router       /api/webhooks/paypal [post]
func ApiPaypalWebhook(h WebhookHandler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			response.Fail(c, apperr.Wrap(apperr.CodeValidation, err, "read webhook body"))
			return
		}
		if err := h.Handle(c.Request.Context(), c.Request.Header, body); err != nil {
			logctx.FromGin(c, log).Errorw("webhook_paypal_handle_error", "error", err.Error())
			response.Fail(c, err)
			return
		}
		response.OK[any](c, nil)
	}
}

// RegisterWebhookRoutes mounts under /api/webhooks.
func RegisterWebhookRoutes(r gin.IRouter, h WebhookHandler, log *zap.SugaredLogger) {
	r.POST("/paypal", ApiPaypalWebhook(h, log))
}
