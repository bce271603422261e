package paypal

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/partypay/pkg/config"
	"github.com/fatflowers/partypay/pkg/metrics"
)

func NewFromConfig(cfg *config.Config, logger *zap.SugaredLogger, m *metrics.Payments) Gateway {
	creds := cfg.Paypal.Credentials()
	return New(Options{
		Environment:          cfg.Paypal.Mode,
		ClientID:             creds.ClientID,
		ClientSecret:         creds.ClientSecret,
		BaseURL:              cfg.Paypal.BaseURL,
		PartnerAttributionID: cfg.Paypal.PartnerAttributionID,
		PartnerMerchantID:    cfg.Paypal.PartnerMerchantID,
		WebhookID:            cfg.Paypal.WebhookID,
		BrandName:            "PartyPay",
		Timeout:              cfg.Paypal.Timeout,
	}, logger, m)
}

var Module = fx.Options(
	fx.Provide(NewFromConfig),
)
