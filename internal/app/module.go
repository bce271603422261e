package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/partypay/internal/app/api/server"
	"github.com/fatflowers/partypay/internal/app/service/escrow"
	"github.com/fatflowers/partypay/internal/app/service/fees"
	"github.com/fatflowers/partypay/internal/app/service/notification"
	notificationlog "github.com/fatflowers/partypay/internal/app/service/notification_log"
	"github.com/fatflowers/partypay/internal/app/service/payment"
	"github.com/fatflowers/partypay/internal/app/service/provider"
	"github.com/fatflowers/partypay/internal/app/service/statistics"
	"github.com/fatflowers/partypay/internal/app/service/transaction"
	"github.com/fatflowers/partypay/internal/app/service/webhook"
	"github.com/fatflowers/partypay/internal/platform/db"
	"github.com/fatflowers/partypay/internal/platform/paypal"
	"github.com/fatflowers/partypay/internal/platform/redis"
	"github.com/fatflowers/partypay/pkg/config"
	"github.com/fatflowers/partypay/pkg/logger"
	"github.com/fatflowers/partypay/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

func adminAlerter(e *notification.Emitter) escrow.Alerter { return e }

var Module = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	redis.Module,
	paypal.Module,
	server.Module,
	fees.Module,
	notification.Module,
	notificationlog.Module,
	transaction.Module,
	payment.Module,
	provider.Module,
	escrow.Module,
	webhook.Module,
	statistics.Module,
	fx.Provide(adminAlerter),
)
