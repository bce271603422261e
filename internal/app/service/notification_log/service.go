package notification_log

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/tool"
)

// Service keeps the audit trail of gateway webhook deliveries.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a webhook log row. Nil input is ignored.
func (s *Service) Save(ctx context.Context, entry *models.PaymentNotificationLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	ctx = logctx.Detached(ctx)
	go func() {
		if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save notification log: %v", err)
		}
	}()
}

// Handled reports whether a delivery of eventID was already processed successfully.
func (s *Service) Handled(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	var entry models.PaymentNotificationLog
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND status = ?", eventID, models.PaymentNotificationLogStatusHandled).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up event %s: %w", eventID, err)
	}
	return true, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
