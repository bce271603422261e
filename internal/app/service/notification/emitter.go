package notification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/tool"
	"github.com/fatflowers/partypay/pkg/types"
)

// Message is a notification before it is addressed to a user.
type Message struct {
	Type          types.NotificationType
	Title         string
	Content       string
	TransactionID string
}

type Emitter struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewEmitter(db *gorm.DB, logger *zap.SugaredLogger) *Emitter {
	return &Emitter{db: db, logger: logger}
}

// Emit stores one unread notification for userID.
func (e *Emitter) Emit(ctx context.Context, userID string, msg Message) error {
	if userID == "" {
		return errors.New("notification: user id is required")
	}
	n := &models.Notification{
		ID:      tool.GenerateUUIDV7(),
		UserID:  userID,
		Type:    msg.Type,
		Title:   msg.Title,
		Content: msg.Content,
	}
	if msg.TransactionID != "" {
		id := msg.TransactionID
		n.TransactionID = &id
	}
	if err := e.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

// EmitAsync is the best-effort variant used after a state change committed; failures are logged.
func (e *Emitter) EmitAsync(ctx context.Context, userID string, msg Message) {
	ctx = logctx.Detached(ctx)
	go func() {
		if err := e.Emit(ctx, userID, msg); err != nil {
			logctx.FromCtx(ctx, e.logger).Errorw("notification_emit_failed", "user_id", userID, "title", msg.Title, "err", err)
		}
	}()
}

// NotifyAdmins sends a SYSTEM notification to every admin user.
func (e *Emitter) NotifyAdmins(ctx context.Context, msg Message) error {
	var adminIDs []string
	if err := e.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", types.UserRoleAdmin).
		Pluck("id", &adminIDs).Error; err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	msg.Type = types.NotificationTypeSystem
	var errs error
	for _, id := range adminIDs {
		errs = multierr.Append(errs, e.Emit(ctx, id, msg))
	}
	if len(adminIDs) == 0 {
		logctx.FromCtx(ctx, e.logger).Warnw("admin_alert_without_admins", "title", msg.Title, "content", msg.Content)
	}
	return errs
}

func (e *Emitter) NotifyAdminsAsync(ctx context.Context, msg Message) {
	ctx = logctx.Detached(ctx)
	go func() {
		if err := e.NotifyAdmins(ctx, msg); err != nil {
			logctx.FromCtx(ctx, e.logger).Errorw("admin_alert_failed", "title", msg.Title, "err", err)
		}
	}()
}

var Module = fx.Options(
	fx.Provide(NewEmitter),
)
