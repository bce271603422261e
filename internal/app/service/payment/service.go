package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/partypay/internal/app/service/escrow"
	"github.com/fatflowers/partypay/internal/app/service/fees"
	"github.com/fatflowers/partypay/internal/app/service/notification"
	"github.com/fatflowers/partypay/internal/app/service/transaction"
	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/internal/platform/paypal"
	"github.com/fatflowers/partypay/pkg/config"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/types"
)

const defaultEscrowHold = 24 * time.Hour

type feeSource interface {
	GetFeeSettings(ctx context.Context) fees.FeeSettings
}

type notifier interface {
	EmitAsync(ctx context.Context, userID string, msg notification.Message)
	NotifyAdminsAsync(ctx context.Context, msg notification.Message)
}

// Service orchestrates the payment lifecycle of a booking: gateway orders, capture,
// escrow, payouts and refunds. Every status change goes through transaction.Store.
type Service struct {
	db       *gorm.DB
	store    *transaction.Store
	gateway  paypal.Gateway
	fees     feeSource
	notifier notifier
	log      *zap.SugaredLogger

	currency   string
	baseURL    string
	escrowHold time.Duration
	now        func() time.Time
}

func NewService(
	db *gorm.DB,
	store *transaction.Store,
	gateway paypal.Gateway,
	feeService *fees.Service,
	emitter *notification.Emitter,
	cfg *config.Config,
	log *zap.SugaredLogger,
) *Service {
	s := &Service{
		db:         db,
		store:      store,
		gateway:    gateway,
		fees:       feeService,
		notifier:   emitter,
		log:        log,
		currency:   "USD",
		escrowHold: defaultEscrowHold,
		now:        time.Now,
	}
	if cfg != nil {
		if cfg.Paypal.Currency != "" {
			s.currency = cfg.Paypal.Currency
		}
		if cfg.Escrow.HoldDuration > 0 {
			s.escrowHold = cfg.Escrow.HoldDuration
		}
		s.baseURL = strings.TrimRight(cfg.App.BaseURL, "/")
	}
	return s
}

// Result is the outcome of a status-changing operation. Degraded means the money moved
// but some follow-up bookkeeping failed; Warnings say what, and admins were alerted.
type Result struct {
	Transaction *models.Transaction `json:"transaction"`
	Message     string              `json:"message,omitempty"`
	Degraded    bool                `json:"degraded"`
	Warnings    []string            `json:"warnings,omitempty"`
}

type CaptureResult struct {
	Result
	Capture   *paypal.Capture `json:"capture,omitempty"`
	Breakdown Breakdown       `json:"breakdown"`
}

// TransactionView is a transaction with its money split.
type TransactionView struct {
	Transaction *models.Transaction `json:"transaction"`
	Breakdown   Breakdown           `json:"breakdown"`
}

// GetTransaction returns the transaction to one of its parties or an admin.
func (s *Service) GetTransaction(ctx context.Context, id string, actor types.Actor) (*TransactionView, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !t.IsParty(actor.UserID) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, id)
	}
	return &TransactionView{Transaction: t, Breakdown: BreakdownOf(t)}, nil
}

func (s *Service) providerByUser(ctx context.Context, userID string) (*models.Provider, error) {
	var p models.Provider
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load provider: %w", err)
	}
	return &p, nil
}

func requireStatus(t *models.Transaction, allowed ...types.TransactionStatus) error {
	if lo.Contains(allowed, t.Status) {
		return nil
	}
	want := lo.Map(allowed, func(st types.TransactionStatus, _ int) string { return string(st) })
	return fmt.Errorf("%w: transaction %s is %s, expected %s", transaction.ErrInvalidState, t.ID, t.Status, strings.Join(want, " or "))
}

func isClientOrAdmin(t *models.Transaction, actor types.Actor) bool {
	return actor.IsAdmin() || (actor.UserID != "" && actor.UserID == t.ClientID)
}

func isProviderOrAdmin(t *models.Transaction, actor types.Actor) bool {
	return actor.IsAdmin() || (actor.UserID != "" && actor.UserID == t.ProviderID)
}

// degrade marks res as degraded after the money already moved, and alerts admins.
func (s *Service) degrade(ctx context.Context, res *Result, txID, warning string, cause error) {
	res.Degraded = true
	res.Warnings = append(res.Warnings, warning)
	logctx.FromCtx(ctx, s.log).Errorw("payment_bookkeeping_failed", "transaction_id", txID, "warning", warning, "err", cause)
	s.notifier.NotifyAdminsAsync(ctx, notification.AdminAlert(txID, "Payment needs attention",
		fmt.Sprintf("Transaction %s: %s: %v", txID, warning, cause)))
}

func (s *Service) returnURL(txID string) string {
	return fmt.Sprintf("%s/payments/return?transaction_id=%s", s.baseURL, txID)
}

func (s *Service) cancelURL(txID string) string {
	return fmt.Sprintf("%s/payments/cancel?transaction_id=%s", s.baseURL, txID)
}

func dispatcher(s *Service) escrow.Dispatcher { return s }

var Module = fx.Options(
	fx.Provide(NewService, dispatcher),
)
