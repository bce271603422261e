package fees

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/logctx"
)

const (
	DefaultClientFeePercent   = 5.0
	DefaultProviderFeePercent = 12.0

	KeyClientFeePercent   = "payments.clientFeePercent"
	KeyProviderFeePercent = "payments.providerFeePercent"
	// KeyLegacyPlatformFeePercent predates the client/provider split and still backs the provider fee.
	KeyLegacyPlatformFeePercent = "platformFeePercent"
)

var ErrInvalidFeeSettings = apperr.New(apperr.CodeValidation, "invalid fee settings")

// FeeSettings holds percentages in [0, 100].
type FeeSettings struct {
	ClientFeePercent   float64 `json:"client_fee_percent"`
	ProviderFeePercent float64 `json:"provider_fee_percent"`
}

func Defaults() FeeSettings {
	return FeeSettings{ClientFeePercent: DefaultClientFeePercent, ProviderFeePercent: DefaultProviderFeePercent}
}

type UpdateFeeSettingsRequest struct {
	ClientFeePercent   *float64 `json:"client_fee_percent" binding:"omitempty,percent"`
	ProviderFeePercent *float64 `json:"provider_fee_percent" binding:"omitempty,percent"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewService(db *gorm.DB, logger *zap.SugaredLogger) *Service {
	return &Service{db: db, logger: logger}
}

// GetFeeSettings never fails: missing rows fall back to defaults silently, unreadable
// values and database errors fall back with a warning.
func (s *Service) GetFeeSettings(ctx context.Context) FeeSettings {
	lg := logctx.FromCtx(ctx, s.logger)
	out := Defaults()

	var rows []models.Setting
	err := s.db.WithContext(ctx).
		Where("key IN ?", []string{KeyClientFeePercent, KeyProviderFeePercent, KeyLegacyPlatformFeePercent}).
		Find(&rows).Error
	if err != nil {
		lg.Warnw("fee_settings_read_failed, using defaults", "err", err)
		return out
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Key] = r.Value
	}

	if raw, ok := values[KeyClientFeePercent]; ok {
		out.ClientFeePercent = parseOrDefault(lg, KeyClientFeePercent, raw, DefaultClientFeePercent)
	}
	if raw, ok := values[KeyProviderFeePercent]; ok {
		out.ProviderFeePercent = parseOrDefault(lg, KeyProviderFeePercent, raw, DefaultProviderFeePercent)
	} else if raw, ok := values[KeyLegacyPlatformFeePercent]; ok {
		out.ProviderFeePercent = parseOrDefault(lg, KeyLegacyPlatformFeePercent, raw, DefaultProviderFeePercent)
	}
	return out
}

// UpdateFeeSettings upserts the provided percentages in one transaction. Nothing is written
// when any provided value is invalid or none is provided.
func (s *Service) UpdateFeeSettings(ctx context.Context, req UpdateFeeSettingsRequest) (FeeSettings, error) {
	rows := make([]models.Setting, 0, 2)
	now := time.Now()
	if req.ClientFeePercent != nil {
		if !ValidPercent(*req.ClientFeePercent) {
			return FeeSettings{}, fmt.Errorf("%w: client_fee_percent %v outside [0,100]", ErrInvalidFeeSettings, *req.ClientFeePercent)
		}
		rows = append(rows, models.Setting{Key: KeyClientFeePercent, Value: formatPercent(*req.ClientFeePercent), UpdatedAt: now})
	}
	if req.ProviderFeePercent != nil {
		if !ValidPercent(*req.ProviderFeePercent) {
			return FeeSettings{}, fmt.Errorf("%w: provider_fee_percent %v outside [0,100]", ErrInvalidFeeSettings, *req.ProviderFeePercent)
		}
		rows = append(rows, models.Setting{Key: KeyProviderFeePercent, Value: formatPercent(*req.ProviderFeePercent), UpdatedAt: now})
	}
	if len(rows) == 0 {
		return FeeSettings{}, fmt.Errorf("%w: at least one fee percent is required", ErrInvalidFeeSettings)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&rows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return FeeSettings{}, fmt.Errorf("save fee settings: %w", err)
	}
	logctx.FromCtx(ctx, s.logger).Infow("fee_settings_updated", "client_fee_percent", req.ClientFeePercent, "provider_fee_percent", req.ProviderFeePercent)
	return s.GetFeeSettings(ctx), nil
}

// ValidPercent reports a finite value in [0, 100].
func ValidPercent(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= 100
}

// ParsePercent accepts "12", " 12.5 " and "12%".
func ParsePercent(raw string) (float64, error) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if !ValidPercent(v) {
		return 0, errors.New("percent outside [0,100]")
	}
	return v, nil
}

func parseOrDefault(lg *zap.SugaredLogger, key, raw string, def float64) float64 {
	v, err := ParsePercent(raw)
	if err != nil {
		lg.Warnw("fee_setting_invalid, using default", "key", key, "value", raw, "default", def, "err", err)
		return def
	}
	return v
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var Module = fx.Options(
	fx.Provide(NewService),
)
