package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fatflowers/partypay/internal/models"
	cfgpkg "github.com/fatflowers/partypay/pkg/config"
	gormzap "github.com/fatflowers/partypay/pkg/gormlog"
)

const pingTimeout = 5 * time.Second

// NewDB opens the postgres pool. The connection is checked in the fx start hook so a
// down database fails startup instead of the first request.
func NewDB(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is empty: %w", gorm.ErrInvalidDB)
	}
	gdb, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger:         gormzap.New(l, cfg.Env == cfgpkg.EnvDev),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()
			if err := sqlDB.PingContext(pingCtx); err != nil {
				return fmt.Errorf("ping postgres: %w", err)
			}
			l.Infow("postgres connection established", "max_open_conns", cfg.Database.MaxOpenConns)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			l.Infow("closing postgres connection pool")
			return sqlDB.Close()
		},
	})
	return gdb, nil
}

// AutoMigrate creates or alters every table in models.All.
func AutoMigrate(l *zap.SugaredLogger, gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	l.Infow("automigrate completed", "tables", len(models.All()))
	return nil
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
)
