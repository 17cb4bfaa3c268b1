package migrate

import (
	"context"
	"fmt"

	"github.com/kicksnairobi/footwear-backend/pkg/config"
	"github.com/kicksnairobi/footwear-backend/pkg/db"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

// MaybeRunDev brings a development database up to date on boot when
// KICKS_AUTO_MIGRATE is set. Production never migrates implicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if cfg.DB.Driver == db.DriverSQLite {
		logg.Info(ctx, "migrate.sqlite_schema")
		return ApplySQLiteSchema(ctx, client.DB())
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	logg.Info(ctx, "migrate.auto_up")
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.auto_up.done")
	return nil
}
