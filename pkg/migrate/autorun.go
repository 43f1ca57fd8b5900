package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot, only in dev and only
// with MARKETPLACE_AUTO_MIGRATE set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	applied, err := up(ctx, sqlDB, Embedded())
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "dev migrations applied")
	return nil
}
