package migrate

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/db"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/logger"
)

// MaybeRunDev brings the schema up to date on boot when running in dev with
// BANKMS_AUTO_MIGRATE set. sqlite is synced from the models because the SQL
// files use Postgres types.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.App.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})
	start := time.Now()

	if cfg.DB.IsSQLite() {
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sqlite schema sync: %w", err)
		}
		logg.Info(logg.WithField(ctx, "duration_ms", time.Since(start).Milliseconds()), "sqlite schema synced")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	p, err := newProvider(goose.DialectPostgres, sqlDB, Source(""))
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	for _, r := range results {
		if r.Source == nil {
			continue
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"migration":   path.Base(r.Source.Path),
			"duration_ms": r.Duration.Milliseconds(),
		}), "migration applied")
	}
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"applied":     len(results),
		"duration_ms": time.Since(start).Milliseconds(),
	}), "schema up to date")
	return nil
}
