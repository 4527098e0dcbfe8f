package migrate

import (
	"context"
	"fmt"

	"github.com/pedroasavelar91/nexus-familiar/pkg/config"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db"
	"github.com/pedroasavelar91/nexus-familiar/pkg/db/models"
	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. SQLite databases are created from the gorm models since
// the SQL migrations target postgres types.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir, "driver": client.Driver()}
	ctx = logg.WithFields(ctx, meta)

	if client.Driver() == config.DriverSQLite {
		logg.Info(ctx, "auto-migrating sqlite schema from models (dev auto-run)")
		if err := AutoMigrateModels(ctx, client); err != nil {
			return err
		}
		logg.Info(ctx, "sqlite schema ready")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// AutoMigrateModels creates every table served by the API from its gorm model.
func AutoMigrateModels(ctx context.Context, client *db.Client) error {
	conn := client.DB().WithContext(ctx)
	for _, name := range ModelOrder {
		model, ok := models.All()[name]
		if !ok {
			return fmt.Errorf("unknown model %q", name)
		}
		if err := conn.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto-migrate %s: %w", name, err)
		}
	}
	return nil
}

// ModelOrder lists tables parents first.
var ModelOrder = []string{
	models.TableFamilies,
	models.TableMembers,
	models.TableJoinRequests,
	models.TableTasks,
	models.TableBills,
	models.TableTransactions,
	models.TablePantryItems,
	models.TableShoppingItems,
}
