package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/vicc-go/disease-normalizer/config"
)

// Connect opens the application database, applies connection pool
// settings, and retries per config before giving up.
func Connect(ctx context.Context, cfg config.Config, logger ectologger.Logger) (DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword,
		cfg.DatabaseName, cfg.DatabaseSSLMode)

	var db *sqlx.DB
	var err error
	for attempt := 0; attempt <= cfg.DatabaseReconnectRetryCount; attempt++ {
		db, err = sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
		if err == nil {
			break
		}
		logger.WithContext(ctx).WithError(err).Warnf("database connection attempt %d failed", attempt+1)
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	return NewDatabaseInstance(db, logger), nil
}

// MigrateUp runs pending schema migrations against the connected database.
func MigrateUp(cfg config.Config, db DB, logger ectologger.Logger) error {
	driver, err := migratepg.WithInstance(db.Unsafe().DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	ms := NewMigrationService(logger, &MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})

	return ms.Migrate(cfg.DatabaseName, driver)
}
