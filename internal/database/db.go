package database

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/justsurfingit/resume-builder/internal/database/migrations"
	"github.com/justsurfingit/resume-builder/internal/models"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

//go:embed migrations/*.go
var embedMigrations embed.FS

// Connect opens the database named by driver ("postgres" or "sqlite"),
// creates the schema from the models and applies pending data migrations.
func Connect(driver, dsn string, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	var dialect goose.Dialect
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
		dialect = goose.DialectPostgres
	case "sqlite":
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dialector = sqlite.Open(dsn + sep + "_foreign_keys=on&_busy_timeout=5000")
		dialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to db: %w", err)
	}
	log.Info("database connection established", zap.String("driver", driver))

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db: %w", err)
	}
	if driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	log.Info("running migrations")
	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	migrations.Driver = driver
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(dialect)); err != nil {
		return nil, fmt.Errorf("setting dialect for migrations: %w", err)
	}
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return nil, fmt.Errorf("applying migration: %w", err)
	}
	return db, nil
}

// Ping checks that the database answers before ctx is done.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
