package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crewlink/config"
)

// Database is the gorm handle. It shares its connection pool with the
// database/sql handle used by the chat store.
type Database struct {
	*gorm.DB
}

// OpenSQL opens the shared connection pool.
func OpenSQL(ctx context.Context, cfg *config.Config, log *slog.Logger) (*sql.DB, func(), error) {
	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SetMaxIdleConns sets the maximum number of connections in the idle connection pool.
	sqlDB.SetMaxIdleConns(10)

	// SetMaxOpenConns sets the maximum number of open connections to the database.
	sqlDB.SetMaxOpenConns(100)

	// SetConnMaxLifetime sets the maximum amount of time a connection may be reused.
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Connected to database successfully")

	cleanup := func() {
		if err := sqlDB.Close(); err != nil {
			log.Error("failed to close database", slog.Any("error", err))
		}
	}
	return sqlDB, cleanup, nil
}

func NewDatabase(sqlDB *sql.DB) (*Database, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Database{db}, nil
}

// Migrate creates or updates the tables of the given gorm models.
func (db *Database) Migrate(ctx context.Context, log *slog.Logger, models ...any) error {
	err := db.WithContext(ctx).AutoMigrate(models...)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("Database migration completed", slog.Int("models", len(models)))
	return nil
}
