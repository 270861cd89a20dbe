package database

import (
	"context"
	"fmt"
	"log/slog" // use slog for structured logging
	"time"

	"geochat/internal/config"
	"geochat/internal/microservices/http-api/models"
	"geochat/internal/realtime"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// notifyTriggerSQL announces every inserted message on the message_inserted channel.
// The payload only names the row: NOTIFY rejects payloads of 8000 bytes or more, a failing
// trigger aborts the INSERT, and a message body alone can exceed that. Listeners read the
// row back by id.
var notifyTriggerSQL = fmt.Sprintf(`
CREATE OR REPLACE FUNCTION notify_message_inserted() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('%s', json_build_object('id', NEW.id, 'channel_id', NEW.channel_id)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS messages_notify_insert ON messages;
CREATE TRIGGER messages_notify_insert
	AFTER INSERT ON messages
	FOR EACH ROW EXECUTE FUNCTION notify_message_inserted();
`, realtime.NotifyChannel)

// dropNotifyTriggerSQL removes the trigger left by an earlier postgres-backed run
const dropNotifyTriggerSQL = `
DROP TRIGGER IF EXISTS messages_notify_insert ON messages;
DROP FUNCTION IF EXISTS notify_message_inserted();
`

// notifySQL returns the statement matching the notification backend: only the postgres
// backend listens, so the others get no per-insert NOTIFY at all
func notifySQL(backend string) string {
	if backend == config.NotifyPostgres {
		return notifyTriggerSQL
	}
	return dropNotifyTriggerSQL
}

// ConnectDB opens the postgres pool, verifies it and brings the schema up to date
func ConnectDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() && cfg.LogLevel == "debug" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true, // unique violations surface as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	// Verify the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		// close the db handle if ping fails to avoid resource leak
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := runMigrations(db, cfg.NotifyBackend, logger); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database_connected")
	return db, nil
}

func runMigrations(db *gorm.DB, notifyBackend string, logger *slog.Logger) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Channel{},
		&models.Message{},
	); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	if err := db.Exec(notifySQL(notifyBackend)).Error; err != nil {
		return fmt.Errorf("failed to sync notify trigger: %w", err)
	}

	logger.Info("database_migrations_applied", "notify_trigger", notifyBackend == config.NotifyPostgres)
	return nil
}

// Ping reports whether the database answers within ctx
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
