package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/models"
)

// ErrRedisDisabled is returned by ConnectRedis when no URL is configured.
var ErrRedisDisabled = errors.New("redis url not configured")

// Connect establishes a connection to the database and migrates the schema.
// Postgres URLs and key/value DSNs use the Postgres driver; anything else is
// a SQLite path.
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
		SlowThreshold:             cfg.SlowThreshold,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(dialector(cfg.URL), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the ledger tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Member{},
		&models.Payment{},
		&models.PaymentTransaction{},
		&models.Setting{},
	)
}

// IsPostgres reports whether db runs on the Postgres driver.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// isPostgresDSN accepts URL DSNs and libpq key/value DSNs
// ("host=... user=... dbname=...").
func isPostgresDSN(url string) bool {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return true
	}
	for _, field := range strings.Fields(url) {
		key, _, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "host", "hostaddr", "user", "dbname", "port", "sslmode":
			return true
		}
	}
	return false
}

func dialector(url string) gorm.Dialector {
	if isPostgresDSN(url) {
		return postgres.Open(url)
	}
	// Writers wait on the file lock instead of failing with SQLITE_BUSY.
	if !strings.Contains(url, "?") {
		url += "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=1"
	}
	return sqlite.Open(url)
}

// ConnectRedis establishes a connection to Redis
func ConnectRedis(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, ErrRedisDisabled
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Test the connection
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
