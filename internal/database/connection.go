// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nyasabox/nyasabox-api/internal/config"
	"github.com/nyasabox/nyasabox-api/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("dsn", cfg.Redacted()).Info("Database connection established")
	return DB, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed")
	}
}

// Migrate creates or updates the tables for every model. It is dialect-neutral.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Album{},
		&models.Track{},
		&models.TrackLike{},
		&models.Comment{},
		&models.BlogCategory{},
		&models.BlogPost{},
		&models.DistributionPlatform{},
		&models.DistributionRequest{},
		&models.PaymentTransaction{},
		&models.AuditLog{},
		&models.AdminNotification{},
	)
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	if err := Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_artist_status ON users(is_artist, artist_status)",
		"CREATE INDEX IF NOT EXISTS idx_tracks_uploader_created ON tracks(uploader_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_distribution_requests_artist_status ON distribution_requests(artist_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_distribution_requests_requested_at ON distribution_requests(requested_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_distribution_request_tracks_track ON distribution_request_tracks(track_id)",
		"CREATE INDEX IF NOT EXISTS idx_payment_transactions_request_status ON payment_transactions(distribution_request_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_payment_transactions_pending ON payment_transactions(initiated_at) WHERE status = 'pending'",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",

		// Full-text search indexes
		"CREATE INDEX IF NOT EXISTS idx_tracks_search ON tracks USING GIN(to_tsvector('simple', title || ' ' || artist))",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
		}
	}

	return nil
}

var defaultPlatforms = []models.DistributionPlatform{
	{Name: "Spotify", Description: "Global music streaming"},
	{Name: "Apple Music", Description: "Apple's streaming and download store"},
	{Name: "YouTube Music", Description: "YouTube's music streaming service"},
	{Name: "Audiomack", Description: "Streaming popular across Africa"},
	{Name: "Boomplay", Description: "African music streaming and download"},
	{Name: "Deezer", Description: "Music streaming service"},
	{Name: "TikTok", Description: "Short-form video sound library"},
}

// SeedInitialData creates the bootstrap staff account and the platform catalog.
func SeedInitialData(db *gorm.DB, cfg config.AdminConfig) error {
	logrus.Info("Seeding initial data...")

	var adminCount int64
	db.Model(&models.User{}).Where("user_type = ?", models.UserTypeAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username:  "admin",
			Email:     cfg.Email,
			FirstName: "System",
			LastName:  "Administrator",
			UserType:  models.UserTypeAdmin,
			Status:    models.UserStatusActive,
		}

		if err := admin.SetPassword(cfg.Password); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		logrus.WithField("email", cfg.Email).Info("Default admin user created")
	}

	for _, platform := range defaultPlatforms {
		platform := platform
		platform.IsActive = true
		if err := db.Where(models.DistributionPlatform{Name: platform.Name}).
			FirstOrCreate(&platform).Error; err != nil {
			logrus.WithError(err).WithField("platform", platform.Name).Warn("Failed to seed platform")
		}
	}

	logrus.Info("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
