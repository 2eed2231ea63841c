package database

import (
	"fmt"
	"strings"
	"time"

	"medsoc-cms/pkg/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database named by dsn. postgres:// and postgresql://
// URLs use PostgreSQL; sqlite:<path> or a bare path ending in .db uses SQLite.
func Open(dsn string) (*gorm.DB, error) {
	dialector, isSQLite, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isSQLite {
		// A single connection keeps transactions and in-memory databases coherent.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	logrus.WithField("driver", dialector.Name()).Info("database connection established")
	return db, nil
}

func dialectorFor(dsn string) (gorm.Dialector, bool, error) {
	switch {
	case dsn == "":
		return nil, false, fmt.Errorf("DATABASE_URL is not set")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return postgres.Open(dsn), false, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(withForeignKeys(strings.TrimPrefix(dsn, "sqlite:"))), true, nil
	case strings.HasSuffix(dsn, ".db"), strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(withForeignKeys(dsn)), true, nil
	}
	return nil, false, fmt.Errorf("unsupported DATABASE_URL %q", dsn)
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// Migrate creates or updates the users, articles and images tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Article{}, &models.Image{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logrus.Info("database migrations complete")
	return nil
}
