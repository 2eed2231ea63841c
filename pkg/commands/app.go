package commands

import (
	"context"
	"fmt"

	"medsoc-cms/pkg/config"
	"medsoc-cms/pkg/database"
	"medsoc-cms/pkg/services"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// app holds the wired services shared by the subcommands.
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	articles *services.ArticleRepository
	images   *services.ImageRepository
	users    *services.UserRepository
	auth     *services.Authenticator
}

func loadApp() (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	config.SetupLogging(level, cfg.LogFormat)

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	users := services.NewUserRepository(db)
	return &app{
		cfg: cfg,
		db:  db,
		articles: services.NewArticleRepository(db, services.ArticlePolicy{
			SlugCollision:              cfg.Site.SlugCollision,
			UnpublishClearsPublishedAt: cfg.Site.UnpublishClearsPublishedAt,
			DefaultIcon:                cfg.Site.DefaultIcon,
			GradientFrom:               cfg.Site.GradientFrom,
			GradientTo:                 cfg.Site.GradientTo,
		}),
		images: services.NewImageRepository(db),
		users:  users,
		auth:   services.NewAuthenticator(users, services.BcryptHasher{}, []byte(cfg.JWTSecret), cfg.JWTTTL),
	}, nil
}

func (a *app) blobStore(ctx context.Context) (services.BlobStore, error) {
	switch a.cfg.StorageDriver {
	case "local":
		return services.NewLocalStore(a.cfg.MediaDir, a.cfg.MediaURL)
	case "s3":
		return services.NewS3Store(ctx, services.S3Options{
			Endpoint:  a.cfg.S3Endpoint,
			AccessKey: a.cfg.S3AccessKey,
			SecretKey: a.cfg.S3SecretKey,
			Bucket:    a.cfg.S3Bucket,
			UseSSL:    a.cfg.S3UseSSL,
			PublicURL: a.cfg.S3PublicURL,
		})
	}
	return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", a.cfg.StorageDriver)
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logrus.WithError(err).Warn("close database")
		}
	}
}
