package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"medsoc-cms/pkg/models"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string
	AppURL      string
	DatabaseURL string

	SessionSecret  string
	JWTSecret      string
	JWTTTL         time.Duration
	AllowedOrigins []string

	// Media settings
	StorageDriver        string
	MediaDir             string
	MediaURL             string
	S3Endpoint           string
	S3AccessKey          string
	S3SecretKey          string
	S3Bucket             string
	S3UseSSL             bool
	S3PublicURL          string
	BlobPurgeConcurrency int

	LogLevel  string
	LogFormat string

	SiteConfigPath string
	Site           models.SiteConfig

	// OauthConf is nil unless GitHub sign-in is configured.
	OauthConf *oauth2.Config
}

// Load reads envFile (or .env) when present and then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		logrus.Debugf("no env file loaded from %s", envFile)
	}

	// Helper to get env with default
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		AppURL:               strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
		DatabaseURL:          getEnv("DATABASE_URL", "sqlite:medsoc.db"),
		SessionSecret:        os.Getenv("SESSION_SECRET"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		JWTTTL:               24 * time.Hour,
		StorageDriver:        getEnv("STORAGE_DRIVER", "local"),
		MediaDir:             getEnv("MEDIA_DIR", "./uploads"),
		MediaURL:             getEnv("MEDIA_URL", "/uploads"),
		S3Endpoint:           os.Getenv("S3_ENDPOINT"),
		S3AccessKey:          os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:          os.Getenv("S3_SECRET_KEY"),
		S3Bucket:             getEnv("S3_BUCKET", "media"),
		S3UseSSL:             true,
		S3PublicURL:          os.Getenv("S3_PUBLIC_URL"),
		BlobPurgeConcurrency: 4,
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
		SiteConfigPath:       os.Getenv("SITE_CONFIG"),
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	if v := os.Getenv("JWT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("JWT_TTL: %w", err)
		}
		cfg.JWTTTL = d
	}
	if v := os.Getenv("S3_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("S3_USE_SSL: %w", err)
		}
		cfg.S3UseSSL = b
	}
	if v := os.Getenv("BLOB_PURGE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BlobPurgeConcurrency = n
		}
	}

	site, err := LoadSite(cfg.SiteConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Site = site

	if clientID := os.Getenv("GITHUB_CLIENT_ID"); clientID != "" {
		cfg.OauthConf = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
			RedirectURL:  getEnv("GITHUB_REDIRECT_URL", cfg.AppURL+"/auth/callback"),
		}
	}

	return cfg, nil
}

// LoadSite reads the optional site settings file. The format follows the
// extension: .yml/.yaml or .toml. An empty path yields defaults.
func LoadSite(path string) (models.SiteConfig, error) {
	site := models.SiteConfig{
		Categories: []models.Category{
			{Name: models.DefaultCategory, LabelMn: "Мэдээ", LabelEn: "News"},
		},
		DefaultIcon:   models.DefaultIconType,
		GradientFrom:  models.DefaultGradientFrom,
		GradientTo:    models.DefaultGradientTo,
		SlugCollision: "reject",
	}
	if path == "" {
		return site, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return site, fmt.Errorf("read site config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(content, &site)
	case ".toml":
		err = toml.Unmarshal(content, &site)
	default:
		return site, fmt.Errorf("site config %s: unsupported format", path)
	}
	if err != nil {
		return site, fmt.Errorf("parse site config: %w", err)
	}

	switch site.SlugCollision {
	case "reject", "suffix":
	default:
		return site, fmt.Errorf("site config: slug_collision must be reject or suffix, got %q", site.SlugCollision)
	}
	return site, nil
}

// SetupLogging configures the global logrus logger.
func SetupLogging(level, format string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logrus.SetLevel(lvl)
	}
	if format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
