package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"medsoc-cms/pkg/database"
	"medsoc-cms/pkg/handlers"
	"medsoc-cms/pkg/services"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var skipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not migrate the schema on startup")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET must be set")
	}
	if cfg.JWTSecret == "" {
		logrus.Warn("JWT_SECRET is not set, bearer tokens are disabled")
	}

	if !skipMigrate {
		if err := database.Migrate(a.db); err != nil {
			return err
		}
	}

	blobs, err := a.blobStore(ctx)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	h := &handlers.Handler{
		Articles:  a.articles,
		Images:    a.images,
		Uploader:  services.NewUploader(blobs, a.images, a.articles, services.ImagingProcessor{}, cfg.BlobPurgeConcurrency),
		Auth:      a.auth,
		Site:      cfg.Site,
		OauthConf: cfg.OauthConf,
	}
	opts := handlers.RouterOptions{
		SessionSecret:  []byte(cfg.SessionSecret),
		SecureCookies:  strings.HasPrefix(cfg.AppURL, "https://"),
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if cfg.StorageDriver == "local" {
		opts.MediaDir, opts.MediaPath = cfg.MediaDir, cfg.MediaURL
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(h, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logrus.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
