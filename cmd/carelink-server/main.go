package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carelink/api/internal/config"
	"github.com/carelink/api/internal/domain/account"
	"github.com/carelink/api/internal/domain/chat"
	"github.com/carelink/api/internal/domain/connect"
	"github.com/carelink/api/internal/domain/family"
	"github.com/carelink/api/internal/domain/files"
	"github.com/carelink/api/internal/domain/location"
	"github.com/carelink/api/internal/domain/notification"
	"github.com/carelink/api/internal/platform/auth"
	"github.com/carelink/api/internal/platform/blobstore"
	"github.com/carelink/api/internal/platform/db"
	"github.com/carelink/api/internal/platform/geo"
	"github.com/carelink/api/internal/platform/mailer"
	"github.com/carelink/api/internal/platform/middleware"
	"github.com/carelink/api/internal/platform/realtime"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carelink-server",
		Short: "CareLink patient and family portal API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo accounts used by demo login",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			repo := account.NewRepoPG(pool)
			demos := []*account.Account{
				{Email: "demo-patient@carelink.dev", Name: "Demo Patient", Role: auth.RolePatient},
				{Email: "demo-doctor@carelink.dev", Name: "Demo Doctor", Role: auth.RoleDoctor},
				{Email: "demo-admin@carelink.dev", Name: "Demo Admin", Role: auth.RoleAdmin},
			}
			for _, a := range demos {
				a.PasswordHash = hash
				err := repo.Create(ctx, a)
				if errors.Is(err, account.ErrEmailTaken) {
					fmt.Printf("%s already exists, skipping\n", a.Email)
					continue
				}
				if err != nil {
					return err
				}
				fmt.Printf("created %s (%s)\n", a.Email, a.Role)
			}
			return nil
		},
	}
	cmd.Flags().String("password", "demo-password", "Password for the seeded accounts")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	txRunner := db.NewTxRunner(pool)

	jwtCfg := auth.JWTConfig{
		Issuer:     "carelink",
		SigningKey: []byte(cfg.JWTSecret),
		TTL:        time.Duration(cfg.JWTTTLHours) * time.Hour,
	}

	// Object storage: MinIO when configured, otherwise in-memory (dev only,
	// Validate refuses the memory store in production).
	var blobs blobstore.Store
	if cfg.MinioEndpoint != "" {
		minioStore, err := blobstore.NewMinioStore(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to object storage")
		}
		blobs = minioStore
		logger.Info().Str("endpoint", cfg.MinioEndpoint).Msg("connected to object storage")
	} else {
		blobs = blobstore.NewMemoryStore()
		logger.Warn().Msg("using in-memory blob store; uploaded files will not survive a restart")
	}

	// Outbound mail: SMTP relay when configured, log-only otherwise.
	var sender mailer.EmailSender
	if cfg.SMTPHost != "" {
		sender = &mailer.SMTPSender{Host: cfg.SMTPHost, From: cfg.SMTPFrom}
	} else {
		sender = &mailer.LogSender{Logger: logger}
	}
	mail := mailer.New(sender, mailer.NewTemplateEngine())

	geoClient := geo.NewClient(cfg.GeoAPIBaseURL, cfg.GeoAPIKey)

	hub := realtime.NewHub()

	// Repositories
	accountRepo := account.NewRepoPG(pool)
	familyRepo := family.NewRepoPG(pool)
	chatRepo := chat.NewRepoPG(pool)
	notificationRepo := notification.NewRepoPG(pool)
	filesRepo := files.NewRepoPG(pool)
	locationRepo := location.NewRepoPG(pool)
	connectRepo := connect.NewRepoPG(pool)

	// Services
	notificationSvc := notification.NewService(notificationRepo, hub)
	accountSvc := account.NewService(accountRepo, jwtCfg, mail, hub, cfg.AppURL, cfg.DemoLoginEnabled)
	familySvc := family.NewService(familyRepo, accountRepo, txRunner, notificationSvc, mail, hub)
	chatSvc := chat.NewService(chatRepo, familySvc, txRunner, notificationSvc, hub)
	filesSvc := files.NewService(filesRepo, blobs, logger)
	locationSvc := location.NewService(locationRepo, familySvc, geoClient, notificationSvc, mail, hub, logger)
	connectSvc := connect.NewService(connectRepo, accountRepo, notificationSvc, mail)

	// Expire stale emergency shares in the background.
	sweeper := location.NewSweeper(locationSvc, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start expiry sweeper")
	}
	defer sweeper.Stop()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}

	// Public routes: registration, login, password reset, WebSocket upgrade.
	// The WebSocket handler authenticates via a token query parameter.
	public := e.Group("/api/v1")
	public.Use(middleware.RateLimit(rateLimitCfg))
	account.NewHandler(accountSvc).RegisterPublicRoutes(public)
	realtime.NewHandler(hub, jwtCfg).RegisterRoutes(public)

	// Authenticated routes
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(auth.JWTMiddleware(jwtCfg))

	account.NewHandler(accountSvc).RegisterRoutes(apiV1)
	family.NewHandler(familySvc).RegisterRoutes(apiV1)
	chat.NewHandler(chatSvc).RegisterRoutes(apiV1)
	notification.NewHandler(notificationSvc).RegisterRoutes(apiV1)
	files.NewHandler(filesSvc).RegisterRoutes(apiV1)
	location.NewHandler(locationSvc).RegisterRoutes(apiV1)
	connect.NewHandler(connectSvc).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
