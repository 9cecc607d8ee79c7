package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/tourney/internal/auth"
	"github.com/BradenHooton/tourney/internal/background"
	"github.com/BradenHooton/tourney/internal/config"
	"github.com/BradenHooton/tourney/internal/database"
	"github.com/BradenHooton/tourney/internal/handlers"
	middlewareCustom "github.com/BradenHooton/tourney/internal/middleware"
	"github.com/BradenHooton/tourney/internal/models"
	"github.com/BradenHooton/tourney/internal/repositories"
	"github.com/BradenHooton/tourney/internal/routes"
	"github.com/BradenHooton/tourney/internal/services"
	pkgauth "github.com/BradenHooton/tourney/pkg/auth"
	pkghttp "github.com/BradenHooton/tourney/pkg/http"
	pkglogger "github.com/BradenHooton/tourney/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// pingableStore is an attempt store that can report its own health
type pingableStore interface {
	services.AttemptStore
	Ping(ctx context.Context) error
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("attempt_store", cfg.Recovery.StoreBackend),
		slog.String("email_provider", cfg.Email.Provider))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		err := database.Migrate(migrateCtx, db, logger)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)

	store, closeStore, err := newAttemptStore(cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	limiter, err := services.NewAttemptLimiter(store, services.LimiterConfig{
		Policy: models.LimiterPolicy{
			MaxAttempts:      cfg.Recovery.MaxAttempts,
			WindowDuration:   cfg.Recovery.Window,
			CooldownDuration: cfg.Recovery.Cooldown,
		},
		Collection: cfg.Recovery.Collection,
		FailClosed: cfg.Recovery.FailClosed,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create attempt limiter: %w", err)
	}

	emailService, err := newEmailService(cfg, logger)
	if err != nil {
		return err
	}

	auditLogger := pkglogger.NewAuditLogger(logger)
	recoveryService := services.NewPasswordRecoveryService(
		userRepo,
		resetRepo,
		limiter,
		emailService,
		auditLogger,
		logger,
		cfg.Recovery.TokenExpiry,
	)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, cfg.Auth, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	recoveryHandler := handlers.NewRecoveryHandler(
		recoveryService,
		ipConfig,
		auth.NewResponseFloor(cfg.Recovery.ResponseFloor, cfg.Recovery.ResponseFloor/2),
	)
	healthHandler := handlers.NewHealthHandler(logger,
		handlers.HealthCheck{Name: "database", Check: db.HealthCheck},
		handlers.HealthCheck{Name: "attempt_store", Check: store.Ping},
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(router, routes.Dependencies{
		RecoveryHandler:   recoveryHandler,
		HealthHandler:     healthHandler,
		TokenManager:      tokenManager,
		UserRepo:          userRepo,
		IPConfig:          ipConfig,
		RequestsPerMinute: cfg.Recovery.RequestsPerMinute,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupManager := background.NewCleanupManager(limiter, resetRepo, logger, cfg.Recovery.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-sigChan:
		logger.Info("shutdown signal received")
	}

	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// newAttemptStore builds the configured attempt store and returns a func releasing its resources
func newAttemptStore(cfg *config.Config, db *database.DB, logger *slog.Logger) (pingableStore, func(), error) {
	switch cfg.Recovery.StoreBackend {
	case config.StoreBackendMemory:
		logger.Warn("using in-memory attempt store; attempts are not shared between replicas")
		return repositories.NewMemoryAttemptStore(), func() {}, nil
	case config.StoreBackendRedis:
		client, err := database.NewRedisClient(&cfg.Redis, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return repositories.NewRedisAttemptStore(client), func() { _ = client.Close() }, nil
	default:
		return repositories.NewPostgresAttemptStore(db), func() {}, nil
	}
}

func newEmailService(cfg *config.Config, logger *slog.Logger) (services.EmailService, error) {
	if cfg.Email.Provider == config.EmailProviderLog {
		logger.Warn("email provider is log; password reset emails will not be delivered")
		return services.NewLogEmailService(cfg.Email.ResetURLBase, logger), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	emailService, err := services.NewAWSSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.ResetURLBase, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email service: %w", err)
	}
	return emailService, nil
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, cfg config.AuthConfig, logger *slog.Logger) error {
	if cfg.AdminEmail == "" {
		logger.Info("no ADMIN_EMAIL set, skipping admin user creation")
		return nil
	}

	email := services.NormalizeKey(cfg.AdminEmail)

	_, err := userRepo.GetByEmail(ctx, email)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(cfg.AdminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now()
	admin := &models.User{
		Email:             email,
		PasswordHash:      hashedPassword,
		Name:              "Admin",
		Role:              "admin",
		Status:            models.UserStatusActive,
		PasswordChangedAt: &now,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}
