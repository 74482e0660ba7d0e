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

	"github.com/redis/go-redis/v9"

	"github.com/forgo/jobboard/internal/config"
	"github.com/forgo/jobboard/internal/database"
	"github.com/forgo/jobboard/internal/handler"
	"github.com/forgo/jobboard/internal/jobs"
	"github.com/forgo/jobboard/internal/linksafety"
	"github.com/forgo/jobboard/internal/mail"
	"github.com/forgo/jobboard/internal/middleware"
	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/repository"
	"github.com/forgo/jobboard/internal/repository/gormstore"
	"github.com/forgo/jobboard/internal/repository/surreal"
	"github.com/forgo/jobboard/internal/revocation"
	"github.com/forgo/jobboard/internal/service"
	"github.com/forgo/jobboard/pkg/jwt"
)

func main() {
	// Initialize structured logging
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.IsDevelopment() {
		logLevel.Set(slog.LevelDebug)
	}

	ctx := context.Background()

	// Initialize storage
	st, err := openStores(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = st.close() }()

	slog.Info("connected to database", slog.String("driver", cfg.Database.Driver))

	health := map[string]handler.Pinger{"database": st.ping}

	// Initialize Redis when a component needs it
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		health["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		slog.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))
	}

	// Initialize JWT service
	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		Issuer:         cfg.JWT.Issuer,
		Audience:       cfg.JWT.Audience,
		ExpirationMins: cfg.JWT.ExpirationMins,
	})
	if err != nil {
		slog.Error("failed to initialize JWT service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize token revocation
	var revocations revocation.Store
	var tokenCleanup *jobs.TokenCleanup
	switch cfg.Revocation.Backend {
	case config.RevocationRedis:
		revocations = revocation.NewRedisStore(redisClient)
	default:
		store := revocation.NewRepositoryStore(st.tokens)
		revocations = store
		tokenCleanup, err = jobs.NewTokenCleanup(store, cfg.Revocation.CleanupSchedule, logger)
		if err != nil {
			slog.Error("failed to create token cleanup", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Initialize link safety
	linkChecker, err := newLinkChecker(ctx, cfg.LinkSafety, logger)
	if err != nil {
		slog.Error("failed to initialize link safety", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize email notifications
	mailProvider, err := newMailProvider(ctx, cfg.Email, logger)
	if err != nil {
		slog.Error("failed to initialize email provider", slog.String("error", err.Error()))
		os.Exit(1)
	}
	dispatcher := jobs.NewNotificationDispatcher(mail.NewSender(mailProvider, logger), jobs.DispatcherConfig{
		Workers:       cfg.Notifications.Workers,
		QueueSize:     cfg.Notifications.QueueSize,
		SendTimeout:   cfg.Notifications.SendTimeout,
		BatchDeadline: cfg.Notifications.BatchDeadline,
	}, logger)

	// Initialize services
	tokenService := service.NewTokenService(jwtService)

	authService := service.NewAuthService(service.AuthServiceConfig{
		UserRepo:     st.users,
		TokenService: tokenService,
		Revoker:      revocations,
	})

	jobService := service.NewJobService(service.JobServiceConfig{
		JobRepo:          st.jobs,
		SubscriptionRepo: st.subs,
		LinkChecker:      linkChecker,
		Queue:            dispatcher,
		Logger:           logger,
	})

	subscriptionService := service.NewSubscriptionService(st.subs, st.users)
	gate := service.NewAccessGate(tokenService, revocations)

	// Initialize HTTP hardening
	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled {
		limitCfg := middleware.RateLimitConfig{
			Rate:   cfg.RateLimit.Rate,
			Window: cfg.RateLimit.Window,
			Burst:  cfg.RateLimit.Burst,
		}
		if cfg.RateLimit.Backend == config.LimiterRedis {
			limiter = middleware.NewRedisLimiter(redisClient, limitCfg)
		} else {
			memLimiter := middleware.NewMemoryLimiter(limitCfg)
			defer memLimiter.Stop()
			limiter = memLimiter
		}
	}

	idempotencyStore := middleware.NewIdempotencyStore(middleware.IdempotencyConfig{TTL: cfg.Idempotency.TTL})
	defer idempotencyStore.Stop()

	// Create router and register routes
	router := handler.NewRouter(handler.RouterConfig{
		Jobs:          handler.NewJobHandler(jobService, logger),
		Auth:          handler.NewAuthHandler(authService, logger),
		Subscriptions: handler.NewSubscriptionHandler(subscriptionService, logger),
		Health:        handler.NewHealthHandler(health, logger),
		Gate:          gate,
		Limiter:       limiter,
		Idempotency:   idempotencyStore,
		CORSOrigins:   cfg.Server.AllowedOrigins,
		Logger:        logger,
	})

	// Start background jobs
	dispatcher.Start()
	if tokenCleanup != nil {
		if err := tokenCleanup.Start(); err != nil {
			slog.Error("failed to start token cleanup", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	// No handler can enqueue any more; flush what is queued.
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		slog.Warn("notification queue not drained", slog.String("error", err.Error()))
	}
	if tokenCleanup != nil {
		tokenCleanup.Stop()
	}

	slog.Info("server exited")
}

// stores groups the repositories for one backend
type stores struct {
	users  repository.Repository[model.User]
	jobs   repository.Repository[model.Job]
	subs   repository.Repository[model.UserSubscription]
	tokens repository.Repository[model.InvalidToken]
	ping   handler.Pinger
	close  func() error
}

func openStores(ctx context.Context, cfg config.DatabaseConfig) (*stores, error) {
	if cfg.Driver == config.DriverSurrealDB {
		db := database.NewSurrealDB(database.Config{
			Host:      cfg.SurrealHost,
			Port:      cfg.SurrealPort,
			User:      cfg.SurrealUser,
			Password:  cfg.SurrealPassword,
			Namespace: cfg.SurrealNamespace,
			Database:  cfg.SurrealDatabase,
		})
		if err := db.Connect(ctx); err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}

		postedBy := surreal.Relation{
			Name:       model.JobRelationPostedBy,
			Field:      "posted_by",
			Table:      model.User{}.TableName(),
			ForeignKey: model.JobFieldPostedByUserID,
		}
		return &stores{
			users:  surreal.New[model.User](db),
			jobs:   surreal.New[model.Job](db, postedBy),
			subs:   surreal.New[model.UserSubscription](db),
			tokens: surreal.New[model.InvalidToken](db),
			ping:   db.Ping,
			close:  db.Close,
		}, nil
	}

	db, err := gormstore.Open(gormstore.Config{
		Driver:  cfg.Driver,
		DSN:     cfg.DSN,
		Verbose: cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}
	if err := gormstore.Migrate(ctx, db); err != nil {
		_ = gormstore.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &stores{
		users:  gormstore.New[model.User](db),
		jobs:   gormstore.New[model.Job](db),
		subs:   gormstore.New[model.UserSubscription](db),
		tokens: gormstore.New[model.InvalidToken](db),
		ping:   func(ctx context.Context) error { return gormstore.Ping(ctx, db) },
		close:  func() error { return gormstore.Close(db) },
	}, nil
}

func newLinkChecker(ctx context.Context, cfg config.LinkSafetyConfig, logger *slog.Logger) (linksafety.Checker, error) {
	if cfg.Provider != config.LinkSafetyGoogle {
		slog.Warn("link safety lookups disabled; only URL syntax is checked")
		return linksafety.SyntacticChecker{}, nil
	}
	return linksafety.NewGoogleChecker(ctx, linksafety.GoogleConfig{
		APIKey:        cfg.APIKey,
		ClientID:      cfg.ClientID,
		ClientVersion: "1.0.0",
		Timeout:       cfg.Timeout,
		Attempts:      uint(cfg.Attempts),
		RetryDelay:    cfg.RetryDelay,
	}, logger)
}

func newMailProvider(ctx context.Context, cfg config.EmailConfig, logger *slog.Logger) (mail.Provider, error) {
	switch cfg.Provider {
	case config.EmailBrevo:
		return mail.NewBrevoProvider(cfg.BrevoAPIKey, cfg.FromAddress, cfg.FromName, logger), nil
	case config.EmailGmail:
		credentials, err := os.ReadFile(cfg.GmailCredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("read gmail credentials: %w", err)
		}
		return mail.NewGmailProviderFromCredentials(ctx, credentials, logger)
	default:
		return mail.NewLogProvider(logger), nil
	}
}
