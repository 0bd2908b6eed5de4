package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/storefront-api/internal/application/notification"
	"github.com/storefront-api/internal/application/verification"
	"github.com/storefront-api/internal/config"
	"github.com/storefront-api/internal/infrastructure/dynamo"
	"github.com/storefront-api/internal/infrastructure/google"
	jwtinfra "github.com/storefront-api/internal/infrastructure/jwt"
	mongoinfra "github.com/storefront-api/internal/infrastructure/mongo"
	redisinfra "github.com/storefront-api/internal/infrastructure/redis"
	"github.com/storefront-api/internal/infrastructure/resend"
	"github.com/storefront-api/internal/infrastructure/smtp"
	"github.com/storefront-api/internal/infrastructure/sns"
	"github.com/storefront-api/internal/observability"
	transporthttp "github.com/storefront-api/internal/transport/http"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	logger, err := observability.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := observability.InitTracer(ctx, cfg, logger)
	defer shutdownTracer()

	// Refuses to start in production without JWT_SECRET.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return err
	}
	if jwtProvider.Insecure() {
		logger.Warn("JWT_SECRET not set, signing tokens with the development secret")
	}

	redisClient, err := redisinfra.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	codes := redisinfra.NewCodeStore(redisClient)

	userRepo, closeStore, err := newUserRepo(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	emailChain := notification.NewEmailChain(logger,
		resend.NewMailer(cfg.ResendAPIKey, cfg.EmailFrom),
		smtp.NewMailer(cfg),
	)
	if !emailChain.Available() {
		logger.Warn("no email provider configured, email codes will not be delivered")
	}
	smsChain, err := newSMSChain(ctx, cfg, logger)
	if err != nil {
		return err
	}

	phoneDir, err := google.NewPhoneDirectory(ctx, cfg.GoogleCredentialsFile)
	if err != nil {
		return err
	}

	engine := verification.NewEngine(verification.ServiceDeps{
		Codes: codes,
		Users: userRepo,
		Email: emailChain,
		SMS:   smsChain,
		TTL:   cfg.OTPTTL,
		Log:   logger.Named("verification"),
	})

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		UserRepo:       userRepo,
		CodeStore:      codes,
		Engine:         engine,
		JWTProvider:    jwtProvider,
		PhoneDirectory: phoneDir,
		GoogleVerifier: google.NewVerifier(cfg.GoogleClientID),
		Log:            logger.Named("http"),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newUserRepo selects the credential store named by USER_STORE.
func newUserRepo(ctx context.Context, cfg *config.Config, logger *zap.Logger) (transporthttp.UserRepository, func(), error) {
	switch cfg.UserStore {
	case "mongo":
		db, err := mongoinfra.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := mongoinfra.NewUserRepo(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, nil, err
		}
		return repo, func() { _ = db.Client().Disconnect(context.Background()) }, nil
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		// Creates the tables if they don't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables, logger)
		return dynamo.NewUserRepo(client, cfg.DynamoTables), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown USER_STORE %q", cfg.UserStore)
	}
}

// newSMSChain selects the SMS transport named by SMS_PROVIDER.
func newSMSChain(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*notification.SMSChain, error) {
	switch cfg.SMSProvider {
	case "sns":
		sender, err := sns.NewSender(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("sns sender: %w", err)
		}
		return notification.NewSMSChain(logger, sender), nil
	case "client":
		return notification.NewSMSChain(logger, notification.ClientDelegated{SimulateFailure: cfg.SMSSimulateFailure}), nil
	default:
		return nil, fmt.Errorf("unknown SMS_PROVIDER %q", cfg.SMSProvider)
	}
}
