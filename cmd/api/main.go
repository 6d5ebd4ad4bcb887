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

	"github.com/joho/godotenv"
	"github.com/marisec-auth/internal/config"
	"github.com/marisec-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/marisec-auth/internal/infrastructure/jwt"
	"github.com/marisec-auth/internal/infrastructure/memory"
	"github.com/marisec-auth/internal/infrastructure/otpstore"
	"github.com/marisec-auth/internal/infrastructure/queue"
	s3infra "github.com/marisec-auth/internal/infrastructure/s3"
	"github.com/marisec-auth/internal/infrastructure/smtp"
	"github.com/marisec-auth/internal/infrastructure/sns"
	"github.com/marisec-auth/internal/logger"
	transporthttp "github.com/marisec-auth/internal/transport/http"
	appmiddleware "github.com/marisec-auth/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(0).Fatal("failed to load config", "err", err)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log.Logger)
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	// DynamoDB is chosen once here. When it cannot be reached, OTP records live
	// in process memory and user lookups fail with a typed configuration error.
	memStore := memory.NewOTPStore(
		memory.WithSweepInterval(cfg.OTP.SweepInterval),
		memory.WithLogger(log.Logger),
	)
	var (
		userRepo   *dynamo.UserRepo
		otpPrimary otpstore.Backend
	)
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), cfg.DynamoConnectTimeout)
	dynamoClient, err := dynamo.NewClient(connectCtx, cfg)
	cancelConnect()
	if err == nil {
		bootCtx, cancelBoot := context.WithTimeout(context.Background(), cfg.DynamoBootstrapTimeout)
		err = dynamo.Bootstrap(bootCtx, dynamoClient, cfg.DynamoTables)
		cancelBoot()
	}
	if err != nil {
		log.Warn("dynamodb unavailable, using in-memory otp store", "err", err)
		userRepo = dynamo.NewDisconnectedUserRepo(err)
	} else {
		userRepo = dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
		otpPrimary = dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPRecords)
	}
	otpStore := otpstore.New(otpPrimary, memStore, log.Logger)

	jwtProvider, err := jwtinfra.NewProvider(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatal("failed to build session token provider", "err", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:    userRepo,
		OTPStore:    otpStore,
		Mailer:      smtp.NewMailer(cfg),
		JWTProvider: jwtProvider,
		Logger:      log.Logger,
	}

	// S3 avatars are optional; profiles fall back to the external avatar URL.
	if s3Client, err := s3infra.NewClient(context.Background(), cfg); err == nil {
		deps.Avatars = s3infra.NewStore(s3Client, cfg.S3BucketName)
	} else {
		log.Warn("s3 avatar storage not available", "err", err)
	}

	// SNS SMS sender (optional).
	if cfg.SNSEnabled {
		if sender, err := sns.NewSender(context.Background(), cfg); err == nil {
			deps.SMSSender = sender
		} else {
			log.Warn("sns sender not available", "err", err)
		}
	}

	var producer *queue.Producer
	if cfg.KafkaEnabled() {
		producer = queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaUserEventsTopic)
		deps.Events = producer
	}

	limiter := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	deps.RateLimiter = limiter

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "err", err)
	}
	limiter.Stop()
	_ = memStore.Close()
	if err := producer.Close(); err != nil {
		log.Warn("kafka producer close failed", "err", err)
	}
	log.Info("server stopped")
}
