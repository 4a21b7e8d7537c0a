package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libaas-store/storefront/internal/config"
	"github.com/libaas-store/storefront/internal/logging"
	"github.com/libaas-store/storefront/internal/middleware"
	"github.com/libaas-store/storefront/internal/repository"
	"github.com/libaas-store/storefront/internal/server"
	"github.com/libaas-store/storefront/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", "json")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", cfg.OTEL.ServiceVersion).Msg("starting storefront API")

	ctx := context.Background()

	// Grafana Cloud style exporters take Basic auth with instanceId:apiToken
	otelProvider, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: cfg.OTEL.ServiceVersion,
		Environment:    cfg.OTEL.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
		OTLPHeaders:    telemetry.BasicAuthHeader(cfg.OTEL.InstanceID, cfg.OTEL.Token),
		BasePath:       cfg.OTEL.BasePath,
		Insecure:       cfg.OTEL.Insecure,
		Enabled:        cfg.OTEL.Enabled,
	}, log)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize OpenTelemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	// Initialize Firebase
	firebaseApp, err := middleware.InitFirebase(ctx,
		cfg.Firebase.ProjectID,
		cfg.Firebase.PrivateKey,
		cfg.Firebase.ClientEmail,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Firebase")
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get Firebase Auth client")
	}
	log.Info().Msg("Firebase initialized")

	// Connect to MongoDB with OpenTelemetry instrumentation
	ctxMongo, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoOpts := options.Client().ApplyURI(cfg.MongoDB.URI)
	if cfg.OTEL.Enabled {
		mongoOpts.SetMonitor(otelmongo.NewMonitor())
	}

	mongoClient, err := mongo.Connect(ctxMongo, mongoOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()

	if err := mongoClient.Ping(ctxMongo, nil); err != nil {
		log.Fatal().Err(err).Msg("failed to ping MongoDB")
	}
	log.Info().Str("database", cfg.MongoDB.Database).Msg("MongoDB connected")

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	log.Info().Msg("Redis connected")

	// Object store clients; the service credential backs payment proofs only
	store, err := repository.NewS3ObjectStore(ctx, cfg.S3, repository.S3Credentials{
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create object store client")
	}
	privileged, err := repository.NewS3ObjectStore(ctx, cfg.S3, repository.S3Credentials{
		AccessKeyID:     cfg.S3.ServiceAccessKeyID,
		SecretAccessKey: cfg.S3.ServiceSecretAccessKey,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create privileged object store client")
	}

	app, err := server.NewApp(ctx, server.AppDependencies{
		Config:          cfg,
		Logger:          log,
		MongoDB:         mongoClient.Database(cfg.MongoDB.Database),
		RedisClient:     redisClient,
		AuthClient:      authClient,
		ObjectStore:     store,
		PrivilegedStore: privileged,
		HealthChecks:    server.PingChecks(mongoClient, redisClient, store, cfg.Storage.ProductsBucket),
		Metrics:         otelProvider.Metrics(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("shutting down gracefully")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Server.Port).Msg("server starting")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
