package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/libaas-store/storefront/internal/config"
	"github.com/libaas-store/storefront/internal/domain"
	"github.com/libaas-store/storefront/internal/handler"
	"github.com/libaas-store/storefront/internal/middleware"
	"github.com/libaas-store/storefront/internal/repository"
	"github.com/libaas-store/storefront/internal/service"
	"github.com/libaas-store/storefront/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

const idempotencyTTL = 24 * time.Hour

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	Logger      zerolog.Logger
	MongoDB     *mongo.Database
	RedisClient *redis.Client
	AuthClient  middleware.FirebaseAuthClient

	// ObjectStore uses the general credential; PrivilegedStore the elevated service credential.
	ObjectStore     domain.ObjectStore
	PrivilegedStore domain.ObjectStore

	// NewsletterRepo overrides the MongoDB repository built from MongoDB
	NewsletterRepo domain.NewsletterRepository
	HealthChecks   []service.HealthCheck
	Metrics        *telemetry.Metrics
}

// StorageConfigFrom maps application config onto the storage service's rules
func StorageConfigFrom(cfg *config.Config) service.StorageConfig {
	storageCfg := service.DefaultStorageConfig()
	storageCfg.Buckets = domain.BucketSet{
		Products:      cfg.Storage.ProductsBucket,
		Categories:    cfg.Storage.CategoriesBucket,
		UserAvatars:   cfg.Storage.UserAvatarsBucket,
		PaymentProofs: cfg.Storage.PaymentProofsBucket,
	}
	storageCfg.SniffContent = cfg.Storage.SniffContent
	return storageCfg
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(ctx context.Context, deps AppDependencies) (*fiber.App, error) {
	cfg := deps.Config
	log := deps.Logger

	// Initialize repositories
	newsletterRepo := deps.NewsletterRepo
	if newsletterRepo == nil {
		if deps.MongoDB == nil {
			return nil, errors.New("MongoDB or a newsletter repository is required")
		}
		mongoRepo, err := repository.NewMongoNewsletterRepository(ctx, deps.MongoDB)
		if err != nil {
			return nil, err
		}
		newsletterRepo = mongoRepo
	}

	store, privileged := deps.ObjectStore, deps.PrivilegedStore
	if store == nil {
		return nil, errors.New("an object store is required")
	}
	if deps.RedisClient != nil && cfg.Storage.ListCacheTTLSeconds > 0 {
		cache := repository.NewRedisCacheRepository(deps.RedisClient)
		ttl := time.Duration(cfg.Storage.ListCacheTTLSeconds) * time.Second
		store = repository.NewCachedObjectStore(store, cache, ttl, log)
		if privileged != nil {
			privileged = repository.NewCachedObjectStore(privileged, cache, ttl, log)
		}
	}

	// Initialize services
	newsletterService := service.NewNewsletterService(newsletterRepo, deps.Metrics, log)
	storageService := service.NewStorageService(StorageConfigFrom(cfg), store, privileged, log,
		service.WithStorageMetrics(deps.Metrics))
	tokenService := service.NewTokenService(cfg.JWT.Secret)
	healthService := service.NewHealthService(2*time.Second, deps.HealthChecks...)

	// Initialize handlers
	newsletterHandler := handler.NewNewsletterHandler(newsletterService, log)
	catalogHandler := handler.NewCatalogHandler()
	imageHandler := handler.NewImageHandler(storageService, cfg.Server.MaxUploadSizeMB, log)
	healthHandler := handler.NewHealthHandler(healthService, cfg.OTEL.ServiceName)

	app := fiber.New(fiber.Config{
		AppName:      "Storefront API",
		BodyLimit:    int(cfg.Server.MaxUploadSizeMB * 1024 * 1024),
		ErrorHandler: newErrorHandler(log),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(telemetry.FiberMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	app.Get("/health", healthHandler.Live)
	app.Get("/health/ready", healthHandler.Ready)

	api := app.Group("/api")

	// Public
	api.Post("/newsletter/subscribe", newsletterHandler.Subscribe)
	api.All("/newsletter/subscribe", newsletterHandler.MethodNotAllowed)
	api.Get("/catalog/filters", catalogHandler.GetFilters)
	api.Get("/images/:bucket/url", imageHandler.ImageURL)

	idempotent := func(c *fiber.Ctx) error { return c.Next() }
	if deps.RedisClient != nil {
		idempotent = middleware.IdempotencyMiddleware(deps.RedisClient, idempotencyTTL, log)
	}

	// ===========================================
	// STAFF API - /api/admin/* (requires 'admin' or 'catalog_manager' role)
	// ===========================================
	admin := api.Group("/admin")
	admin.Use(middleware.VerifyStaffToken(tokenService))
	admin.Use(middleware.AuthorizeRole(domain.RoleAdmin, domain.RoleCatalogManager))

	admin.Post("/products/:productId/images", idempotent, imageHandler.UploadProductImage)
	admin.Post("/categories/:slug/images", idempotent, imageHandler.UploadCategoryImage)
	admin.Get("/images/:bucket", imageHandler.ListImages)
	admin.Delete("/images/:bucket/*", imageHandler.DeleteImage)
	admin.Post("/storage/payment-proofs-bucket", middleware.AuthorizeRole(domain.RoleAdmin), imageHandler.CreatePaymentProofsBucket)

	// ===========================================
	// CUSTOMER API (Firebase ID token)
	// ===========================================
	if deps.AuthClient != nil {
		customerAuth := middleware.FirebaseAuth(deps.AuthClient)
		api.Post("/orders/:orderId/payment-proof", customerAuth, idempotent, imageHandler.UploadPaymentProof)
		api.Post("/me/avatar", customerAuth, idempotent, imageHandler.UploadAvatar)
	} else {
		log.Warn().Msg("no Firebase auth client, customer upload routes disabled")
	}

	// Anything left is unknown
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Page Not Found",
		})
	})

	return app, nil
}

// newErrorHandler answers errors no handler dealt with. Only fiber errors below 500 expose their message.
func newErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "An unexpected error occurred"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			if code < fiber.StatusInternalServerError {
				message = fe.Message
			}
		}

		log.Error().Err(err).Int("status", code).Str("path", c.Path()).Msg("request failed")
		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}

// PingChecks builds readiness checks for the live dependencies
func PingChecks(mongoClient *mongo.Client, redisClient *redis.Client, s3 *repository.S3ObjectStore, bucket string) []service.HealthCheck {
	var checks []service.HealthCheck
	if mongoClient != nil {
		checks = append(checks, service.HealthCheck{Name: "mongodb", Check: func(ctx context.Context) error {
			return mongoClient.Ping(ctx, nil)
		}})
	}
	if redisClient != nil {
		cache := repository.NewRedisCacheRepository(redisClient)
		checks = append(checks, service.HealthCheck{Name: "redis", Check: cache.Ping})
	}
	if s3 != nil {
		checks = append(checks, service.HealthCheck{Name: "s3", Check: func(ctx context.Context) error {
			if err := s3.Ping(ctx, bucket); err != nil {
				return fmt.Errorf("object store: %w", err)
			}
			return nil
		}})
	}
	return checks
}
