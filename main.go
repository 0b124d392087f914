package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"codemart/internal/analytics"
	analytics_api "codemart/internal/analytics/api"
	"codemart/internal/auth"
	"codemart/internal/catalog"
	catalog_api "codemart/internal/catalog/api"
	"codemart/internal/config"
	"codemart/internal/coupon"
	"codemart/internal/database/migrations"
	"codemart/internal/kafka"
	"codemart/internal/license"
	"codemart/internal/logger"
	"codemart/internal/order"
	order_api "codemart/internal/order/api"
	orderdb "codemart/internal/order/db"
	rediswrap "codemart/internal/order/redis"
	"codemart/internal/payment"
	"codemart/internal/review"
	review_api "codemart/internal/review/api"
	"codemart/internal/storage"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
		})
	}
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting CodeMart initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("CONFIG", "JWT_SECRET not set")
	}

	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		logger.Info("DATABASE", "Running schema migrations")
		runner := migrations.NewRunner(bunDB, "./migrations")
		if err := runner.MigrateUp(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
		}
	}

	authDB := &auth.DB{Bun: bunDB}
	if err := auth.SeedAdmin(ctx, authDB, cfg.Auth, logger); err != nil {
		logger.Fatal("AUTH", fmt.Sprintf("Admin bootstrap failed: %v", err))
	}

	var orderEvents order.EventPublisher
	var reviewEvents review.EventPublisher
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		requiredTopics := []string{
			cfg.Kafka.Topics.OrderCreated,
			cfg.Kafka.Topics.OrderCompleted,
			cfg.Kafka.Topics.ReviewApproved,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, logger)
		orderEvents = producer
		reviewEvents = producer
		logger.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		orderEvents = kafka.NopProducer{}
		reviewEvents = kafka.NopProducer{}
		logger.Warn("KAFKA", "Kafka disabled, events will not be published")
	}

	catalogDB := &catalog.DB{Bun: bunDB}
	catalogService := catalog.NewService(catalogDB, logger)
	couponDB := &coupon.DB{Bun: bunDB}
	orderDB := &orderdb.DB{Bun: bunDB}
	reviewDB := &review.DB{Bun: bunDB}

	gateway := payment.NewClient(cfg.Gateway, logger)
	storageClient := storage.NewClient(cfg.Storage, logger)

	orderService := order.NewOrderService(
		orderDB,
		catalogDB,
		couponDB,
		rediswrap.NewRedis(redisClient),
		gateway,
		storageClient,
		orderEvents,
		cfg.Gateway.Currency,
		logger,
	)
	reviewService := review.NewService(reviewDB, orderDB, catalogDB, reviewEvents, logger)
	analyticsService := analytics.NewService(bunDB)

	authHandler := auth.NewHandler(authDB, cfg.Auth, logger)
	catalogHandler := catalog_api.NewHandler(catalogService, storageClient, logger)
	orderHandler := order_api.NewHandler(orderService, license.NewQRGenerator(cfg.Auth.JWTSecret), logger)
	reviewHandler := review_api.NewHandler(reviewService, logger)
	couponHandler := coupon.NewHandler(couponDB, logger)
	analyticsHandler := analytics_api.NewHandler(analyticsService, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(requestLogger(logger))

	// --- Public Routes ---
	r.Post("/api/auth/register", authHandler.Register)
	r.Post("/api/auth/login", authHandler.Login)
	r.Get("/api/products", catalogHandler.ListProducts)
	r.Get("/api/products/{productId}", catalogHandler.GetProduct)
	r.Get("/api/reviews/{productId}", reviewHandler.ListProductReviews)
	logger.Info("ROUTER", "Public catalog and auth endpoints registered")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret, authDB))
		logger.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Get("/api/auth/me", authHandler.Me)

		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/create", orderHandler.CreateOrder)
			r.Post("/verify", orderHandler.VerifyPayment)
			r.Get("/my-orders", orderHandler.MyOrders)
			r.Get("/{orderId}/download", orderHandler.GetDownloadLink)
			r.Get("/{orderId}/license-qr", orderHandler.GetLicenseQR)
		})
		logger.Info("ROUTER", "Order routes registered under /api/orders")

		r.Post("/api/reviews", reviewHandler.SubmitReview)

		// --- Admin Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.AdminOnly())

			r.Route("/api/admin", func(r chi.Router) {
				r.Post("/products", catalogHandler.CreateProduct)
				r.Put("/products/{productId}", catalogHandler.UpdateProduct)
				r.Delete("/products/{productId}", catalogHandler.DeleteProduct)
				r.Post("/products/{productId}/upload", catalogHandler.UploadArtifact)

				r.Post("/coupons", couponHandler.CreateCoupon)
				r.Get("/coupons", couponHandler.ListCoupons)

				r.Get("/orders", orderHandler.AllOrders)

				r.Get("/reviews", reviewHandler.ListPendingReviews)
				r.Put("/reviews/{reviewId}/approve", reviewHandler.ApproveReview)

				r.Get("/analytics", analyticsHandler.GetSummary)
			})
		})
		logger.Info("ROUTER", "Admin routes registered under /api/admin")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 CodeMart running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ CodeMart shutdown complete")
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}
