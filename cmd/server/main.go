package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Swiftline-Couriers/service-quotes/internal/application"
	"github.com/Swiftline-Couriers/service-quotes/internal/config"
	"github.com/Swiftline-Couriers/service-quotes/internal/domain/quote"
	quoteEvents "github.com/Swiftline-Couriers/service-quotes/internal/events"
	"github.com/Swiftline-Couriers/service-quotes/internal/geo"
	"github.com/Swiftline-Couriers/service-quotes/internal/handler"
	"github.com/Swiftline-Couriers/service-quotes/internal/payment"
	"github.com/Swiftline-Couriers/service-quotes/internal/platform/database"
	"github.com/Swiftline-Couriers/service-quotes/internal/platform/kafka"
	"github.com/Swiftline-Couriers/service-quotes/internal/platform/logger"
	"github.com/Swiftline-Couriers/service-quotes/internal/platform/middleware"
	"github.com/Swiftline-Couriers/service-quotes/internal/relay"
	"github.com/Swiftline-Couriers/service-quotes/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-quotes")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-quotes",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(&repository.BookingModel{}); err != nil {
		log.Fatal("failed to run auto-migration", zap.Error(err))
	}

	// Connect to the session store
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := repository.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()
	sessionStore := repository.NewRedisSessionStore(redisClient, cfg.SessionTTL)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize external provider clients
	httpClient := &http.Client{Timeout: 10 * time.Second}
	geoClient := geo.NewClient(cfg.GeoConfig.BaseURL, cfg.GeoConfig.APIKey, cfg.GeoConfig.CountryCode, httpClient)
	checkoutClient := payment.NewClient(cfg.CheckoutConfig.BaseURL, cfg.CheckoutConfig.APIKey, httpClient)
	relayClient := relay.New(cfg.RelayConfig.BaseURL, cfg.RelayConfig.FormID, cfg.SubmitTimeout, httpClient)

	// Initialize repositories and domain services
	bookingRepo := repository.NewGormBookingRepository(db)
	calculator := quote.NewCalculator(cfg.PricingConfig.ZoneMarker, cfg.PricingConfig.CongestionRate)

	// Initialize application services
	quoteService := application.NewQuoteService(geoClient, calculator, geo.DefaultDebounce, log)
	bookingService := application.NewBookingService(
		sessionStore,
		bookingRepo,
		calculator,
		checkoutClient,
		relayClient,
		kafkaProducer,
		cfg.PublicBaseURL+"/api/v1/sessions",
		log,
	)

	// Initialize and start payment event consumer in a goroutine
	groupID := cfg.KafkaConfig.GroupPrefix + "quotes-service"
	paymentConsumer := quoteEvents.NewPaymentEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		bookingService,
		log,
	)
	defer func() { _ = paymentConsumer.Close() }()

	go func() {
		log.Info("starting payment event consumer")
		if err := paymentConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("payment event consumer error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	quoteHandler := handler.NewQuoteHandler(quoteService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	// Register routes
	healthHandler.RegisterRoutes(&router.RouterGroup)
	quoteHandler.RegisterRoutes(&router.RouterGroup)
	bookingHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-quotes...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-quotes stopped")
}
