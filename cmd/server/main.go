package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourcrow/payments-backend/internal/config"
	"github.com/tourcrow/payments-backend/internal/database"
	"github.com/tourcrow/payments-backend/internal/handlers"
	"github.com/tourcrow/payments-backend/internal/middleware"
	"github.com/tourcrow/payments-backend/internal/services"
	"github.com/tourcrow/payments-backend/pkg/email"
	"github.com/tourcrow/payments-backend/pkg/jwt"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Tourcrow payments backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories
	bookingRepository := database.NewBookingRepository(db.DB)
	auditRepository := database.NewPaymentAuditRepository(db.DB, logger)

	// Email gateway
	var mailer email.EmailGateway
	if cfg.Email.Mode == "production" {
		mailer = email.NewMailgunGateway(email.MailgunConfig{
			Domain:      cfg.Email.Domain,
			APIKey:      cfg.Email.APIKey,
			APIBase:     cfg.Email.APIBase,
			SenderName:  cfg.Email.SenderName,
			SenderEmail: cfg.Email.SenderEmail,
		})
		logger.WithField("domain", cfg.Email.Domain).Info("Mailgun email gateway initialized")
	} else {
		mailer = email.NewLogGateway(logger)
		logger.Info("Email gateway in development mode (emails are logged, not sent)")
	}

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	auditService := services.NewAuditService(auditRepository, logger)
	razorpayService := services.NewRazorpayService(&cfg.Razorpay, logger)
	confirmationService := services.NewConfirmationService(bookingRepository, mailer, auditService, cfg.App, logger)
	paymentService := services.NewPaymentService(bookingRepository, razorpayService, confirmationService, auditService, &cfg.Razorpay, cfg.App, logger)
	webhookService := services.NewWebhookService(paymentService, bookingRepository, auditService, cfg.Razorpay.WebhookSecret, logger)
	adminAuthService := services.NewAdminAuthService(cfg.Admin, jwtService)
	rateLimitService := services.NewRateLimitService(services.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		Burst:    cfg.RateLimit.Burst,
	})
	logger.Info("Services initialized")

	// Handlers
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)
	webhookHandler := handlers.NewWebhookHandler(webhookService, logger)
	adminAuthHandler := handlers.NewAdminAuthHandler(adminAuthService, logger)
	adminHandler := handlers.NewAdminHandler(auditService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}

	// CORS configuration
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: !allowsAnyOrigin(cfg.CORS.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck(db, version))

	api := router.Group("/api")
	{
		throttled := middleware.RateLimit(rateLimitService, logger)

		payment := api.Group("/payment")
		{
			payment.POST("/create-order", throttled, paymentHandler.CreateOrder)
			payment.POST("/verify", paymentHandler.VerifyPayment)
			payment.POST("/retry", throttled, paymentHandler.RetryPayment)
			payment.POST("/cancel", paymentHandler.CancelPayment)
			payment.GET("/status/:bookingId", paymentHandler.GetPaymentStatus)
		}

		api.POST("/bookings", throttled, paymentHandler.CreateBooking)

		// Signed by the gateway, never throttled
		api.POST("/webhooks/razorpay", webhookHandler.HandleRazorpay)

		admin := api.Group("/admin")
		{
			admin.POST("/login", throttled, adminAuthHandler.Login)

			protected := admin.Group("")
			protected.Use(middleware.AuthMiddleware(jwtService, logger), middleware.RequireRole(jwt.RoleAdmin))
			{
				protected.GET("/bookings/:id/audit", adminHandler.GetBookingAudit)
				protected.GET("/payments/anomalies", adminHandler.GetAnomalies)
			}
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return rateLimitService.RunCleanup(gctx, 5*time.Minute)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("Server stopped with error: %v", err)
	}

	logger.Info("Server exited")
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
