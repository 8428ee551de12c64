package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/openslot/openslot-backend/database"
	"github.com/openslot/openslot-backend/internal/config"
	"github.com/openslot/openslot-backend/internal/handlers"
	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/routes"
	"github.com/openslot/openslot-backend/internal/services"
	"github.com/openslot/openslot-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Configuration error:", err)
	}

	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
		log.Println("⚠️  Twilio credentials not found - SMS features will be limited")
	}

	// Initialize storage
	var store storage.Store

	if cfg.UseMemoryStore {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		if err := database.Connect(); err != nil {
			log.Fatal("Failed to connect to database:", err)
		}

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Merchant{},
			&models.Consumer{},
			&models.User{},
			&models.Slot{},
			&models.NotifyRequest{},
			&models.Notification{},
			&models.OTP{},
			&models.SMSIntake{},
			&models.MessageLog{},
			&models.Subscription{},
			&models.BillingEvent{},
			&models.PendingBooking{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}

	// Messaging
	var sms services.Messenger
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		twilioService, err := services.NewTwilioService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		if err != nil {
			log.Fatal("Failed to initialize Twilio service:", err)
		}
		sms = twilioService
		log.Println("✅ Twilio service initialized")
	} else {
		sms = services.NewLogMessenger()
		log.Println("⚠️  Using log-only messenger, no SMS will be sent")
	}

	// Core services
	signer, err := services.NewLinkSigner(cfg.LinkSigningSecret)
	if err != nil {
		log.Fatal("Failed to initialize link signer:", err)
	}

	sessions, err := services.NewSessionService(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	if err != nil {
		log.Fatal("Failed to initialize session service:", err)
	}

	slotService := services.NewSlotService(store, cfg.UndoWindow)
	notifyService := services.NewNotifyService(store, sms, signer, cfg.BaseURL)
	otpService := services.NewOTPService(store, sms, sessions, cfg.OTPExpiry, cfg.OTPResendWindow, cfg.OTPMaxAttempts)

	// AI intent extraction is optional; the regex fallback always runs.
	var extractor services.IntentExtractor
	if ai := services.NewOpenAIExtractor(cfg.OpenAIAPIKey); ai != nil {
		extractor = ai
		log.Println("✅ AI intent extraction enabled")
	} else {
		log.Println("⚠️  OPENAI_API_KEY not set - using pattern-based intent extraction only")
	}
	flowService := services.NewFlowService(store, extractor, services.NewRegexExtractor(), slotService, cfg.IntakeExpiry)
	replyRouter := services.NewReplyRouter(store, flowService, slotService, sms)

	log.Println("✅ All services initialized")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "OpenSlot Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, cfg, store, sms, routes.Handlers{
		Resolve: handlers.NewResolveHandler(store, signer),
		Claim:   handlers.NewClaimHandler(slotService),
		Notify:  handlers.NewNotifyHandler(notifyService),
		Auth:    handlers.NewAuthHandler(otpService),
		SMS:     handlers.NewSMSHandler(store, replyRouter),
		Billing: handlers.NewBillingHandler(store, cfg.StripeWebhookSecret),
	})

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 OpenSlot Backend starting on port %s", cfg.AppPort)
	log.Printf("📊 Storage: %s", storageType(cfg))
	log.Printf("📱 SMS: %s", smsStatus(cfg))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + cfg.AppPort))
}

func storageType(cfg *config.Config) string {
	if cfg.UseMemoryStore {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func smsStatus(cfg *config.Config) string {
	if cfg.TwilioAccountSID == "" {
		return "Not configured (log only)"
	}
	return "Configured"
}
