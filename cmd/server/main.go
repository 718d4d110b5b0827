package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/triptracker/backend/docs"
	"github.com/triptracker/backend/internal/config"
	"github.com/triptracker/backend/internal/database"
	"github.com/triptracker/backend/internal/handlers"
	mW "github.com/triptracker/backend/internal/middleware"
	"github.com/triptracker/backend/internal/services"
)

// @title Trip Tracker Backend API
// @version 1.0
// @description API for personal trip expense ledgers with spreadsheet and attachment exports
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	// Set environment variable prefix
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Trip Tracker Backend API"
	docs.SwaggerInfo.Description = "API for personal trip expense ledgers with spreadsheet and attachment exports"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerCfg := config.LoadLedgerConfig()
	exportCfg := config.LoadExportConfig()

	authService := services.NewAuthService(db, redisClient)
	ledgerService := services.NewLedgerService(db, redisClient, ledgerCfg)
	entryService := services.NewEntryService(db, ledgerService, ledgerCfg)
	exportService := services.NewExportService(db,
		services.NewCSVHTMLEncoder(exportCfg),
		services.NewHTTPAttachmentFetcher(ledgerCfg.UploadDir),
		exportCfg)
	exportHandler := handlers.NewExportHandler(exportService)
	attachmentHandler := handlers.NewAttachmentHandler(ledgerCfg)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for uploaded attachments
	r.Handle("/static/attachments/*", http.StripPrefix("/static/attachments/",
		mW.StaticFileServer(ledgerCfg.UploadDir)))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/verify", authService.VerifyEmail)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Post("/auth/forgot-password", authService.ForgotPassword)
		r.Post("/auth/reset-password", authService.ResetPassword)
		r.Get("/categories", ledgerService.GetCategories)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)
			r.Put("/auth/account", authService.UpdateUserAccount)
			r.Delete("/auth/account", authService.DeleteUserAccount)

			// Ledger endpoints
			r.Get("/ledgers", ledgerService.ListLedgers)
			r.Post("/ledgers", ledgerService.CreateLedger)
			r.Get("/ledgers/{ledgerId}", ledgerService.GetLedger)
			r.Put("/ledgers/{ledgerId}", ledgerService.UpdateLedger)
			r.Delete("/ledgers/{ledgerId}", ledgerService.DeleteLedger)
			r.Get("/ledgers/{ledgerId}/summary", ledgerService.GetSummary)

			// Entry endpoints
			r.Get("/ledgers/{ledgerId}/entries", entryService.ListEntries)
			r.Post("/ledgers/{ledgerId}/entries", entryService.CreateEntry)
			r.Get("/ledgers/{ledgerId}/entries/{entryId}", entryService.GetEntry)
			r.Put("/ledgers/{ledgerId}/entries/{entryId}", entryService.UpdateEntry)
			r.Delete("/ledgers/{ledgerId}/entries/{entryId}", entryService.DeleteEntry)

			// Export endpoints
			r.Get("/ledgers/{ledgerId}/export/spreadsheet", exportHandler.ExportSpreadsheet)
			r.Get("/ledgers/{ledgerId}/export/attachments", exportHandler.ExportAttachments)

			// Attachment upload
			r.Post("/attachments", attachmentHandler.Upload)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
