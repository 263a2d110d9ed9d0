package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/donkeyideas/kamioi-backend/src/clients"
	"github.com/donkeyideas/kamioi-backend/src/config"
	"github.com/donkeyideas/kamioi-backend/src/database"
	"github.com/donkeyideas/kamioi-backend/src/events"
	"github.com/donkeyideas/kamioi-backend/src/handlers"
	"github.com/donkeyideas/kamioi-backend/src/logger"
	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/donkeyideas/kamioi-backend/src/security"
	"github.com/donkeyideas/kamioi-backend/src/services"
	"github.com/donkeyideas/kamioi-backend/src/storage"
	"github.com/donkeyideas/kamioi-backend/src/workflow"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Kamioi backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}

	defaultRoundUp, err := decimal.NewFromString(config.Cfg.DefaultRoundUp)
	if err != nil {
		logger.L.Error("Invalid DEFAULT_ROUND_UP, must be a decimal amount", "value", config.Cfg.DefaultRoundUp, "error", err)
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing services and handlers...")
	bus := events.NewBus()

	receiptStore, err := storage.NewReceiptStore(database.DB, config.Cfg.UploadDir)
	if err != nil {
		logger.L.Error("Failed to initialize receipt store", "error", err)
		os.Exit(1)
	}

	extractionClient := clients.NewExtractionClient(config.Cfg.AIServiceURL, config.Cfg.AIServiceAPIKey, config.Cfg.AIRequestTimeout)
	ledgerClient := clients.NewLedgerClient(config.Cfg.LedgerServiceURL, config.Cfg.AIRequestTimeout)
	confirmer := services.NewRecordingConfirmer(ledgerClient, database.DB, handlers.GetUserIDFromContext)

	orchestrator := workflow.NewOrchestrator(receiptStore, extractionClient, confirmer, bus, workflow.Config{
		RequestTimeout: config.Cfg.AIRequestTimeout,
		MaxUploadBytes: config.Cfg.MaxUploadSizeBytes,
		DefaultRoundUp: defaultRoundUp,
	})
	registry := workflow.NewRegistry(config.Cfg.SessionTTL)

	receiptService := services.NewReceiptService(database.DB, bus)
	notifier := services.NewNotificationService()
	bus.Subscribe(func(ev events.ReceiptProcessed) {
		user, err := models.GetUserByID(database.DB, ev.UserID)
		if err != nil {
			logger.L.Warn("Cannot notify user of processed receipt", "userID", ev.UserID, "error", err)
			return
		}
		if err := notifier.SendReceiptProcessed(user.Email, user.Username, ev); err != nil {
			logger.L.Warn("Receipt notification failed", "userID", ev.UserID, "error", err)
		}
	})

	authService := security.NewAuthService(config.Cfg.JWTSecret)
	userHandler := handlers.NewUserHandler(authService)
	receiptHandler := handlers.NewReceiptHandler(registry, orchestrator, receiptStore)
	txHandler := handlers.NewTransactionHandler(receiptService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/auth/register", userHandler.RegisterUserHandler)
	apiRouter.HandleFunc("POST /api/auth/login", userHandler.LoginUserHandler)
	apiRouter.HandleFunc("POST /api/auth/refresh", userHandler.RefreshTokenHandler)
	apiRouter.HandleFunc("POST /api/auth/logout", userHandler.AuthMiddleware(userHandler.LogoutUserHandler))

	apiRouter.HandleFunc("POST /api/receipts/upload", userHandler.AuthMiddleware(receiptHandler.HandleUpload))
	apiRouter.HandleFunc("GET /api/receipts/sessions/{id}", userHandler.AuthMiddleware(receiptHandler.HandleGetSession))
	apiRouter.HandleFunc("POST /api/receipts/sessions/{id}/manual", userHandler.AuthMiddleware(receiptHandler.HandleManualSubmit))
	apiRouter.HandleFunc("POST /api/receipts/sessions/{id}/confirm", userHandler.AuthMiddleware(receiptHandler.HandleConfirm))
	apiRouter.HandleFunc("POST /api/receipts/sessions/{id}/retry", userHandler.AuthMiddleware(receiptHandler.HandleRetry))
	apiRouter.HandleFunc("POST /api/receipts/sessions/{id}/enter-manually", userHandler.AuthMiddleware(receiptHandler.HandleEnterManually))
	apiRouter.HandleFunc("DELETE /api/receipts/sessions/{id}", userHandler.AuthMiddleware(receiptHandler.HandleClose))

	apiRouter.HandleFunc("GET /api/transactions", userHandler.AuthMiddleware(txHandler.HandleGetTransactions))
	apiRouter.HandleFunc("GET /api/transactions/summary", userHandler.AuthMiddleware(txHandler.HandleGetInvestmentSummary))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Kamioi backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
