package main

import (
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/papertrade/src/config"
	"github.com/username/papertrade/src/database"
	"github.com/username/papertrade/src/handlers"
	"github.com/username/papertrade/src/logger"
	"github.com/username/papertrade/src/model"
	"github.com/username/papertrade/src/security"
	"github.com/username/papertrade/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("papertrade server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	if n, err := model.DeleteExpiredSessions(database.DB); err != nil {
		logger.L.Warn("Failed to prune expired sessions", "error", err)
	} else if n > 0 {
		logger.L.Info("Pruned expired sessions", "count", n)
	}

	quoteCache := cache.New(config.Cfg.QuoteCacheTTL, 2*config.Cfg.QuoteCacheTTL)

	authService := security.NewAuthService(config.Cfg.JWTSecret)
	quoteService := services.NewQuoteService(
		config.Cfg.QuoteAPIBaseURL,
		quoteCache,
		config.Cfg.QuoteRateLimit,
		config.Cfg.QuoteTimeout,
	)
	orderService := services.NewOrderService(database.DB, quoteService)
	portfolioService := services.NewPortfolioService(database.DB, quoteService)

	userHandler := handlers.NewUserHandler(authService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	orderHandler := handlers.NewOrderHandler(orderService)
	quoteHandler := handlers.NewQuoteHandler(quoteService)
	historyHandler := handlers.NewHistoryHandler()

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(handlers.NoCacheMiddleware)
	r.Use(rateLimitMiddleware)
	r.Use(handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/login", userHandler.ShowLogin)
		r.Post("/login", userHandler.Login)
		r.Get("/register", userHandler.ShowRegister)
		r.Post("/register", userHandler.Register)
		r.Get("/logout", userHandler.Logout)
	})

	// Portfolio routes, session required
	r.Group(func(r chi.Router) {
		r.Use(userHandler.AuthMiddleware)

		r.Get("/", portfolioHandler.Index)
		r.Get("/buy", orderHandler.ShowBuy)
		r.Post("/buy", orderHandler.Buy)
		r.Get("/sell", orderHandler.ShowSell)
		r.Post("/sell", orderHandler.Sell)
		r.Get("/quote", quoteHandler.ShowQuote)
		r.Post("/quote", quoteHandler.Quote)
		r.Get("/history", historyHandler.History)
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
