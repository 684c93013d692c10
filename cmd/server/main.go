package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/magnetico/order-api/internal/admin"
	"github.com/magnetico/order-api/internal/config"
	"github.com/magnetico/order-api/internal/mail"
	"github.com/magnetico/order-api/internal/metrics"
	"github.com/magnetico/order-api/internal/model"
	"github.com/magnetico/order-api/internal/order"
	"github.com/magnetico/order-api/internal/payment"
	"github.com/magnetico/order-api/internal/pricestore"
	"github.com/magnetico/order-api/internal/pricing"
	"github.com/magnetico/order-api/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	// --- Price store ---
	var st pricestore.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = pricestore.NewPostgresStore(pool)
		slog.Info("price store: PostgreSQL")
	} else {
		st = pricestore.NewFileStore(cfg.PriceFile)
		slog.Info("price store: file", "path", cfg.PriceFile)
	}

	// Wrap with Redis read-through cache + cross-instance invalidation
	// if configured.
	var cached *pricestore.CachedStore
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		cached = pricestore.NewCachedStore(st, rdb, 30*time.Second)
		st = cached
		slog.Info("Redis price cache enabled")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Pricing service ---
	pricingSvc := pricing.New(st, cfg.UnitPrice, cfg.Environment)
	if err := pricingSvc.Reload(context.Background()); err != nil {
		slog.Warn("could not load persisted price, continuing with remaining tiers", "err", err)
	}

	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	if cached != nil {
		// Other instances' permanent updates drop our runtime mirror.
		go cached.SubscribeUpdates(subCtx, func(rec *model.PriceRecord) {
			slog.Info("price update from peer instance", "price", rec.Price.String())
			if err := pricingSvc.Invalidate(subCtx); err != nil {
				slog.Warn("price invalidation failed", "err", err)
			}
		})
	}

	// --- Collaborator clients ---
	payClient := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentToken, cfg.FrontendURL, cfg.WebhookURL)
	mailClient := mail.NewClient(cfg.MailBaseURL, cfg.MailAPIKey, cfg.MailFrom)

	// --- Services ---
	orderSvc := order.NewService(pricingSvc, payClient, mailClient, cfg.DestinationEmail, cfg.Environment, cfg.MaintenanceMode)

	hub := admin.NewHub()
	go hub.Run()
	adminHandler := admin.NewHandler(pricingSvc, hub, cfg.Environment, orderSvc.InvalidateConfigCache)

	webhookHandler := webhook.NewHandler(payClient, mailClient, cfg.DestinationEmail)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", cfg.FrontendURL)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-admin-key")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"order-api"}`))
	})
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","time":%q}`, time.Now().UTC().Format(time.RFC3339))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	// Public config.
	r.Route("/api/config", func(r chi.Router) {
		r.Get("/", orderSvc.GetConfig)
		r.Get("/price", orderSvc.GetPrice)
	})

	// Order intake + direct checkout.
	r.Post("/api/order", orderSvc.Create)
	r.Get("/api/order/config/price", orderSvc.GetPrice)
	r.Post("/api/pay", orderSvc.CreatePayment)

	// Payment-status callbacks.
	r.Post("/api/webhook", webhookHandler.Handle)

	// Admin price management behind the shared secret.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(admin.RequireKey(cfg.AdminKey))
		r.Get("/price", adminHandler.GetPrice)
		r.Put("/price", adminHandler.UpdatePrice)
		r.Post("/price/permanent", adminHandler.PermanentPrice)
		r.Post("/price/reset", adminHandler.ResetPrice)
		r.Get("/price/live", hub.HandleWS)
		r.Get("/stats", adminHandler.Stats)
		r.Get("/health", adminHandler.Health)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("order-api listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down order-api...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("order-api stopped")
}
