package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"novytek/api/config"
	"novytek/api/database"
	"novytek/api/handlers"
	"novytek/api/logger"
	"novytek/api/metrics"
	"novytek/api/middleware"
	"novytek/api/models"
	"novytek/api/notify"
	"novytek/api/store"
	"novytek/api/tracker"
	"novytek/api/utils"
)

// backend is the persistence selected by STORE_DRIVER.
type backend struct {
	store  store.Store
	auth   store.Authenticator
	closer func()
}

func main() {
	envErr := godotenv.Load()

	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if envErr != nil {
		log.Info("no .env file loaded", zap.Error(envErr))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handlers.RegisterValidators(); err != nil {
		log.Fatal("failed to register validators", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer b.closer()

	collector := metrics.NewCollector("novytek")
	trackerStore := store.NewBreakerStore(b.store, store.DefaultBreakerConfig("tracking-writes"), log)
	trackerOpts := []tracker.Option{tracker.WithMetrics(collector)}

	// --- ClickHouse event mirror (optional) ---
	var eventStats store.EventStats
	if cfg.ClickHouse.Enabled() {
		chClient, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, log)
		if err != nil {
			log.Fatal("failed to initialize ClickHouse", zap.Error(err))
		}
		defer chClient.Close()

		analyticsStore := store.NewAnalyticsStore(chClient, log)
		eventStats = analyticsStore
		trackerOpts = append(trackerOpts, tracker.WithEventSink(analyticsStore))
	} else {
		log.Info("CLICKHOUSE_HOST not set, event statistics disabled")
	}

	// --- Tracker ---
	tr := tracker.New(trackerStore, cfg.Tracker, log, trackerOpts...)
	go tr.Run(ctx)

	// --- Handlers ---
	tokens := utils.NewTokenIssuer(cfg.JWTSecret)
	contactHandlers := handlers.NewContactHandlers(b.store, tr, notify.NewNotifier(cfg.Supabase.URL, cfg.Supabase.AnonKey), cfg.SecureCookies, log)
	h := handlers.Handlers{
		Track:   handlers.NewTrackHandlers(tr, cfg.SecureCookies, log),
		Contact: contactHandlers,
		Catalog: handlers.NewCatalogHandlers(b.store, log),
		Stats:   handlers.NewStatsHandlers(b.store, eventStats, log),
		Auth:    handlers.NewAuthHandlers(b.auth, b.store, tokens, cfg.SecureCookies, log),
	}
	gate := middleware.NewAdminGate(b.store, tokens, cfg.AdminAPIKeyHash, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(collector))
	r.Use(middleware.CORSMiddleware(cfg.FrontendOrigins))

	handlers.RegisterRoutes(r, h, gate)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{})))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": cfg.StoreDriver, "events": eventStats != nil})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("API server starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("API server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := tr.Shutdown(shutdownCtx); err != nil {
		log.Warn("tracking writes dropped at shutdown", zap.Error(err))
	}
	contactHandlers.Wait()

	log.Info("server exiting")
}

func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		// Sign-in still goes through the hosted auth service.
		client, err := database.NewSupabaseClient(cfg.Supabase)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &backend{store: store.NewPostgresStore(db.DB), auth: store.NewSupabaseStore(client), closer: db.Close}, nil

	case config.DriverMemory:
		s := store.NewMemoryStore()
		if cfg.DevAdminEmail != "" {
			userID, err := s.AddUser(cfg.DevAdminEmail, cfg.DevAdminPassword)
			if err != nil {
				return nil, err
			}
			s.AddAdmin(models.AdminUser{UserID: userID, Email: cfg.DevAdminEmail, Role: models.RoleSuperAdmin, IsActive: true})
			log.Info("memory store seeded with a super admin", zap.String("email", cfg.DevAdminEmail))
		}
		return &backend{store: s, auth: s, closer: func() {}}, nil

	default:
		client, err := database.NewSupabaseClient(cfg.Supabase)
		if err != nil {
			return nil, err
		}
		s := store.NewSupabaseStore(client)
		return &backend{store: s, auth: s, closer: func() {}}, nil
	}
}
