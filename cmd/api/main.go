package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cantadelicia/estanquillo-backend/api/controllers"
	"github.com/cantadelicia/estanquillo-backend/api/routes"
	"github.com/cantadelicia/estanquillo-backend/internal/authsession"
	"github.com/cantadelicia/estanquillo-backend/internal/cart"
	"github.com/cantadelicia/estanquillo-backend/internal/catalog"
	"github.com/cantadelicia/estanquillo-backend/internal/reconcile"
	"github.com/cantadelicia/estanquillo-backend/internal/register"
	"github.com/cantadelicia/estanquillo-backend/internal/sales"
	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	"github.com/cantadelicia/estanquillo-backend/pkg/db"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/metrics"
	"github.com/cantadelicia/estanquillo-backend/pkg/migrate"
	"github.com/cantadelicia/estanquillo-backend/pkg/notify"
	"github.com/cantadelicia/estanquillo-backend/pkg/pubsub"
	"github.com/cantadelicia/estanquillo-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	hub := notify.NewHub(0)
	defer hub.Close()

	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer psClient.Close()

		origin := os.Getenv("HOSTNAME")
		if origin == "" {
			origin = "api-local"
		}
		bridge, err := notify.NewBridge(hub, psClient.SessionPublisher(), psClient.SessionSubscription(), origin, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create notify bridge", err)
			os.Exit(1)
		}
		bridgeCtx, stopBridge := context.WithCancel(context.Background())
		defer stopBridge()
		go func() {
			if err := bridge.Run(bridgeCtx); err != nil && bridgeCtx.Err() == nil {
				logg.Error(bridgeCtx, "notify bridge stopped unexpectedly", err)
			}
		}()
	}

	sessionMetrics := metrics.NewSessionMetrics(prometheus.DefaultRegisterer)
	reconcileMetrics := metrics.NewReconcileMetrics(prometheus.DefaultRegisterer)

	catalogRepo := catalog.NewRepository(dbClient.DB())

	cartRegistry, err := cart.NewRegistry(cfg.Carts, redisClient, catalogRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart registry", err)
		os.Exit(1)
	}

	sessionRepo := authsession.NewRepository(dbClient.DB())
	sessionRegistry, err := authsession.NewManagerRegistry(sessionRepo, hub, cfg.Session, logg, sessionMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create session registry", err)
		os.Exit(1)
	}
	defer sessionRegistry.Close()

	approvals, err := authsession.NewApprovals(sessionRepo, hub, cfg.Session, logg, sessionMetrics, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create approvals service", err)
		os.Exit(1)
	}

	stockEngine, err := reconcile.NewEngine(dbClient, catalogRepo, logg, reconcileMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock engine", err)
		os.Exit(1)
	}

	gate, err := register.NewGate(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create register gate", err)
		os.Exit(1)
	}

	saleFactory, err := sales.NewFactory(sales.FactoryOptions{
		Repo:   sales.NewRepository(dbClient.DB()),
		Runner: dbClient,
		Stock:  stockEngine,
		Gate:   gate,
		Hub:    hub,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sale factory", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			controllers.ClientDeps{Carts: cartRegistry, Sessions: sessionRegistry},
			approvals,
			saleFactory,
			gate,
			catalogRepo,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
