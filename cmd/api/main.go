package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/nexusauctions/nexus-backend/api/routes"
	"github.com/nexusauctions/nexus-backend/internal/bidding"
	"github.com/nexusauctions/nexus-backend/internal/items"
	"github.com/nexusauctions/nexus-backend/internal/ledger"
	"github.com/nexusauctions/nexus-backend/internal/notifications"
	"github.com/nexusauctions/nexus-backend/internal/settlement"
	"github.com/nexusauctions/nexus-backend/internal/transactions"
	"github.com/nexusauctions/nexus-backend/internal/users"
	"github.com/nexusauctions/nexus-backend/internal/wallet"
	"github.com/nexusauctions/nexus-backend/pkg/config"
	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/env"
	"github.com/nexusauctions/nexus-backend/pkg/keylock"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/migrate"
	"github.com/nexusauctions/nexus-backend/pkg/paypal"
	"github.com/nexusauctions/nexus-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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

	paypalClient, err := paypal.NewClient(context.Background(), cfg.PayPal, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap paypal client", err)
		os.Exit(1)
	}

	locks := keylock.NewSet()

	itemsRepo := items.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	transactionsRepo := transactions.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	dispatcher, err := notifications.NewDispatcher(notificationsRepo, logg, 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}
	defer dispatcher.Close()

	ledgerService, err := ledger.NewService(dbClient, ledgerRepo, locks, cfg.Auction.LockWaitTimeout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	itemsService, err := items.NewService(itemsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create items service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(users.ServiceParams{
		Client:   dbClient,
		Repo:     usersRepo,
		Ledger:   ledgerService,
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	biddingService, err := bidding.NewService(bidding.ServiceParams{
		Client:       dbClient,
		Items:        itemsRepo,
		Ledger:       ledgerService,
		Transactions: transactionsRepo,
		Sink:         dispatcher,
		Locks:        locks,
		Config:       cfg.Auction,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bidding service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Client:       dbClient,
		Items:        itemsRepo,
		Transactions: transactionsRepo,
		Sink:         dispatcher,
		Locks:        locks,
		Config:       cfg.Auction,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	transactionsService, err := transactions.NewService(transactions.ServiceParams{
		Client: dbClient,
		Repo:   transactionsRepo,
		Items:  itemsRepo,
		Ledger: ledgerService,
		Sink:   dispatcher,
		Locks:  locks,
		Config: cfg.Auction,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transactions service", err)
		os.Exit(1)
	}

	walletService, err := wallet.NewService(ledgerService, paypalClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
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
			usersService,
			itemsService,
			biddingService,
			walletService,
			transactionsService,
			notificationsService,
			settlementService,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}

	logg.Info(ctx, "api server stopped")
}
