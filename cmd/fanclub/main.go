package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/superfanlabs/fanclub/internal/cart"
	"github.com/superfanlabs/fanclub/internal/checkout"
	"github.com/superfanlabs/fanclub/internal/config"
	"github.com/superfanlabs/fanclub/internal/db"
	"github.com/superfanlabs/fanclub/internal/funding"
	internalhttp "github.com/superfanlabs/fanclub/internal/http"
	"github.com/superfanlabs/fanclub/internal/logging"
	"github.com/superfanlabs/fanclub/internal/reconcile"
	"github.com/superfanlabs/fanclub/internal/redemption"
	"github.com/superfanlabs/fanclub/internal/settings"
	"github.com/superfanlabs/fanclub/internal/sweeper"
	"github.com/superfanlabs/fanclub/internal/util"
	"github.com/superfanlabs/fanclub/internal/wallet"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	// A missing .env is fine; the YAML file carries the non-secret config.
	_ = godotenv.Load()

	path := *configPath
	if path == "" {
		path = os.Getenv("FANCLUB_CONFIG")
	}
	if path == "" {
		path = "config.yaml"
	}

	cfg, errLoad := config.Load(path)
	if errLoad != nil {
		log.WithError(errLoad).Fatal("load config")
	}
	logging.Setup(cfg.Log)

	if errRun := run(cfg); errRun != nil {
		log.WithError(errRun).Fatal("fanclub exited")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return errRefresh
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if errPing := rdb.Ping(ctx).Err(); errPing != nil {
		return errPing
	}

	carts := cart.NewStore(rdb, cfg.Cart.TTL.Duration)
	wallets := wallet.NewLedger(conn)
	tracker := funding.NewTracker(conn)
	gateway := checkout.NewHTTPCardGateway(cfg.CardRail.Endpoint, cfg.CardRail.APIKey)
	router := checkout.NewRouter(conn, gateway, checkout.ChainConfig{
		RecipientAddress: cfg.Chain.RecipientAddress,
		TokenSymbol:      cfg.Chain.TokenSymbol,
	})
	log.WithFields(log.Fields{
		"card_endpoint":   cfg.CardRail.Endpoint,
		"card_api_key":    util.MaskSecret(cfg.CardRail.APIKey),
		"chain_recipient": util.MaskAddress(cfg.Chain.RecipientAddress),
	}).Info("payment rails configured")
	worker := reconcile.NewWorker(conn, wallets, tracker)
	redeemer := redemption.NewEngine(conn, wallets)

	sweeper.New(conn, tracker).Start(ctx)

	engine := internalhttp.NewEngine(internalhttp.Services{
		DB:       conn,
		Config:   cfg,
		Carts:    carts,
		Router:   router,
		Wallets:  wallets,
		Tracker:  tracker,
		Redeemer: redeemer,
		Worker:   worker,
	})

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("fanclub listening on %s", cfg.Listen)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
