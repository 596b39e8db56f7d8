package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_storefront/internal/admin"
	"github.com/fjod/go_storefront/internal/apiclient"
	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/domain"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/journal"
	"github.com/fjod/go_storefront/internal/metrics"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/persistence"
	"github.com/fjod/go_storefront/internal/publisher"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const sweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	m := metrics.NewRegistry()

	kv, closeKV, err := openKV(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeKV()
	log.Info("cart storage ready", zap.String("backend", cfg.Store.Backend))

	bridge := persistence.NewBridge(kv, log, m)
	sessions := cart.NewRegistry(bridge, log, m, cfg.SessionTTL)

	api := apiclient.New(apiclient.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Log:       log,
	})
	authAPI := apiclient.New(apiclient.Options{
		BaseURL: cfg.API.AuthBaseURL,
		Timeout: cfg.API.Timeout,
		Log:     log,
	})
	products := catalog.NewClient(api, log)
	accounts := auth.NewClient(authAPI)
	admins := admin.NewClient(api, log)

	repo, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DSN)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RunMigrations(); err != nil {
		return err
	}

	svc := checkout.NewCheckoutService(
		checkout.NewAPIBackend(
			checkout.NewIntentHandler(api, cfg.API.Timeout),
			checkout.NewOrderHandler(api, cfg.API.Timeout),
		),
		checkout.NewPaymentHandler(newProcessor(cfg.Payment, log), cfg.Payment.Timeout),
		repo, log, m,
		checkout.Settings{
			Currency:              cfg.Checkout.Currency,
			ShippingFee:           domain.Money(cfg.Checkout.ShippingFee),
			FreeShippingThreshold: domain.Money(cfg.Checkout.FreeShippingThreshold),
			JournalTimeout:        5 * time.Second,
		},
	)

	// background workers stop before their kafka clients are closed
	bgCtx, cancelBg := context.WithCancel(ctx)
	var (
		wg      sync.WaitGroup
		closers []func() error
	)
	run := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(bgCtx)
		}()
	}
	defer func() {
		cancelBg()
		wg.Wait()
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("close failed", zap.Error(err))
			}
		}
	}()
	run(func(ctx context.Context) { sessions.Run(ctx, sweepInterval) })

	if len(cfg.Journal.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(repo,
			publisher.NewKafkaWriter(cfg.Journal.KafkaTopic, cfg.Journal.KafkaBrokers...),
			cfg.Journal.PollInterval, log, m)
		closers = append(closers, poller.Close)
		run(poller.Run)

		// every instance has to see every event, so the group is per host
		consumer := publisher.NewCartConsumer(
			publisher.NewKafkaReader(cfg.Journal.KafkaTopic, instanceGroupID(cfg.Journal.KafkaGroupID), cfg.Journal.KafkaBrokers...),
			sessions, log)
		closers = append(closers, consumer.Close)
		run(consumer.Run)
		log.Info("outbox publishing enabled", zap.Strings("brokers", cfg.Journal.KafkaBrokers))
	} else {
		log.Warn("no kafka brokers configured, checkout events stay in the journal")
	}

	router := h.NewRouter(h.RouterConfig{
		Cart:     h.NewCartHandler(sessions, products, cfg.RequestTimeout),
		Products: h.NewProductHandler(products, cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(sessions, svc, cfg.Checkout.Timeout),
		Account:  h.NewAccountHandler(accounts, cfg.RequestTimeout),
		Admin:    h.NewAdminHandler(accounts, admins, cfg.RequestTimeout),
		Metrics:  m,
		Log:      log,
		Timeout:  cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: max(cfg.RequestTimeout, cfg.Checkout.Timeout) + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("storefront listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	// in-flight checkouts are allowed to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), max(cfg.ShutdownTimeout, cfg.Checkout.Timeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

func openKV(ctx context.Context, cfg config.StoreConfig) (persistence.KV, func(), error) {
	switch cfg.Backend {
	case "memory":
		return persistence.NewMemoryKV(), func() {}, nil
	case "pebble":
		kv, err := persistence.OpenPebbleKV(cfg.PebbleDir)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { kv.Close() }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return persistence.NewRedisKV(client, cfg.RedisTTL), func() { client.Close() }, nil
	case "mongo":
		db, err := persistence.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		kv := persistence.NewMongoKV(db)
		if err := kv.CreateIndexes(ctx); err != nil {
			db.Client().Disconnect(context.Background())
			return nil, nil, err
		}
		return kv, func() { db.Client().Disconnect(context.Background()) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func instanceGroupID(prefix string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = uuid.NewString()
	}
	return prefix + "-" + host
}

func newProcessor(cfg config.PaymentConfig, log *zap.Logger) payment.Processor {
	if cfg.Mode == "http" {
		return payment.NewHTTPProcessor(cfg.ProcessorURL, cfg.PublishableKey, cfg.Timeout, log)
	}
	log.Warn("using the payment simulator")
	return payment.NewSimulator(payment.RandomStatus{})
}
