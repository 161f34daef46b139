package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/helden/internal/cache"
	"github.com/fjod/helden/internal/config"
	"github.com/fjod/helden/internal/consumer"
	h "github.com/fjod/helden/internal/http"
	"github.com/fjod/helden/internal/inventory"
	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/payment"
	"github.com/fjod/helden/internal/pricing"
	"github.com/fjod/helden/internal/publisher"
	"github.com/fjod/helden/internal/repository"
	"github.com/fjod/helden/internal/service"
	"github.com/fjod/helden/internal/sweeper"
	"github.com/fjod/helden/internal/wallet"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	cfg, err := config.Load(getEnv("CONFIG_DIR", "./configs"), getEnv("APP_ENV", ""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("service stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// MongoDB
	db, err := repository.ConnectMongoDB(startCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Client().Disconnect(context.Background()) }()
	if err := repository.EnsureIndexes(startCtx, db); err != nil {
		return err
	}
	log.Info("connected to MongoDB", "database", cfg.Mongo.Database)

	stock := inventory.NewMongoStore(db)
	if err := stock.CreateIndexes(startCtx); err != nil {
		return err
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(startCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	walletRepo, closeWallet, err := openWallet(startCtx, cfg, db)
	if err != nil {
		return err
	}
	defer closeWallet()
	log.Info("wallet ledger ready", "backend", cfg.Wallet.Backend)

	var (
		carts    = repository.NewCartRepository(db)
		products = repository.NewProductRepository(db)
		orders   = repository.NewOrderRepository(db)
		coupons  = repository.NewCouponRepository(db)
		offers   = repository.NewOfferRepository(db)
		users    = repository.NewUserRepository(db)
		outbox   = repository.NewOutboxRepository(db)
		idem     = cache.NewRedisIdempotency(redisClient, cfg.Idempotency.TTL)
		engine   = pricing.NewEngine(cfg.Pricing.ShippingBands)
	)

	gateway := payment.NewRazorpayGateway(payment.Config{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		Currency:  cfg.Razorpay.Currency,
		Timeout:   cfg.Razorpay.Timeout,
	})

	cartService := service.NewCartService(carts, products, cache.NewRedisCache(redisClient, cfg.Cache.CartTTL), engine)
	walletService := service.NewWalletService(walletRepo, cfg.Wallet.PageSize, time.Now)
	policy := service.ReservationPolicy(cfg.Checkout.ReservationPolicy)
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Orders:   orders,
		Products: products,
		Users:    users,
		Coupons:  coupons,
		Outbox:   outbox,
		Stock:    stock,
		Carts:    cartService,
		Gateway:  gateway,
		Idem:     idem,
		Pricing:  engine,
		Now:      time.Now,
	}, service.CheckoutConfig{
		DraftTTL:         cfg.Checkout.DraftTTL,
		DeliveryDays:     cfg.Checkout.DeliveryDays,
		Policy:           policy,
		RequireSignature: cfg.Razorpay.RequireSignature,
	})
	orderService := service.NewOrderService(orders, outbox, stock, walletService, idem, time.Now)

	// Background workers
	poller := publisher.NewOutboxPoller(outbox, publisher.Config{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.OrderTopic,
		Interval: cfg.Kafka.PublishInterval,
	})
	defer func() { _ = poller.Close() }()

	referrals := consumer.NewConsumer(walletService, consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.ReferralTopic,
		GroupID: cfg.Kafka.ConsumerGroup,
	})
	defer referrals.Close()

	// drafts only hold stock under the soft policy
	var releaser sweeper.ReservationReleaser
	if policy == service.ReservationSoft {
		releaser = stock
	}
	sweep := sweeper.New(orders, releaser, cfg.Checkout.SweepInterval)

	var wg sync.WaitGroup
	for _, worker := range []func(context.Context){poller.Run, referrals.Run, sweep.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(worker)
	}

	router := h.NewRouter(&h.Handlers{
		Cart:     cartService,
		Checkout: checkoutService,
		Orders:   orderService,
		Wallet:   walletService,
		Coupons:  service.NewCouponService(coupons),
		Offers:   service.NewOfferService(offers, products, time.Now),
		Timeout:  cfg.HTTP.RequestTimeout,
	}, h.RouterConfig{
		JWTSecret:      cfg.Auth.JWTSecret,
		Issuer:         cfg.Auth.Issuer,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	}, log)

	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      otelhttp.NewHandler(router, cfg.App.Name),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.App.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		stop()
		wg.Wait()
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	wg.Wait()
	log.Info("service stopped")
	return nil
}

// openWallet returns the ledger selected by wallet.backend and its cleanup.
func openWallet(ctx context.Context, cfg config.Config, db *mongo.Database) (wallet.Repository, func(), error) {
	if cfg.Wallet.Backend == "postgres" {
		cred := &wallet.Credentials{
			Host:              cfg.Postgres.Host,
			Port:              cfg.Postgres.Port,
			User:              cfg.Postgres.User,
			Password:          cfg.Postgres.Password,
			DBName:            cfg.Postgres.DBName,
			MigrationsDirPath: cfg.Postgres.MigrationsPath,
		}
		repo, err := wallet.NewPostgresRepository(cred)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.RunMigrations(cred); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	}

	repo := wallet.NewMongoRepository(db)
	if err := repo.CreateIndexes(ctx); err != nil {
		return nil, nil, err
	}
	return repo, func() {}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
