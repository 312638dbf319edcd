package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/marketplace-core/internal/cart"
	"github.com/ariefcatur/marketplace-core/internal/catalog"
	"github.com/ariefcatur/marketplace-core/internal/config"
	"github.com/ariefcatur/marketplace-core/internal/domain"
	"github.com/ariefcatur/marketplace-core/internal/health"
	"github.com/ariefcatur/marketplace-core/internal/httpx"
	kafkax "github.com/ariefcatur/marketplace-core/internal/kafka"
	"github.com/ariefcatur/marketplace-core/internal/logging"
	"github.com/ariefcatur/marketplace-core/internal/memory"
	"github.com/ariefcatur/marketplace-core/internal/metrics"
	"github.com/ariefcatur/marketplace-core/internal/orders"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
	"github.com/ariefcatur/marketplace-core/internal/rabbitmq"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	base, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.WithError(err).Fatal("logger")
	}
	logger := base.WithField("service", cfg.ServiceName)
	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := health.NewHandler(cfg.ServiceName)

	// Store
	var store domain.Store
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		store = memory.NewStore()
		logger.Warn("using in-memory store, data is lost on restart")
	default:
		if cfg.RunMigrations {
			if err := postgres.RunMigrations(cfg.PostgresDSN, logger); err != nil {
				logger.WithError(err).Fatal("migrate")
			}
		}
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			logger.WithError(err).Fatal("db connect")
		}
		defer pool.Close()
		store = postgres.NewStore(pool)
	}
	ready.Register("store", health.NewPingChecker("store", store.Ping))

	if cfg.CatalogSeedFile != "" {
		products, err := catalog.LoadFile(cfg.CatalogSeedFile)
		if err != nil {
			logger.WithError(err).Fatal("catalog seed")
		}
		if err := catalog.Seed(ctx, store.Products(), products, logger); err != nil {
			logger.WithError(err).Fatal("catalog seed")
		}
	}

	orderSvc := &orders.Service{
		Store:       store,
		Metrics:     m,
		Log:         logger.WithField("component", "orders"),
		ServiceName: cfg.ServiceName,
	}

	// Redis
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		orderSvc.Cache = &redisx.OrderCache{Redis: rdb}
		orderSvc.Idempotency = &redisx.CheckoutKeys{Redis: rdb}
		orderSvc.Summaries = &redisx.SellerSummaries{Redis: rdb}
		ready.Register("redis", health.NewPingChecker("redis", redisx.Pinger{Client: rdb}.Ping))
	} else {
		logger.Info("redis disabled: no order cache, idempotency keys or summary projection")
	}

	// Events
	var shutdownEvents func()
	switch cfg.EventsBackend {
	case config.EventsBackendKafka:
		pub, stop := kafkaPublisher(ctx, cfg.KafkaBrokers, logger)
		orderSvc.Publisher = pub
		shutdownEvents = stop
	case config.EventsBackendRabbitMQ:
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			logger.WithError(err).Fatal("amqp dial")
		}
		pub, err := rabbitmq.NewPublisher(conn)
		if err != nil {
			logger.WithError(err).Fatal("amqp publisher")
		}
		orderSvc.Publisher = pub
		shutdownEvents = func() {
			_ = pub.Close()
			_ = conn.Close()
		}
	default:
		logger.Info("event publishing disabled")
	}

	// HTTP
	router := httpx.NewRouter(logger)
	router.Get("/readyz", ready.Ready)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/api", func(r chi.Router) {
		(&httpx.CartHandler{
			Service: &cart.Service{Store: store, Metrics: m, Log: logger.WithField("component", "cart")},
			Timeout: cfg.RequestTimeout,
			Log:     logger,
		}).Register(r)
		(&httpx.OrdersHandler{Service: orderSvc, Timeout: cfg.RequestTimeout, Log: logger}).Register(r)
		(&httpx.ProductsHandler{Catalog: store.Products(), Timeout: cfg.RequestTimeout, Log: logger}).Register(r)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	// Requests are drained, so nothing publishes anymore.
	if shutdownEvents != nil {
		shutdownEvents()
	}
}

// kafkaPublisher starts one producer per order topic. The returned func
// flushes and closes them.
func kafkaPublisher(ctx context.Context, brokers []string, logger *log.Entry) (*orders.KafkaPublisher, func()) {
	topics := []string{orders.TopicOrderCreated, orders.TopicOrderStatusChanged}
	pub := &orders.KafkaPublisher{Topics: make(map[string]orders.MessagePublisher, len(topics))}
	producers := make([]*kafkax.Producer, 0, len(topics))
	for _, t := range topics {
		p := kafkax.NewProducer(brokers, t, 1024, logger.WithField("topic", t))
		p.Start(ctx)
		pub.Topics[t] = p
		producers = append(producers, p)
	}
	return pub, func() {
		for _, p := range producers {
			p.Close()
		}
		for _, p := range producers {
			p.WaitClosed()
		}
	}
}
