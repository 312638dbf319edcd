package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/marketplace-core/internal/config"
	kafkax "github.com/ariefcatur/marketplace-core/internal/kafka"
	"github.com/ariefcatur/marketplace-core/internal/logging"
	"github.com/ariefcatur/marketplace-core/internal/metrics"
	"github.com/ariefcatur/marketplace-core/internal/orders"
	"github.com/ariefcatur/marketplace-core/internal/projector"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
)

const serviceName = "projector"

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
	logger := base.WithField("service", cfg.ServiceName+"-"+serviceName)

	if cfg.EventsBackend != config.EventsBackendKafka {
		logger.WithField("events_backend", cfg.EventsBackend).Fatal("projector consumes kafka topics only")
	}
	if cfg.RedisAddr == "" {
		logger.Fatal("projector needs REDIS_ADDR")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Summaries: &redisx.SellerSummaries{Redis: rdb},
		Metrics:   metrics.New(),
		Log:       logger,
	}

	topics := []string{orders.TopicOrderCreated, orders.TopicOrderStatusChanged}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, topics, cfg.ProjectorWorkers, logger)

	done := make(chan error, 1)
	go func() {
		logger.WithFields(log.Fields{
			"group":   cfg.ProjectorGroup,
			"topics":  topics,
			"workers": cfg.ProjectorWorkers,
		}).Info("projector consumer started")
		err := cons.Start(ctx, svc.HandleOrderEvent)
		cancel()
		done <- err
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	if err := <-done; err != nil {
		// Uncommitted offsets are redelivered once the process is restarted.
		logger.WithError(err).Fatal("consumer stopped")
	}
}
