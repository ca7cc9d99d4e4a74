package main // consumer appends every scheduling event to the activity log

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/iliyamo/service-scheduling/internal/config"
	"github.com/iliyamo/service-scheduling/internal/logger"
	"github.com/iliyamo/service-scheduling/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("load config")
	}
	logger.Init("activity-consumer", cfg.LogLevel)
	if cfg.RabbitURL == "" {
		logger.Log.Fatal("RABBITMQ_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{
		URL:      cfg.RabbitURL,
		Exchange: cfg.EventsExchange,
		Queue:    cfg.ActivityQueue,
		LogPath:  cfg.ActivityLog,
	}
	logger.Log.Infof("consuming %s into %s", cfg.EventsExchange, cfg.ActivityLog)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.WithError(err).Fatal("consumer stopped")
	}
}
