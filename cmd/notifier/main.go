package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	"github.com/ariefcatur/go-concert-tickets/internal/config"
	kafkax "github.com/ariefcatur/go-concert-tickets/internal/kafka"
	"github.com/ariefcatur/go-concert-tickets/internal/notify"
	"github.com/ariefcatur/go-concert-tickets/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Redis:       rdb,
		Mailer:      notify.LogMailer{Logger: slog.Default()},
		ServiceName: cfg.ServiceName + "-notifier",
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, concerts.TopicOrderPlaced, cfg.NotifierWorkers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("notifier consumer started",
			"group", cfg.NotifierGroup, "topic", concerts.TopicOrderPlaced, "workers", cfg.NotifierWorkers)
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			slog.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	slog.Info("shutting down consumer")
	cancel()
	wg.Wait()
}
