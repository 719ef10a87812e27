package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-concert-tickets/internal/billing"
	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	"github.com/ariefcatur/go-concert-tickets/internal/config"
	"github.com/ariefcatur/go-concert-tickets/internal/jobs"
	"github.com/ariefcatur/go-concert-tickets/internal/postgres"
	"github.com/hibiken/asynq"
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

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		slog.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// the sweeper never charges; the gateway only satisfies the constructor
	svc := concerts.NewService(postgres.NewStore(db), billing.NewFakePaymentGateway())

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{"default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			slog.ErrorContext(ctx, "task failed", "type", t.Type(), "err", err)
		}),
	})

	mux := asynq.NewServeMux()
	(&jobs.Handlers{Releaser: svc}).Register(mux)

	scheduler := asynq.NewScheduler(redisOpt, nil)
	if err := jobs.Schedule(scheduler, cfg.SweepSchedule, cfg.ReservationTTL); err != nil {
		slog.Error("schedule sweep", "err", err)
		os.Exit(1)
	}

	if err := srv.Start(mux); err != nil {
		slog.Error("asynq server", "err", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		slog.Error("asynq scheduler", "err", err)
		os.Exit(1)
	}
	slog.Info("worker started",
		"concurrency", cfg.WorkerConcurrency, "sweep", cfg.SweepSchedule, "reservation_ttl", cfg.ReservationTTL.String())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down worker")
	scheduler.Shutdown()
	srv.Shutdown()
}
