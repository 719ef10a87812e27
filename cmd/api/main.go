package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/billing"
	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	"github.com/ariefcatur/go-concert-tickets/internal/config"
	"github.com/ariefcatur/go-concert-tickets/internal/httpx"
	kafkax "github.com/ariefcatur/go-concert-tickets/internal/kafka"
	"github.com/ariefcatur/go-concert-tickets/internal/postgres"
	"github.com/ariefcatur/go-concert-tickets/internal/redisx"
	"github.com/ariefcatur/go-concert-tickets/internal/telemetry"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
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

	shutdownTracing := telemetry.Setup(cfg.ServiceName, cfg.OTLPEndpoint, cfg.OTLPInsecure)

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		slog.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			slog.Error("migrate", "err", err)
			os.Exit(1)
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, concerts.TopicOrderPlaced, 1024)
	prod.Start(ctx)

	gateway, err := paymentGateway(cfg)
	if err != nil {
		slog.Error("payment gateway", "err", err)
		os.Exit(1)
	}

	svc := concerts.NewService(postgres.NewStore(db), gateway,
		concerts.WithCache(redisx.NewConcertCache(rdb, cfg.ConcertCacheTTL)),
		concerts.WithIdempotency(redisx.NewIdempotency(rdb)),
		concerts.WithEvents(kafkax.NewOrderEvents(prod, cfg.ServiceName)),
	)

	router := httpx.NewRouter()
	(&httpx.ConcertsHandler{
		Service: svc,
		Limiter: httpx.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
	}).Register(router)
	(&httpx.BackstageHandler{
		Service:   svc,
		TokenHash: []byte(cfg.BackstageTokenHash),
	}).Register(router)
	if cfg.BackstageTokenHash == "" {
		slog.Warn("BACKSTAGE_TOKEN_HASH not set, backstage routes disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr, "payment_driver", cfg.PaymentDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	cancel()
	prod.WaitClosed()
	if err := shutdownTracing(ctx2); err != nil {
		slog.Warn("tracing shutdown", "err", err)
	}
}

func paymentGateway(cfg config.Config) (billing.PaymentGateway, error) {
	switch cfg.PaymentDriver {
	case "fake":
		slog.Warn("PAYMENT_DRIVER=fake: purchases are not charged, only the test token is accepted")
		return billing.NewFakePaymentGateway(), nil
	case "http":
		if cfg.PaymentGatewayURL == "" {
			return nil, errors.New("PAYMENT_GATEWAY_URL is required for the http driver")
		}
		return billing.NewHTTPGateway(cfg.PaymentGatewayURL, cfg.PaymentAPIKey, cfg.PaymentTimeout), nil
	default:
		return nil, fmt.Errorf("unknown PAYMENT_DRIVER %q", cfg.PaymentDriver)
	}
}
