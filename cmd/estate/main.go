package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/estate/adapters/chain"
	"github.com/layer-3/estate/adapters/events"
	"github.com/layer-3/estate/adapters/signature"
	"github.com/layer-3/estate/adapters/store"
	"github.com/layer-3/estate/adapters/tokenizer"
	"github.com/layer-3/estate/config"
	"github.com/layer-3/estate/logging"
	"github.com/layer-3/estate/ports"
	"github.com/layer-3/estate/service"
	transport "github.com/layer-3/estate/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("estate", logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})

	if err := run(cfg, logger); err != nil {
		logger.Error("estate stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session keys live for the process lifetime; tokens do not survive a restart
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	wmLogger := watermill.NewSlogLogger(logger.With("component", "watermill"))

	var (
		challenges ports.ChallengeStore
		publisher  message.Publisher
		durable    bool
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			return err
		}
		challenges = store.NewRedisStore(redisClient)
		durable = true
		logger.Info("using redis for challenges and events")
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		challenges = store.NewMemoryStore(store.DefaultSweepInterval)
		// Nothing consumes the in-process channel, so deployed addresses are
		// not handed to a registry and deployments report recorded=false
		logger.Warn("REDIS_URL not set, challenges and events stay in process and deployments are not recorded")
	}
	defer challenges.Close()
	defer publisher.Close()

	client, err := chain.Dial(ctx, chain.Config{
		RPCURL:              cfg.Chain.RPCURL,
		FactoryAddress:      cfg.Chain.FactoryAddress,
		PaymentTokenAddress: cfg.Chain.PaymentTokenAddress,
		AdminPrivateKey:     cfg.Chain.AdminPrivateKey,
		ChainID:             cfg.Chain.ChainIDBig(),
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.Admin(); err != nil {
		logger.Warn("no backend key configured, admin operations disabled")
	} else {
		logger.Info("admin signer configured", "address", client.AdminAddress().Hex())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(registry)

	eventPub := events.NewWatermillPublisher(publisher)
	var recorder ports.DeploymentRecorder
	if durable {
		recorder = eventPub
	}

	authService := service.NewAuthService(
		challenges,
		signature.NewPersonalSignVerifier(),
		tokenizer.NewJWTTokenizer(privateKey),
		service.WithChallengeTTL(cfg.Auth.ChallengeTTL.Duration),
		service.WithAccessTTL(cfg.Auth.AccessTTL.Duration),
		service.WithAuthLogger(logger),
		service.WithAuthMetrics(metrics),
	)
	propertyService := service.NewPropertyService(client, logger)
	settlementService := service.NewSettlementService(client, recorder, eventPub, service.SettlementOptions{
		ConfirmTimeout: cfg.Chain.ConfirmTimeout.Duration,
		Logger:         logger,
		Metrics:        metrics,
	})

	gin.SetMode(gin.ReleaseMode)
	router := transport.SetupRouter(transport.RouterConfig{
		AuthService:         authService,
		Properties:          propertyService,
		Settlement:          settlementService,
		Admins:              cfg.Admins,
		DefaultPaymentToken: cfg.Chain.PaymentTokenAddress,
		Metrics:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:              logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
