// Command server runs the attestry registry: identity lifecycle, issuer
// authorization, and credential lifecycle behind an HTTP surface.
//
// main wires dependencies and keeps the server lifecycle small; business
// logic lives in the internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"attestry/internal/platform/config"
	"attestry/internal/platform/httpserver"
	"attestry/internal/platform/kafka"
	"attestry/internal/platform/logger"
	"attestry/internal/platform/middleware"
	platformredis "attestry/internal/platform/redis"
	registryhandler "attestry/internal/registry/handler"
	registrymetrics "attestry/internal/registry/metrics"
	"attestry/internal/registry/service"
	memorystore "attestry/internal/registry/store/memory"
	postgresstore "attestry/internal/registry/store/postgres"
	"attestry/internal/registry/store/rediscache"
	httptransport "attestry/internal/transport/http"
	id "attestry/pkg/domain"
	"attestry/pkg/platform/events"
	eventsmemory "attestry/pkg/platform/events/store/memory"
	eventsworker "attestry/pkg/platform/events/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	owner, err := id.ParseAccountID(cfg.Auth.Owner)
	if err != nil {
		return err
	}

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		identities  service.IdentityStore
		credentials service.CredentialStore
		issuers     service.IssuerStore
	)
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		store := postgresstore.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		identities, credentials, issuers = store, store, store
		log.Info("using postgres stores")
	} else {
		identities = memorystore.NewIdentityStore()
		credentials = memorystore.NewCredentialStore()
		issuers = memorystore.NewIssuerStore()
		log.Info("using in-memory stores")
	}

	// Optional identity read cache.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		identities = rediscache.NewIdentityCache(identities, redisClient.Client, cfg.Redis.CacheTTL, log)
		log.Info("identity read cache enabled")
	}

	// Notifications: journal always; Kafka stream when brokers configured.
	publisherOpts := []events.Option{events.WithLogger(log)}
	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
		publisherOpts = append(publisherOpts, events.WithStream(1024))
	}
	publisher := events.NewPublisher(eventsmemory.NewInMemoryStore(), publisherOpts...)

	metrics := registrymetrics.New()
	registry := service.NewService(owner, identities, credentials, issuers, publisher,
		service.WithLogger(log),
		service.WithMetrics(metrics),
	)
	if err := registry.Bootstrap(ctx); err != nil {
		return err
	}

	auth := middleware.RequireAuth(cfg.Auth.JWTSigningKey, log)
	handler := registryhandler.New(registry, log, metrics, auth)
	router := httptransport.NewRouter(log, handler)
	srv := httpserver.New(cfg.Server.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting attestry registry", "addr", cfg.Server.Addr, "owner", owner.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if producer != nil {
		group.Go(func() error {
			err := eventsworker.NewWorker(producer, publisher.Stream(), log).Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
