package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"freelancehub/config"
	"freelancehub/internal/generator"
	"freelancehub/internal/handler"
	"freelancehub/internal/httpserver"
	"freelancehub/internal/identity"
	"freelancehub/internal/project"
	"freelancehub/internal/roadmap"
	"freelancehub/internal/storage"
	"freelancehub/internal/storage/memory"
	"freelancehub/internal/storage/postgres"
	pkgconfig "freelancehub/pkg/config"
	"freelancehub/pkg/db"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/mq"
	"freelancehub/pkg/otel"
	"freelancehub/pkg/outbox"
	redisclient "freelancehub/pkg/redis"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Log)
	defer log.Sync()

	if cfg.JWT.Secret == "" {
		log.Fatal("JWT secret is not configured (set JWT_SECRET)")
	}

	shutdownTracing, err := otel.Init(cfg.Otel, pkgconfig.GetConfigEnv(), log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var (
		store       storage.Store
		revocations identity.Revocations
	)

	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("Using in-memory storage; data is lost on restart and events are not published")
		store = memory.New()
		revocations = identity.NewMemoryRevocations()

	case "postgres":
		pool, err := db.NewConnection(cfg.DB, log)
		if err != nil {
			log.Fatal("DB initialization failed", zap.Error(err))
		}
		store = postgres.New(pool, log)

		rdb, err := redisclient.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()
		revocations = identity.NewRedisRevocations(rdb)

		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer publisher.Close()

		dispatcher := outbox.NewDispatcher(outbox.NewRepository(pool), publisher, log)
		g.Go(func() error {
			dispatcher.Start(ctx)
			return nil
		})

	default:
		log.Fatal("Unknown storage driver", zap.String("driver", cfg.Storage.Driver))
	}
	defer store.Close()

	// Services
	tokens := identity.NewTokenIssuer(cfg.JWT.Secret, pkgconfig.ParseDuration(cfg.JWT.TTL, 24*time.Hour))
	identitySvc := identity.NewService(store, tokens, revocations, log)
	projectSvc := project.NewService(store, cfg.App.BaseURL, log)
	engine := roadmap.NewEngine(store, log)
	agent := generator.NewAgentClient(cfg.Agent.URL, pkgconfig.ParseDuration(cfg.Agent.Timeout, 60*time.Second), log)
	gen := generator.New(agent, store, engine, log)

	router := httpserver.NewRouter(httpserver.Deps{
		Auth:       handler.NewAuthHandler(identitySvc, projectSvc, log),
		Projects:   handler.NewProjectHandler(projectSvc, log),
		Milestones: handler.NewMilestoneHandler(engine, gen, log),
		Resolver:   identitySvc,
		Ready:      store,
		Logger:     log,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Trace-ID"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           corsHandler.Handler(router.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("Starting HTTP server",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return
	}
	log.Info("Server shutdown complete")
}
