package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"freelancehub/config"
	mqcontracts "freelancehub/contracts/mq"
	"freelancehub/internal/mqhandler"
	"freelancehub/internal/roadmap"
	"freelancehub/internal/storage/postgres"
	pkgconfig "freelancehub/pkg/config"
	"freelancehub/pkg/db"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/mq"
	"freelancehub/pkg/otel"
	redisclient "freelancehub/pkg/redis"
	"freelancehub/pkg/util"
)

const completionQueue = "freelancehub.project_completion"

func main() {
	cfg := config.Load()
	cfg.Otel.ServiceName += "-worker"

	log := logger.New(cfg.Log)
	defer log.Sync()

	log.Info("Starting worker...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("redis_addr", cfg.Redis.Addr),
	)

	shutdownTracing, err := otel.Init(cfg.Otel, pkgconfig.GetConfigEnv(), log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownTracing()

	// DB
	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	store := postgres.New(pool, log)
	defer store.Close()

	// Redis 去重 + 重试计数
	rdb, err := redisclient.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()
	deduper := util.NewDeduper(rdb, 24*time.Hour, log)
	retryCounter := util.NewRetryCounter(rdb, 24*time.Hour)

	// DLQ publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	engine := roadmap.NewEngine(store, log)
	completion := mqhandler.NewProjectCompletionHandler(engine, deduper, retryCounter, publisher, log)

	consumer, err := mq.NewConsumer(cfg.MQ.URL, completionQueue, mqcontracts.RoutingMilestoneStatusChanged, log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(completion.Handle)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.StartConsuming(ctx)
	})

	// health + metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              pkgconfig.GetEnv("WORKER_HTTP_PORT", ":8081"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info("Worker HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("Worker is running", zap.String("queue", completionQueue))
	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", zap.Error(err))
		return
	}
	log.Info("Worker shutdown complete")
}
