package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/promptlab/promptlab/internal/analyzer"
	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/config"
	"github.com/promptlab/promptlab/internal/database"
	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/queue"
	"github.com/promptlab/promptlab/internal/queue/workers"
	"github.com/promptlab/promptlab/internal/store"
	"github.com/promptlab/promptlab/internal/tester"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// The worker persists analysis and test results, so it requires the
	// database; an in-memory store would throw the work away.
	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.NewPostgres(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	var summaryCache *cache.Cache
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis cache unavailable", "error", err)
	} else {
		summaryCache = cache.NewCache(rdb)
	}

	gateway := llm.NewGateway(cfg.LLM)
	analyzerSvc := analyzer.New(gateway, st, cfg.LLM.AnalysisModel, logger)
	testerSvc := tester.New(gateway, st, cfg.LLM.DefaultModel, cfg.LLM.AnalysisModel, logger)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	analysisWorker := workers.NewAnalysisWorker(analyzerSvc, summaryCache)
	testRunWorker := workers.NewTestRunWorker(testerSvc, summaryCache)

	registry.Register(queue.TypeAnalysisRun, asynq.HandlerFunc(analysisWorker.ProcessTask))
	registry.Register(queue.TypeTestsRun, asynq.HandlerFunc(testRunWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
