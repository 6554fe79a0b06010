package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"craft-pricer/internal/cache"
	"craft-pricer/internal/config"
	"craft-pricer/internal/db"
	"craft-pricer/internal/engine"
	"craft-pricer/internal/jobs"
	"craft-pricer/internal/logger"
	"craft-pricer/internal/pipeline"
)

var version = "dev"

func main() {
	once := flag.Bool("once", false, "run one evaluation sweep and one pipeline pass, then exit")
	flag.Parse()

	logger.Banner(version)
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	// Idempotency marks live in sqlite unless a redis address is configured.
	var marks pipeline.MarkStore = database
	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(context.Background(), cfg.RedisAddr)
		if err != nil {
			logger.Error("CACHE", fmt.Sprintf("Redis unavailable: %v", err))
			os.Exit(1)
		}
		defer redisStore.Close()
		marks = redisStore
		logger.Info("CACHE", fmt.Sprintf("Using redis marks at %s", cfg.RedisAddr))
	}

	resolver := engine.NewResolver(database, cfg.BatchConcurrency, cfg.ObservationLimit)
	job := &jobs.EvaluationJob{
		Store:     database,
		Scanner:   engine.NewScanner(resolver, database),
		Evaluator: engine.NewEvaluator(resolver, database, database),
		MinMargin: cfg.MinMargin,
		MinProfit: cfg.MinProfit,
	}
	classifier := &pipeline.Pipeline{
		Catalog: database,
		Marks:   marks,
		TTL:     cfg.MarkTTL,
		Enabled: cfg.PipelineStages,
	}

	logger.Stats("Database", cfg.DBPath)
	logger.Stats("Scan interval", cfg.ScanInterval)
	logger.Stats("Pipeline interval", cfg.PipelineInterval)
	if len(cfg.PipelineStages) > 0 {
		logger.Stats("Pipeline stages", strings.Join(cfg.PipelineStages, ","))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := job.RunOnce(ctx); err != nil {
			logger.Error("EVAL", fmt.Sprintf("Run failed: %v", err))
		}
		if _, err := classifier.Run(ctx); err != nil {
			logger.Error("CLASS", fmt.Sprintf("Run failed: %v", err))
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		job.Start(ctx, cfg.ScanInterval)
	}()
	go func() {
		defer wg.Done()
		runPipelineLoop(ctx, classifier, cfg.PipelineInterval)
	}()

	<-ctx.Done()
	logger.Info("MAIN", "Shutting down")
	wg.Wait()
}

// runPipelineLoop runs the classifier immediately, then on every tick
// until ctx is cancelled.
func runPipelineLoop(ctx context.Context, p *pipeline.Pipeline, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.Run(ctx); err != nil {
			logger.Error("CLASS", fmt.Sprintf("Run failed: %v", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
