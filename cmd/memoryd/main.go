// Command memoryd runs the semantic memory server: the remember/recall/
// forget/status RPC surface plus the background extraction workers that
// turn stored artifacts into semantic events (spec.md §1, §5).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sembank/memoryd/internal/config"
	"github.com/sembank/memoryd/internal/embedclient"
	"github.com/sembank/memoryd/internal/graph"
	"github.com/sembank/memoryd/internal/ingest"
	"github.com/sembank/memoryd/internal/limiter"
	"github.com/sembank/memoryd/internal/llmclient"
	"github.com/sembank/memoryd/internal/observability"
	"github.com/sembank/memoryd/internal/relstore"
	"github.com/sembank/memoryd/internal/retrieve"
	"github.com/sembank/memoryd/internal/rpc"
	"github.com/sembank/memoryd/internal/vectorstore"
	"github.com/sembank/memoryd/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "memoryd: config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.InitOTel(ctx, cfg.Obs)
	if err != nil {
		log.Fatal().Err(err).Msg("memoryd: otel init failed")
	}
	defer shutdownOTel(context.Background())

	pool, err := pgxpool.New(ctx, cfg.Rel.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("memoryd: pgxpool connect failed")
	}
	defer pool.Close()
	rel := relstore.New(pool)

	vec, err := vectorstore.NewQdrantStore(cfg.Vector.Host, cfg.Vector.Dimensions, cfg.Vector.Metric)
	if err != nil {
		log.Fatal().Err(err).Msg("memoryd: qdrant connect failed")
	}
	defer vec.Close()

	embedLimiter, err := limiter.New(cfg.ConcurrencyBackend, cfg.RedisAddr, cfg.Embed.MaxConcurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("memoryd: embed limiter init failed")
	}
	embed := embedclient.New(cfg.Embed, embedLimiter)

	llmProvider, err := llmclient.New(cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("memoryd: llm client init failed")
	}
	llmLimiter, err := limiter.New(cfg.ConcurrencyBackend, cfg.RedisAddr, cfg.LLM.MaxConcurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("memoryd: llm limiter init failed")
	}
	extractor := llmclient.NewExtractor(llmclient.WithLimiter(llmProvider, llmLimiter))

	resolver := graph.NewResolver(rel, vec, embed, extractor)
	coordinator := ingest.NewCoordinator(rel, vec, embed, cfg.Chunk)
	retrieveSvc := retrieve.NewService(vec, rel, embed)

	var publisher worker.CompletionPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = worker.NewKafkaPublisher(cfg.KafkaBrokers, "memoryd.job-completions")
		defer publisher.Close()
		log.Info().Strs("brokers", cfg.KafkaBrokers).Msg("memoryd: publishing job completions to kafka")
	}

	workerCount := workerCountFromEnv()
	workers := make([]*worker.Worker, workerCount)
	for i := range workers {
		wcfg := cfg.Worker
		if workerCount > 1 {
			wcfg.Identity = fmt.Sprintf("%s-%d", cfg.Worker.Identity, i)
		}
		workers[i] = worker.New(rel, vec, extractor, resolver, wcfg, publisher)
		go workers[i].Run(ctx)
	}
	go workers[0].ReapLoop(ctx, cfg.Worker.StaleLockThreshold)

	server := rpc.NewServer(coordinator, retrieveSvc, rel, vec)
	httpServer := &http.Server{
		Addr:         cfg.RPC.ListenAddr,
		Handler:      otelhttp.NewHandler(server, "memoryd"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.RPC.ListenAddr).Msg("memoryd: rpc server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("memoryd: rpc server failed")
	case <-ctx.Done():
		log.Info().Msg("memoryd: shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("memoryd: rpc server shutdown failed")
	}
	for _, w := range workers {
		w.Stop()
	}
	log.Info().Msg("memoryd: stopped")
}

func workerCountFromEnv() int {
	n, err := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	if err != nil || n <= 0 {
		return 2
	}
	return n
}
