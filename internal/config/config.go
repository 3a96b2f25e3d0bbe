// Package config loads the memory server's process-wide configuration from
// the environment, overlaid on an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully resolved, process-wide configuration.
type Config struct {
	LogLevel string

	RPC    RPCConfig
	Rel    RelConfig
	Vector VectorConfig
	Embed  EmbedConfig
	LLM    LLMConfig
	Chunk  ChunkConfig
	Worker WorkerConfig
	Obs    ObsConfig

	ConcurrencyBackend string // "" | "redis"
	RedisAddr          string
	KafkaBrokers       []string
}

type RPCConfig struct {
	ListenAddr string
}

type RelConfig struct {
	DSN      string
	PoolMin  int32
	PoolMax  int32
}

type VectorConfig struct {
	Host          string
	Dimensions    int
	Metric        string
	ContentColl   string
	ChunksColl    string
	EntityColl    string
}

type EmbedConfig struct {
	Provider   string // "openai"
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
	RetryMax   int
	BatchSize  int
	MaxConcurrency int
}

type LLMConfig struct {
	Provider  string // "openai" | "anthropic" | "google"
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	RetryMax  int
	MaxConcurrency int
}

type ChunkConfig struct {
	SinglePieceMax int
	Target         int
	Overlap        int
}

type WorkerConfig struct {
	Identity           string
	PollInterval       time.Duration
	MaxAttempts        int
	StaleLockThreshold time.Duration
}

type ObsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
}

// Load reads configuration from environment variables, overlaying any
// .env file present in the working directory. Unset keys take documented
// defaults, applied after the environment pass.
func Load() (Config, error) {
	_ = godotenv.Overload()

	var cfg Config
	cfg.LogLevel = strings.ToLower(firstNonEmpty(getenv("LOG_LEVEL"), "info"))

	cfg.RPC.ListenAddr = firstNonEmpty(getenv("RPC_LISTEN_ADDR"), ":8080")

	cfg.Rel.DSN = getenv("RELSTORE_DSN")
	cfg.Rel.PoolMin = int32(getenvInt("RELSTORE_POOL_MIN", 0))
	cfg.Rel.PoolMax = int32(getenvInt("RELSTORE_POOL_MAX", 8))

	cfg.Vector.Host = firstNonEmpty(getenv("VECTORSTORE_HOST"), "http://localhost:6334")
	cfg.Vector.Dimensions = getenvInt("VECTOR_DIMENSIONS", 3072)
	cfg.Vector.Metric = firstNonEmpty(getenv("VECTOR_METRIC"), "cosine")
	cfg.Vector.ContentColl = firstNonEmpty(getenv("VECTOR_COLLECTION_CONTENT"), "content")
	cfg.Vector.ChunksColl = firstNonEmpty(getenv("VECTOR_COLLECTION_CHUNKS"), "chunks")
	cfg.Vector.EntityColl = firstNonEmpty(getenv("VECTOR_COLLECTION_ENTITY"), "entity")

	cfg.Embed.Provider = firstNonEmpty(getenv("EMBEDDING_PROVIDER"), "openai")
	cfg.Embed.APIKey = getenv("EMBEDDING_API_KEY")
	cfg.Embed.BaseURL = getenv("EMBEDDING_BASE_URL")
	cfg.Embed.Model = firstNonEmpty(getenv("EMBEDDING_MODEL"), "text-embedding-3-large")
	cfg.Embed.Dimensions = getenvInt("EMBEDDING_DIMENSIONS", cfg.Vector.Dimensions)
	cfg.Embed.Timeout = getenvDuration("EMBEDDING_TIMEOUT_SECONDS", 30*time.Second)
	cfg.Embed.RetryMax = getenvInt("EMBEDDING_RETRY_COUNT", 3)
	cfg.Embed.BatchSize = getenvInt("EMBEDDING_BATCH_SIZE", 100)
	cfg.Embed.MaxConcurrency = getenvInt("EMBEDDING_MAX_CONCURRENCY", 4)

	cfg.LLM.Provider = firstNonEmpty(getenv("LLM_PROVIDER"), "openai")
	cfg.LLM.APIKey = getenv("LLM_API_KEY")
	cfg.LLM.BaseURL = getenv("LLM_BASE_URL")
	cfg.LLM.Model = firstNonEmpty(getenv("LLM_MODEL"), "gpt-4.1-mini")
	cfg.LLM.Timeout = getenvDuration("LLM_TIMEOUT_SECONDS", 120*time.Second)
	cfg.LLM.RetryMax = getenvInt("LLM_RETRY_COUNT", 3)
	cfg.LLM.MaxConcurrency = getenvInt("LLM_MAX_CONCURRENCY", 4)

	cfg.Chunk.SinglePieceMax = getenvInt("SINGLE_PIECE_MAX", 1200)
	cfg.Chunk.Target = getenvInt("CHUNK_TARGET", 900)
	cfg.Chunk.Overlap = getenvInt("CHUNK_OVERLAP", 100)

	cfg.Worker.Identity = firstNonEmpty(getenv("WORKER_IDENTITY"), defaultWorkerIdentity())
	cfg.Worker.PollInterval = getenvDuration("WORKER_POLL_INTERVAL_MS", 1000*time.Millisecond, true)
	cfg.Worker.MaxAttempts = getenvInt("EVENT_MAX_ATTEMPTS", 5)
	cfg.Worker.StaleLockThreshold = getenvDuration("STALE_LOCK_THRESHOLD_SECONDS", 300*time.Second)

	cfg.Obs.ServiceName = firstNonEmpty(getenv("OTEL_SERVICE_NAME"), "memoryd")
	cfg.Obs.ServiceVersion = firstNonEmpty(getenv("OTEL_SERVICE_VERSION"), "dev")
	cfg.Obs.Environment = firstNonEmpty(getenv("ENVIRONMENT"), "development")
	cfg.Obs.OTLPEndpoint = getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	cfg.ConcurrencyBackend = strings.ToLower(getenv("CONCURRENCY_BACKEND"))
	cfg.RedisAddr = getenv("REDIS_ADDR")
	if brokers := getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.Rel.DSN == "" {
		return cfg, fmt.Errorf("config: RELSTORE_DSN is required")
	}
	return cfg, nil
}

func getenv(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func getenvInt(key string, def int) int {
	v := getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getenvDuration reads a duration-valued key. By default the env value is
// seconds; pass millis=true for keys documented in milliseconds.
func getenvDuration(key string, def time.Duration, millis ...bool) time.Duration {
	v := getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if len(millis) > 0 && millis[0] {
		return time.Duration(n) * time.Millisecond
	}
	return time.Duration(n) * time.Second
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultWorkerIdentity() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
