package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort  string
	LogLevel string

	StorageRoot      string
	LegacyRoots      []string
	GlobalIndexPath  string
	MarketingDomains []string

	PostgresDSN              string
	MarketingDomainsCacheTTL time.Duration

	PipelineInterpreter string
	PipelineScript      string
	PipelineWorkDir     string
	PipelineTimeout     time.Duration
	RebuildCooldown     time.Duration

	NATSURL     string
	NATSSubject string

	ChatDefaultLocale  string
	ChatTemplatesFile  string
	ChatResponderURL   string
	ChatResponderModel string
	ChatResponderTTL   time.Duration

	RetryMaxAttempts int
	BreakerEnabled   bool

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIQueueTimeout   time.Duration

	IndexWatchEnabled bool

	WorkerMetricsPort string
}

// Load reads the environment after merging a .env file from the working
// directory when one exists. Variables already set take precedence.
func Load() Config {
	loadDotEnv(".env")

	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		StorageRoot:      mustEnv("KB_STORAGE_ROOT", "./data/rag-chatbot/domains"),
		LegacyRoots:      mustEnvList("KB_LEGACY_ROOTS", nil),
		GlobalIndexPath:  mustEnv("KB_GLOBAL_INDEX_PATH", "./data/rag-chatbot/index.json"),
		MarketingDomains: mustEnvList("KB_MARKETING_DOMAINS", nil),

		PostgresDSN:              mustEnv("POSTGRES_DSN", ""),
		MarketingDomainsCacheTTL: mustEnvDuration("MARKETING_DOMAINS_CACHE_TTL", time.Minute),

		PipelineInterpreter: mustEnv("PIPELINE_INTERPRETER", "python3"),
		PipelineScript:      mustEnv("PIPELINE_SCRIPT", "rag_chatbot/scripts/build_index.py"),
		PipelineWorkDir:     mustEnv("PIPELINE_WORKDIR", "."),
		PipelineTimeout:     mustEnvDuration("PIPELINE_TIMEOUT", 10*time.Minute),
		RebuildCooldown:     mustEnvDuration("REBUILD_COOLDOWN", 300*time.Second),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "kb.index.rebuild"),

		ChatDefaultLocale:  mustEnv("CHAT_DEFAULT_LOCALE", "de"),
		ChatTemplatesFile:  mustEnv("CHAT_TEMPLATES_FILE", ""),
		ChatResponderURL:   mustEnv("CHAT_RESPONDER_URL", ""),
		ChatResponderModel: mustEnv("CHAT_RESPONDER_MODEL", "llama3.1:8b"),
		ChatResponderTTL:   mustEnvDuration("CHAT_RESPONDER_TIMEOUT", 30*time.Second),

		RetryMaxAttempts: mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
		BreakerEnabled:   mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIQueueTimeout:   mustEnvDuration("API_QUEUE_TIMEOUT", 250*time.Millisecond),

		IndexWatchEnabled: mustEnvBool("INDEX_WATCH_ENABLED", true),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return
	}
	_ = godotenv.Load(path)
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go duration strings and bare integers as seconds.
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	parts := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
