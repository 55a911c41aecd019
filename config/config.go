package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

// Pricing tunables. Each can be overridden through the environment.
const (
	// DampingFactor is the share of the cost-to-median headroom the baseline
	// price may move in one optimization.
	DampingFactor = 0.40
	// MarketPositionTolerance is the band around the competitor median that
	// still counts as "competitive".
	MarketPositionTolerance = 0.03
	// UnitVolumeBaseline is the assumed unit volume used to turn a per-unit
	// price change into an expected profit change. It is an estimate.
	UnitVolumeBaseline = 100
	// MatchThreshold is the minimum token overlap score for a fuzzy match.
	MatchThreshold = 0.6
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseDriver   string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MaxConcurrency int
	RateLimitMs    int
	StoreRPS       float64
	MaxRetries     int
	RetryBaseDelay time.Duration
	FetchTimeout   time.Duration
	ChromeBin      string
	StoresFile     string
	SearchTerms    []string

	CatalogCSV string
	OutputDir  string
	LogLevel   string

	InsightProvider string
	OllamaHost      string
	OllamaModel     string
	InsightTimeout  time.Duration

	OptimizeConcurrency     int
	MinMarginPercent        float64
	MaxPriceIncreasePercent float64
	PsychologicalPricing    bool
	CacheMaxAge             time.Duration

	DampingFactor           float64
	MarketPositionTolerance float64
	UnitVolumeBaseline      float64
	MatchThreshold          float64

	OTLPEndpoint string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DatabaseDriver:   getEnv("DATABASE_DRIVER", "sqlite"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getEnv("POSTGRES_DB", "priceoptim"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "./priceoptim.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 500),
		StoreRPS:       getEnvFloat("STORE_RPS", 0.6),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay: time.Duration(getEnvInt("RETRY_BASE_DELAY_MS", 1000)) * time.Millisecond,
		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 25*time.Second),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		StoresFile:     getEnv("STORES_FILE", ""),
		SearchTerms:    getEnvList("SEARCH_TERMS", DefaultSearchTerms),

		CatalogCSV: getEnv("CATALOG_CSV", ""),
		OutputDir:  getEnv("OUTPUT_DIR", "./output"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		InsightProvider: getEnv("INSIGHT_PROVIDER", "none"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:     getEnv("OLLAMA_MODEL", "gemma3:4b"),
		InsightTimeout:  getEnvDuration("INSIGHT_TIMEOUT", 20*time.Second),

		OptimizeConcurrency:     getEnvInt("OPTIMIZE_CONCURRENCY", 4),
		MinMarginPercent:        getEnvFloat("MIN_MARGIN_PERCENT", 40),
		MaxPriceIncreasePercent: getEnvFloat("MAX_PRICE_INCREASE_PERCENT", 20),
		PsychologicalPricing:    getEnvBool("PSYCHOLOGICAL_PRICING", false),
		CacheMaxAge:             getEnvDuration("CACHE_MAX_AGE", 24*time.Hour),

		DampingFactor:           getEnvFloat("DAMPING_FACTOR", DampingFactor),
		MarketPositionTolerance: getEnvFloat("MARKET_POSITION_TOLERANCE", MarketPositionTolerance),
		UnitVolumeBaseline:      getEnvFloat("UNIT_VOLUME_BASELINE", UnitVolumeBaseline),
		MatchThreshold:          getEnvFloat("MATCH_THRESHOLD", MatchThreshold),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Constraints returns the default optimization constraints.
func (c *Config) Constraints() models.Constraints {
	return models.Constraints{
		MinMarginPercent:        c.MinMarginPercent,
		MaxPriceIncreasePercent: c.MaxPriceIncreasePercent,
		PsychologicalPricing:    c.PsychologicalPricing,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return append([]string(nil), fallback...)
	}
	return SplitList(val)
}

// SplitList splits a comma separated value, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
