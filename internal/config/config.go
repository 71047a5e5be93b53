package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// LLM providers
const (
	LLMProviderOpenAI    = "openai"    // built-in OpenAI-compatible HTTP client
	LLMProviderLangChain = "langchain" // langchaingo backend
)

// Config holds all configuration for the application
type Config struct {
	Store      StoreConfig
	PostgreSQL PostgreSQLConfig
	SQLite     SQLiteConfig
	Server     ServerConfig
	Retrieval  RetrievalConfig
	Logging    LoggingConfig
	LLM        LLMConfig
	OpenAI     OpenAIConfig
	Cache      CacheConfig
}

// StoreConfig selects the listing store backend
type StoreConfig struct {
	Driver      string
	AutoMigrate bool // create the postgres schema on startup
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, takes precedence over the fields below
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// SQLiteConfig holds the embedded database location
type SQLiteConfig struct {
	Path string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
}

// RetrievalConfig tunes the retrieval pipeline
type RetrievalConfig struct {
	DisplayLimit         int     // cap for plain semantic results
	FallbackDisplayLimit int     // cap once a fallback stage ran
	Oversample           int     // candidate pool = DisplayLimit * Oversample
	FuzzyThreshold       float64 // property type typo tolerance
	LocationSample       int     // distinct locations passed to informational answers
	PageLimit            int     // default page size for listing pages
	MaxPageLimit         int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LLMConfig selects the language model / embedding backend
type LLMConfig struct {
	Provider string
}

// OpenAIConfig holds OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey              string
	APIBase             string
	ChatModel           string // Model for extraction and answers
	ChatTemperature     float64
	ChatMaxTokens       int
	EmbeddingModel      string
	EmbeddingDimensions int
	BatchSize           int
	Timeout             int
	Enabled             bool
}

// CacheConfig configures the query embedding cache
type CacheConfig struct {
	LRUSize       int
	RedisAddr     string // empty disables redis
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	TTLSeconds    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			AutoMigrate: getEnvAsBool("STORE_AUTO_MIGRATE", true),
		},
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "mira"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "./data/mira.db"),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 7070),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Retrieval: RetrievalConfig{
			DisplayLimit:         getEnvAsInt("RETRIEVAL_DISPLAY_LIMIT", 5),
			FallbackDisplayLimit: getEnvAsInt("RETRIEVAL_FALLBACK_DISPLAY_LIMIT", 10),
			Oversample:           getEnvAsInt("RETRIEVAL_OVERSAMPLE", 5),
			FuzzyThreshold:       getEnvAsFloat("RETRIEVAL_FUZZY_THRESHOLD", 0.75),
			LocationSample:       getEnvAsInt("RETRIEVAL_LOCATION_SAMPLE", 10),
			PageLimit:            getEnvAsInt("PROPERTIES_PAGE_LIMIT", 10),
			MaxPageLimit:         getEnvAsInt("PROPERTIES_MAX_PAGE_LIMIT", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(getEnv("LLM_PROVIDER", LLMProviderOpenAI)),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			APIBase:             strings.TrimRight(getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"), "/"),
			ChatModel:           getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			ChatTemperature:     getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.7),
			ChatMaxTokens:       getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 1024),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 384),
			BatchSize:           getEnvAsInt("OPENAI_BATCH_SIZE", 100),
			Timeout:             getEnvAsInt("OPENAI_TIMEOUT", 30),
			Enabled:             getEnv("OPENAI_API_KEY", "") != "",
		},
		Cache: CacheConfig{
			LRUSize:       getEnvAsInt("EMBEDDING_CACHE_SIZE", 1000),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			RedisPrefix:   getEnv("REDIS_PREFIX", "mira:emb:"),
			TTLSeconds:    getEnvAsInt("EMBEDDING_CACHE_TTL", 86400),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise break the retrieval pipeline
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", c.Store.Driver, StoreDriverPostgres, StoreDriverSQLite)
	}
	switch c.LLM.Provider {
	case LLMProviderOpenAI, LLMProviderLangChain:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (want %s or %s)", c.LLM.Provider, LLMProviderOpenAI, LLMProviderLangChain)
	}
	r := c.Retrieval
	if r.DisplayLimit <= 0 || r.FallbackDisplayLimit <= 0 || r.Oversample <= 0 {
		return fmt.Errorf("retrieval limits must be positive (display=%d fallback=%d oversample=%d)",
			r.DisplayLimit, r.FallbackDisplayLimit, r.Oversample)
	}
	if r.FuzzyThreshold <= 0 || r.FuzzyThreshold > 1 {
		return fmt.Errorf("RETRIEVAL_FUZZY_THRESHOLD must be in (0, 1], got %v", r.FuzzyThreshold)
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}
