package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BinanceConfig   BinanceConfig   `json:"binance"`
	AIConfig        AIConfig        `json:"ai"`
	TradingConfig   TradingConfig   `json:"trading"`
	ServerConfig    ServerConfig    `json:"server"`
	AuthConfig      AuthConfig      `json:"auth"`
	DatabaseConfig  DatabaseConfig  `json:"database"`
	RedisConfig     RedisConfig     `json:"redis"`
	VaultConfig     VaultConfig     `json:"vault"`
	LoggingConfig   LoggingConfig   `json:"logging"`
	SchedulerConfig SchedulerConfig `json:"scheduler"`
}

type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	TestNet   bool   `json:"testnet"`
}

// AIConfig holds LLM provider configuration
type AIConfig struct {
	Provider    string  `json:"provider"` // "deepseek", "openai", or "claude"
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// TradingConfig holds the decision-cycle trading parameters
type TradingConfig struct {
	Symbol         string   `json:"symbol"`           // traded symbol, e.g. "DOGEUSDT"
	PricingSymbols []string `json:"pricing_symbols"`  // symbols exposed on /api/pricing
	InitialCapital float64  `json:"initial_capital"`  // baseline for total-return reporting
	Leverage       int      `json:"leverage"`         // fixed leverage for new positions
	MinNotional    float64  `json:"min_notional"`     // exchange minimum order value in USDT
	DefaultSizePct float64  `json:"default_size_pct"` // fallback position size fraction
	DryRun         bool     `json:"dry_run"`          // skip real order placement
}

type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // comma separated CORS origins
	ReadTimeout     int    `json:"read_timeout"`    // seconds
	WriteTimeout    int    `json:"write_timeout"`   // seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
	ProductionMode  bool   `json:"production_mode"`
}

// AuthConfig holds the cron-token authentication configuration
type AuthConfig struct {
	CronSecret    string        `json:"cron_secret"`
	TokenDuration time.Duration `json:"token_duration"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for response caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds HashiCorp Vault configuration for exchange credential loading
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // JSON output (pretty console writer otherwise)
}

// SchedulerConfig controls the in-process decision/metrics loops. When disabled
// the cycles only run through the authenticated cron HTTP endpoints.
type SchedulerConfig struct {
	Enabled          bool          `json:"enabled"`
	DecisionInterval time.Duration `json:"decision_interval"`
	MetricsInterval  time.Duration `json:"metrics_interval"`
}

// Load reads config.json if present, then applies environment overrides.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings without which the service cannot start.
// Everything else degrades at runtime instead of failing startup.
func (c *Config) Validate() error {
	if c.AuthConfig.CronSecret == "" {
		return fmt.Errorf("config: CRON_SECRET_KEY is required")
	}
	if !c.VaultConfig.Enabled && (c.BinanceConfig.APIKey == "" || c.BinanceConfig.SecretKey == "") {
		return fmt.Errorf("config: BINANCE_API_KEY and BINANCE_SECRET_KEY are required")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	// Binance config
	cfg.BinanceConfig.APIKey = getEnvOrDefault("BINANCE_API_KEY", cfg.BinanceConfig.APIKey)
	cfg.BinanceConfig.SecretKey = getEnvOrDefault("BINANCE_SECRET_KEY", cfg.BinanceConfig.SecretKey)
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.BinanceConfig.TestNet = getEnvOrDefault("BINANCE_TESTNET", "false") == "true"

	// AI config
	cfg.AIConfig.Provider = getEnvOrDefault("AI_PROVIDER", defaultString(cfg.AIConfig.Provider, "deepseek"))
	cfg.AIConfig.APIKey = getEnvOrDefault("AI_API_KEY", defaultString(cfg.AIConfig.APIKey, os.Getenv("DEEPSEEK_API_KEY")))
	cfg.AIConfig.Model = getEnvOrDefault("AI_MODEL", defaultString(cfg.AIConfig.Model, "deepseek-chat"))
	cfg.AIConfig.MaxTokens = getEnvIntOrDefault("AI_MAX_TOKENS", defaultInt(cfg.AIConfig.MaxTokens, 1024))
	cfg.AIConfig.Temperature = getEnvFloatOrDefault("AI_TEMPERATURE", cfg.AIConfig.Temperature)

	// Trading config
	cfg.TradingConfig.Symbol = getEnvOrDefault("TRADING_SYMBOL", defaultString(cfg.TradingConfig.Symbol, "DOGEUSDT"))
	if v := os.Getenv("PRICING_SYMBOLS"); v != "" {
		cfg.TradingConfig.PricingSymbols = splitAndTrim(v)
	}
	if len(cfg.TradingConfig.PricingSymbols) == 0 {
		cfg.TradingConfig.PricingSymbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "DOGEUSDT"}
	}
	cfg.TradingConfig.InitialCapital = getEnvFloatOrDefault("INITIAL_CAPITAL", defaultFloat(cfg.TradingConfig.InitialCapital, 29))
	cfg.TradingConfig.Leverage = getEnvIntOrDefault("TRADING_LEVERAGE", defaultInt(cfg.TradingConfig.Leverage, 5))
	cfg.TradingConfig.MinNotional = getEnvFloatOrDefault("TRADING_MIN_NOTIONAL", defaultFloat(cfg.TradingConfig.MinNotional, 5.0))
	cfg.TradingConfig.DefaultSizePct = getEnvFloatOrDefault("TRADING_DEFAULT_SIZE_PCT", defaultFloat(cfg.TradingConfig.DefaultSizePct, 0.03))
	cfg.TradingConfig.DryRun = getEnvOrDefault("TRADING_DRY_RUN", "false") == "true"

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", defaultInt(cfg.ServerConfig.Port, 8000))
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", defaultString(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultString(cfg.ServerConfig.AllowedOrigins, "http://localhost:5173"))
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", defaultInt(cfg.ServerConfig.ReadTimeout, 30))
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", defaultInt(cfg.ServerConfig.WriteTimeout, 30))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", "false") == "true"

	// Auth config
	cfg.AuthConfig.CronSecret = getEnvOrDefault("CRON_SECRET_KEY", cfg.AuthConfig.CronSecret)
	cfg.AuthConfig.TokenDuration = getEnvDurationOrDefault("CRON_TOKEN_DURATION", time.Hour)

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultString(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", defaultString(cfg.DatabaseConfig.User, "crypto_ai"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", defaultString(cfg.DatabaseConfig.Database, "crypto_ai"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", defaultString(cfg.DatabaseConfig.SSLMode, "disable"))

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", defaultString(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", defaultInt(cfg.RedisConfig.PoolSize, 10))

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", defaultString(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", defaultString(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", defaultString(cfg.VaultConfig.SecretPath, "crypto-ai-trader/binance"))

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultString(cfg.LoggingConfig.Level, "info"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"

	// Scheduler config
	cfg.SchedulerConfig.Enabled = getEnvOrDefault("SCHEDULER_ENABLED", "true") == "true"
	cfg.SchedulerConfig.DecisionInterval = getEnvDurationOrDefault("SCHEDULER_DECISION_INTERVAL", 3*time.Minute)
	cfg.SchedulerConfig.MetricsInterval = getEnvDurationOrDefault("SCHEDULER_METRICS_INTERVAL", 20*time.Second)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func defaultInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func defaultFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
