// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/tradingdesk/internal/domain"
)

// ExecutionMode selects which gateway backs the desk.
type ExecutionMode string

const (
	// ExecutionLocal fills orders on the local ledger using paper market data.
	ExecutionLocal ExecutionMode = "local"
	// ExecutionBroker delegates orders to the broker and reconciles from it.
	ExecutionBroker ExecutionMode = "broker"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for databases and backups (always absolute)
	Port           int
	LogLevel       string
	LogPretty      bool
	DevMode        bool
	ExecutionMode  ExecutionMode
	InitialBalance float64
	ProvidersFile  string // Optional YAML roster seeded into the settings DB
	Alpaca         AlpacaConfig
	AI             AIConfig
	Backup         BackupConfig
}

// AlpacaConfig holds broker and market data credentials.
type AlpacaConfig struct {
	APIKey            string
	SecretKey         string
	TradingURL        string
	DataURL           string
	RequestsPerMinute int
}

// Configured reports whether both credentials are present.
func (c AlpacaConfig) Configured() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

// AIConfig holds provider credentials and the retry policy for AI calls.
type AIConfig struct {
	Keys              map[domain.ProviderName]string
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RequestsPerMinute int
	RequestTimeout    time.Duration
}

// BackupConfig holds S3-compatible off-site backup settings.
type BackupConfig struct {
	Enabled         bool
	Endpoint        string // Empty for AWS; set for R2/MinIO
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DESK_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("GO_PORT", 8001),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnvAsBool("LOG_PRETTY", true),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		ExecutionMode:  ExecutionMode(strings.ToLower(getEnv("EXECUTION_MODE", string(ExecutionLocal)))),
		InitialBalance: getEnvAsFloat("INITIAL_BALANCE", 20.00),
		ProvidersFile:  getEnv("PROVIDERS_FILE", ""),
		Alpaca: AlpacaConfig{
			APIKey:            getEnv("ALPACA_API_KEY", ""),
			SecretKey:         getEnv("ALPACA_SECRET_KEY", ""),
			TradingURL:        getEnv("ALPACA_TRADING_URL", "https://paper-api.alpaca.markets"),
			DataURL:           getEnv("ALPACA_DATA_URL", "https://data.alpaca.markets"),
			RequestsPerMinute: getEnvAsInt("ALPACA_REQUESTS_PER_MINUTE", 180),
		},
		AI: AIConfig{
			Keys: map[domain.ProviderName]string{
				domain.ProviderOpenAI:    getEnv("OPENAI_API_KEY", ""),
				domain.ProviderDeepSeek:  getEnv("DEEPSEEK_API_KEY", ""),
				domain.ProviderAnthropic: getEnv("ANTHROPIC_API_KEY", ""),
				domain.ProviderGemini:    getEnv("GEMINI_API_KEY", ""),
			},
			MaxRetries:        getEnvAsInt("AI_MAX_RETRIES", 3),
			BaseDelay:         time.Duration(getEnvAsInt("AI_BASE_DELAY_MS", 1000)) * time.Millisecond,
			MaxDelay:          time.Duration(getEnvAsInt("AI_MAX_DELAY_MS", 8000)) * time.Millisecond,
			RequestsPerMinute: getEnvAsInt("AI_REQUESTS_PER_MINUTE", 30),
			RequestTimeout:    time.Duration(getEnvAsInt("AI_REQUEST_TIMEOUT_SECONDS", 25)) * time.Second,
		},
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Prefix:          getEnv("BACKUP_PREFIX", "tradingdesk-backup-"),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.ExecutionMode {
	case ExecutionLocal:
	case ExecutionBroker:
		if !c.Alpaca.Configured() {
			return fmt.Errorf("broker execution mode requires ALPACA_API_KEY and ALPACA_SECRET_KEY")
		}
	default:
		return fmt.Errorf("invalid EXECUTION_MODE %q (want local or broker)", c.ExecutionMode)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("INITIAL_BALANCE must be positive, got %.2f", c.InitialBalance)
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("AI_MAX_RETRIES must be non-negative, got %d", c.AI.MaxRetries)
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_ENABLED requires BACKUP_BUCKET")
	}

	return nil
}

// APIKeyFor returns the environment-provided credential for a provider.
func (c *Config) APIKeyFor(provider domain.ProviderName) string {
	if c.AI.Keys == nil {
		return ""
	}
	return c.AI.Keys[provider]
}

// DatabasePath returns the path of a named database inside the data directory.
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
