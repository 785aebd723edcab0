package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Analysis runner modes
const (
	ModeProcess = "process" // spawn the analysis program
	ModeCanned  = "canned"  // fixed results, no subprocess
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, test, staging, production
	HTTP HTTPConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Analysis subprocess
	Analysis AnalysisConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string

	// Scheduler
	RevaluationSchedule string
}

// HTTPConfig holds http.Server timeouts.
// WriteTimeout defaults to 0 because analysis responses are only written
// once the subprocess exits.
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// AnalysisConfig describes how the external analysis program is launched.
type AnalysisConfig struct {
	PythonPath     string
	ScriptDir      string
	ForwardScript  string
	BacktestScript string
	Mode           string

	// Timeout bounds a single invocation. Zero means the request context is
	// the only deadline.
	Timeout time.Duration

	// FixturesPath optionally overrides the canned results (YAML).
	FixturesPath string

	// DefaultCapital is used when a request omits initialCapital.
	DefaultCapital string
}

// RateLimitConfig limits requests per client address.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	env := getEnv("ENV", EnvDevelopment)

	cfg := &Config{
		Port: getEnv("PORT", "3000"),
		Env:  env,
		HTTP: HTTPConfig{
			ReadTimeout:  getEnvAsDuration("HTTP_READ_TIMEOUT", "15s"),
			WriteTimeout: getEnvAsDuration("HTTP_WRITE_TIMEOUT", "0s"),
			IdleTimeout:  getEnvAsDuration("HTTP_IDLE_TIMEOUT", "60s"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Analysis: AnalysisConfig{
			PythonPath:     getEnv("PYTHON_PATH", defaultPythonPath()),
			ScriptDir:      getEnv("ANALYSIS_SCRIPT_DIR", filepath.Join("..", "python", "src")),
			ForwardScript:  getEnv("ANALYSIS_FORWARD_SCRIPT", "main.py"),
			BacktestScript: getEnv("ANALYSIS_BACKTEST_SCRIPT", "backtester.py"),
			Mode:           getEnv("ANALYSIS_MODE", defaultMode(env)),
			Timeout:        getEnvAsDuration("ANALYSIS_TIMEOUT", "0s"),
			FixturesPath:   getEnv("ANALYSIS_FIXTURES", ""),
			DefaultCapital: getEnv("ANALYSIS_DEFAULT_CAPITAL", "100000"),
		},

		RateLimit: RateLimitConfig{
			Enabled:  getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", "15m"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),

		// 매일 장 마감 후 (초 단위 포함 cron)
		RevaluationSchedule: getEnv("REVALUATION_SCHEDULE", "0 30 16 * * 1-5"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// IsTest reports whether the application runs in the test environment.
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvTest, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("ENV must be one of: development, test, staging, production")
	}

	// The test environment may run without a database.
	if c.Database.URL == "" && c.Env != EnvTest {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Analysis.Mode != ModeProcess && c.Analysis.Mode != ModeCanned {
		return fmt.Errorf("ANALYSIS_MODE must be one of: process, canned")
	}

	if c.Analysis.Timeout < 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT must not be negative")
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

func defaultPythonPath() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

func defaultMode(env string) string {
	if env == EnvTest {
		return ModeCanned
	}
	return ModeProcess
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
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
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
