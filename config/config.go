package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config holds all application configuration loaded from environment
// variables and an optional YAML overlay.
type Config struct {
	BaseURL    string `yaml:"base_url"`
	SitemapURL string `yaml:"sitemap_url"`
	SourceName string `yaml:"source_name"`
	UserAgent  string `yaml:"user_agent"`

	URLLimit           int  `yaml:"url_limit"`
	MaxConcurrency     int  `yaml:"max_concurrency"`
	MaxRetries         int  `yaml:"max_retries"`
	RetryBaseDelayMs   int  `yaml:"retry_base_delay_ms"`
	ConnectTimeoutMs   int  `yaml:"connect_timeout_ms"`
	ReadTimeoutMs      int  `yaml:"read_timeout_ms"`
	PolitenessDelayMs  int  `yaml:"politeness_delay_ms"`
	PolitenessJitterMs int  `yaml:"politeness_jitter_ms"`
	RateLimitMs        int  `yaml:"rate_limit_ms"`
	RespectRobots      bool `yaml:"respect_robots"`

	// FetchMode is "http" or "browser".
	FetchMode string `yaml:"fetch_mode"`
	ChromeBin string `yaml:"chrome_bin"`

	PostgresEnabled  bool   `yaml:"postgres_enabled"`
	PostgresMigrate  bool   `yaml:"postgres_migrate"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`

	CSVOutputPath string `yaml:"csv_output_path"`

	// RedisAddr enables cross-run URL de-duplication when set.
	RedisAddr     string `yaml:"redis_addr"`
	DedupTTLHours int    `yaml:"dedup_ttl_hours"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads the .env file, then the process environment, then the YAML
// file named by SCRAPER_CONFIG_FILE when set. Keys present in the YAML file
// win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	baseURL := strings.TrimRight(getEnv("BASE_URL", "https://www.c21.ca"), "/")
	cfg := &Config{
		BaseURL:    baseURL,
		SitemapURL: getEnv("SITEMAP_URL", baseURL+"/sitemap.xml"),
		SourceName: getEnv("SOURCE_NAME", "c21"),
		UserAgent:  getEnv("USER_AGENT", "Mozilla/5.0"),

		URLLimit:           getEnvInt("URL_LIMIT", 300000),
		MaxConcurrency:     getEnvInt("MAX_CONCURRENCY", 24),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelayMs:   getEnvInt("RETRY_BASE_DELAY_MS", 500),
		ConnectTimeoutMs:   getEnvInt("CONNECT_TIMEOUT_MS", 5000),
		ReadTimeoutMs:      getEnvInt("READ_TIMEOUT_MS", 10000),
		PolitenessDelayMs:  getEnvInt("POLITENESS_DELAY_MS", 100),
		PolitenessJitterMs: getEnvInt("POLITENESS_JITTER_MS", 300),
		RateLimitMs:        getEnvInt("RATE_LIMIT_MS", 0),
		RespectRobots:      getEnvBool("RESPECT_ROBOTS", false),

		FetchMode: getEnv("FETCH_MODE", "http"),
		ChromeBin: getEnv("CHROME_BIN", ""),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", true),
		PostgresMigrate:  getEnvBool("POSTGRES_MIGRATE", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "realestate"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		DedupTTLHours: getEnvInt("DEDUP_TTL_HOURS", 0),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if path := os.Getenv("SCRAPER_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile overlays the keys present in a YAML file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the scraper cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.SitemapURL == "" {
		errs = append(errs, errors.New("SITEMAP_URL is empty"))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries))
	}
	if c.FetchMode != "http" && c.FetchMode != "browser" {
		errs = append(errs, fmt.Errorf("FETCH_MODE must be http or browser, got %q", c.FetchMode))
	}
	if !c.PostgresEnabled && c.CSVOutputPath == "" {
		errs = append(errs, errors.New("no storage sink: enable POSTGRES_ENABLED or set CSV_OUTPUT_PATH"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
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

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
