package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 所有環境變數只在這裡讀取
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// TWSE data source
	TWSE TWSEConfig

	// Scan pipeline
	Scan ScanConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// TWSEConfig holds 台灣證券交易所 open API configuration
type TWSEConfig struct {
	BaseURL       string
	ListingURL    string // data.gov.tw 上市公司清單 JSON
	ISINURL       string // isin.twse.com.tw 備援清單 (HTML)
	FetchTimeout  time.Duration
	RatePerSec    int // TWSE 對頻繁查詢敏感，超過會被鎖 IP
	HistoryMonths int // months of BWIBBU history per stock
}

// ScanConfig holds every tunable of the valuation scan pipeline.
// 兩代 recommend 邏輯的差異 (權重/門檻) 全部收斂成設定值。
type ScanConfig struct {
	Concurrency  int           // max in-flight fetches within a batch
	BatchSize    int           // stocks per batch
	BatchDelay   time.Duration // pause between batches
	StockTimeout time.Duration // bound on one stock's fetch work

	PriceCacheTTL  time.Duration // 股價快取
	BundleCacheTTL time.Duration // 估值快取 (整個季序列)
	ProgressTTL    time.Duration // 掃描進度逾期視為重新開始

	MinQuarters      int     // minimum consecutive valid quarters
	MinROE           float64 // latest-quarter ROE floor (%)
	ROEMinInclusive  bool    // reject when ROE <= MinROE (true) or < MinROE (false)
	ROEVolatilityMax float64 // (max-min)/min ceiling over the lookback window
	StrictMonotonic  bool    // require non-decreasing ROE regardless of volatility

	PriceWeight float64 // 價格折價權重
	PERWeight   float64 // 本益比折價權重

	ResultMax int // recommendation list cap
}

// Load reads configuration from environment variables
// ⭐ SSOT: 只有這個函式呼叫 os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		TWSE: TWSEConfig{
			BaseURL:       getEnv("TWSE_BASE_URL", "https://www.twse.com.tw"),
			ListingURL:    getEnv("TWSE_LISTING_URL", "https://quality.data.gov.tw/dq_download_json.php?nid=11549&md5_url=bb878d47ffbe7b83bfc1b41d0b24946e"),
			ISINURL:       getEnv("TWSE_ISIN_URL", "https://isin.twse.com.tw/isin/C_public.jsp?strMode=2"),
			FetchTimeout:  getEnvAsDuration("TWSE_FETCH_TIMEOUT", "15s"),
			RatePerSec:    getEnvAsInt("TWSE_RATE_PER_SEC", 3),
			HistoryMonths: getEnvAsInt("TWSE_HISTORY_MONTHS", 60),
		},

		Scan: ScanConfig{
			Concurrency:  getEnvAsInt("SCAN_CONCURRENCY", 10),
			BatchSize:    getEnvAsInt("SCAN_BATCH_SIZE", 100),
			BatchDelay:   getEnvAsDuration("SCAN_BATCH_DELAY", "500ms"),
			StockTimeout: getEnvAsDuration("SCAN_STOCK_TIMEOUT", "2m"),

			PriceCacheTTL:  getEnvAsDuration("PRICE_CACHE_TTL", "24h"),
			BundleCacheTTL: getEnvAsDuration("BUNDLE_CACHE_TTL", "168h"),
			ProgressTTL:    getEnvAsDuration("PROGRESS_TTL", "24h"),

			MinQuarters:      getEnvAsInt("MIN_QUARTERS", 4),
			MinROE:           getEnvAsFloat("ROE_MIN", 15.0),
			ROEMinInclusive:  getEnvAsBool("ROE_MIN_INCLUSIVE", true),
			ROEVolatilityMax: getEnvAsFloat("ROE_VOLATILITY_MAX", 0.20),
			StrictMonotonic:  getEnvAsBool("ROE_STRICT_MONOTONIC", false),

			PriceWeight: getEnvAsFloat("SCORE_PRICE_WEIGHT", 0.6),
			PERWeight:   getEnvAsFloat("SCORE_PER_WEIGHT", 0.4),

			ResultMax: getEnvAsInt("RESULT_MAX", 15),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	return c.Scan.Validate()
}

// Validate checks scan policy consistency
func (s *ScanConfig) Validate() error {
	if s.Concurrency < 1 {
		return fmt.Errorf("SCAN_CONCURRENCY must be >= 1")
	}
	if s.BatchSize < 1 {
		return fmt.Errorf("SCAN_BATCH_SIZE must be >= 1")
	}
	if s.MinQuarters < 1 {
		return fmt.Errorf("MIN_QUARTERS must be >= 1")
	}

	// Weights must sum to 1.0 (allow small floating point error)
	sum := s.PriceWeight + s.PERWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("SCORE_PRICE_WEIGHT + SCORE_PER_WEIGHT must sum to 1.0, got %.2f", sum)
	}

	if s.ResultMax < 1 || s.ResultMax > 15 {
		return fmt.Errorf("RESULT_MAX must be between 1 and 15")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
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
