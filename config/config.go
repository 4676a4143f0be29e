package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Query     string
	Headless  bool
	ChromeBin string
	UserAgent string

	OutputPath string

	// Timing
	FetchTimeout     time.Duration
	NavigationSettle time.Duration
	ScrollSettle     time.Duration
	DetailLoad       time.Duration
	BackSettle       time.Duration
	LazyLoad         time.Duration
	EnrichDelayMs    int
	StablePasses     int
	RunTimeout       time.Duration

	DedupeByIdentity bool
	KeepAwake        bool

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	MaxRetries       int
}

// DefaultUserAgent is sent by both the browser session and the website fetcher.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Query:     strings.TrimSpace(getEnv("SEARCH_QUERY", "")),
		Headless:  getEnvBool("HEADLESS", false),
		ChromeBin: getEnv("CHROME_BIN", ""),
		UserAgent: getEnv("USER_AGENT", DefaultUserAgent),

		OutputPath: getEnv("OUTPUT_PATH", "./output/results.xlsx"),

		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		NavigationSettle: getEnvDuration("NAVIGATION_SETTLE", 5*time.Second),
		ScrollSettle:     getEnvDuration("SCROLL_SETTLE", time.Second),
		DetailLoad:       getEnvDuration("DETAIL_LOAD", 4*time.Second),
		BackSettle:       getEnvDuration("BACK_SETTLE", 1500*time.Millisecond),
		LazyLoad:         getEnvDuration("LAZY_LOAD", 2*time.Second),
		EnrichDelayMs:    getEnvInt("ENRICH_DELAY_MS", 500),
		StablePasses:     getEnvInt("STABLE_PASSES", 3),
		RunTimeout:       getEnvDuration("RUN_TIMEOUT", 0),

		DedupeByIdentity: getEnvBool("DEDUPE_BY_IDENTITY", true),
		KeepAwake:        getEnvBool("KEEP_AWAKE", true),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "leads_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
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

// EnrichInterval is the minimum gap between two website enrichment calls.
func (c *Config) EnrichInterval() time.Duration {
	if c.EnrichDelayMs <= 0 {
		return 0
	}
	return time.Duration(c.EnrichDelayMs) * time.Millisecond
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
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("1.5s") or bare milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
