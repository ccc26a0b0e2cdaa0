package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	pkgerrors "sjsage522/propertyworker/pkg/errors"
)

// Fetch modes
const (
	FetchModeBrowser = "browser"
	FetchModeHTTP    = "http"
	FetchModeProxy   = "proxy"
)

// Store backends
const (
	StoreWarehouse = "warehouse"
	StoreCSV       = "csv"
)

// Config represents the application configuration
type Config struct {
	// Portal and search
	PortalBaseURL string
	SearchPath    string
	MaxPages      int

	// Fetcher configuration
	FetchMode        string
	FetchProxyURL    string
	FetchProxyAPIKey string
	FetchTimeout     time.Duration
	SettleMin        time.Duration
	SettleMax        time.Duration
	FetchAttempts    int
	BackoffMin       time.Duration
	BackoffMax       time.Duration
	WaitSelector     string
	ChromeBin        string
	Headless         bool
	SelectorsFile    string

	// Persistence configuration
	StoreBackend      string
	WarehouseUser     string
	WarehousePassword string
	WarehouseAccount  string
	WarehouseName     string
	WarehouseDatabase string
	WarehouseSchema   string
	WarehouseSSLMode  string
	CSVHistoryPath    string
	CSVCurrentPath    string
	FailureLogPath    string

	// Change detection
	ChangeFields []string
	FullRecrawl  bool

	// Memcache configuration
	MemcacheAddr   string
	RateLimitBlock time.Duration

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Scheduling and API
	CrawlSchedule string
	APIAddr       string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		PortalBaseURL: strings.TrimRight(getEnv("PORTAL_BASE_URL", "https://www.property24.com"), "/"),
		SearchPath:    getEnv("SEARCH_PATH", "/for-sale/paarl/western-cape/344"),
		MaxPages:      getEnvInt("MAX_PAGES", 0),

		FetchMode:        strings.ToLower(getEnv("FETCH_MODE", FetchModeBrowser)),
		FetchProxyURL:    getEnv("FETCH_PROXY_URL", "https://api.scraperapi.com/"),
		FetchProxyAPIKey: getEnv("FETCH_PROXY_API_KEY", ""),
		FetchTimeout:     time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		SettleMin:        time.Duration(getEnvInt("SETTLE_MIN_MS", 2500)) * time.Millisecond,
		SettleMax:        time.Duration(getEnvInt("SETTLE_MAX_MS", 5000)) * time.Millisecond,
		FetchAttempts:    getEnvInt("FETCH_ATTEMPTS", 2),
		BackoffMin:       time.Duration(getEnvInt("BACKOFF_MIN_MS", 3000)) * time.Millisecond,
		BackoffMax:       time.Duration(getEnvInt("BACKOFF_MAX_MS", 6000)) * time.Millisecond,
		WaitSelector:     getEnv("WAIT_SELECTOR", "body"),
		ChromeBin:        getEnv("CHROME_BIN", ""),
		Headless:         getEnvBool("HEADLESS", true),
		SelectorsFile:    getEnv("SELECTORS_FILE", ""),

		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", StoreWarehouse)),
		WarehouseUser:     getEnv("WAREHOUSE_USER", ""),
		WarehousePassword: getEnv("WAREHOUSE_PASSWORD", ""),
		WarehouseAccount:  getEnv("WAREHOUSE_ACCOUNT", ""),
		WarehouseName:     getEnv("WAREHOUSE_NAME", ""),
		WarehouseDatabase: getEnv("WAREHOUSE_DATABASE", ""),
		WarehouseSchema:   getEnv("WAREHOUSE_SCHEMA", ""),
		WarehouseSSLMode:  getEnv("WAREHOUSE_SSLMODE", "require"),
		CSVHistoryPath:    getEnv("CSV_HISTORY_PATH", "./output/property_history.csv"),
		CSVCurrentPath:    getEnv("CSV_CURRENT_PATH", "./output/property_current.csv"),
		FailureLogPath:    getEnv("FAILURE_LOG_PATH", "failed_urls.log"),

		ChangeFields: splitList(getEnv("CHANGE_FIELDS", "price")),
		FullRecrawl:  getEnvBool("FULL_RECRAWL", false),

		MemcacheAddr:   getEnv("MEMCACHE_ADDR", ""),
		RateLimitBlock: time.Duration(getEnvInt("RATE_LIMIT_BLOCK_SECONDS", 600)) * time.Second,

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "listings"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),

		CrawlSchedule: getEnv("CRAWL_SCHEDULE", ""),
		APIAddr:       getEnv("API_ADDR", ":8080"),

		Environment: getEnv("PROPERTY_ENVIRONMENT", "development"),
	}
}

// Validate checks that every value required by the selected fetch mode and
// store backend is present.
func (c *Config) Validate() error {
	var missing []string

	switch c.FetchMode {
	case FetchModeBrowser, FetchModeHTTP:
	case FetchModeProxy:
		if c.FetchProxyAPIKey == "" {
			missing = append(missing, "FETCH_PROXY_API_KEY")
		}
	default:
		return pkgerrors.NewConfiguration(fmt.Sprintf("unknown FETCH_MODE %q", c.FetchMode), nil)
	}

	switch c.StoreBackend {
	case StoreWarehouse:
		required := []struct{ key, value string }{
			{"WAREHOUSE_USER", c.WarehouseUser},
			{"WAREHOUSE_PASSWORD", c.WarehousePassword},
			{"WAREHOUSE_ACCOUNT", c.WarehouseAccount},
			{"WAREHOUSE_NAME", c.WarehouseName},
			{"WAREHOUSE_DATABASE", c.WarehouseDatabase},
			{"WAREHOUSE_SCHEMA", c.WarehouseSchema},
		}
		for _, r := range required {
			if r.value == "" {
				missing = append(missing, r.key)
			}
		}
	case StoreCSV:
		if c.CSVHistoryPath == "" {
			missing = append(missing, "CSV_HISTORY_PATH")
		}
		if c.CSVCurrentPath == "" {
			missing = append(missing, "CSV_CURRENT_PATH")
		}
	default:
		return pkgerrors.NewConfiguration(fmt.Sprintf("unknown STORE_BACKEND %q", c.StoreBackend), nil)
	}

	if len(missing) > 0 {
		return pkgerrors.NewConfiguration("missing required configuration: "+strings.Join(missing, ", "), nil)
	}

	if c.FetchAttempts < 1 {
		return pkgerrors.NewConfiguration("FETCH_ATTEMPTS must be at least 1", nil)
	}
	if c.SettleMax < c.SettleMin || c.BackoffMax < c.BackoffMin {
		return pkgerrors.NewConfiguration("delay ranges must have max >= min", nil)
	}
	if len(c.ChangeFields) == 0 {
		return pkgerrors.NewConfiguration("CHANGE_FIELDS must name at least one field", nil)
	}

	return nil
}

// SearchURL returns the root listing URL the crawl starts from
func (c *Config) SearchURL() string {
	return c.PortalBaseURL + "/" + strings.TrimLeft(c.SearchPath, "/")
}

// DSN returns the lib/pq connection string for the warehouse. The schema is
// applied through search_path and the warehouse name through application_name.
// Every value is quoted so passwords and names may contain spaces or quotes.
func (c *Config) DSN() string {
	host, port := c.WarehouseAccount, "5432"
	if h, p, err := net.SplitHostPort(c.WarehouseAccount); err == nil {
		host, port = h, p
	}

	params := []struct{ key, value string }{
		{"host", host},
		{"port", port},
		{"user", c.WarehouseUser},
		{"password", c.WarehousePassword},
		{"dbname", c.WarehouseDatabase},
		{"sslmode", c.WarehouseSSLMode},
		{"search_path", c.WarehouseSchema},
		{"application_name", c.WarehouseName},
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.key+"="+quoteDSNValue(p.value))
	}
	return strings.Join(parts, " ")
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// quoteDSNValue single-quotes v for a key/value connection string
func quoteDSNValue(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
