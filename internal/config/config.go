package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Unit table sources selectable through DATA_BACKEND.
const (
	BackendCSV    = "csv"
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

var validBackends = []string{BackendCSV, BackendSheets, BackendSQLite}

type Config struct {
	// HTTP Server
	Port string

	// Unit table source
	DataBackend   string
	UnitTablePath string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleUnitsRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Table reload, empty disables the scheduler
	TableReloadSchedule string

	// Access gate
	PasswordHash  string
	AuthBypass    bool
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	// Allocation
	VATRate             float64
	AllocationCacheSize int
	AllocationCacheTTL  time.Duration

	// Proxies allowed to set X-Forwarded-For, in CIDR notation
	TrustedProxies []string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:   getEnv("DATA_BACKEND", BackendCSV),
		UnitTablePath: getEnv("UNIT_TABLE_PATH", "./data/tabella_millesimale.csv"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/condomini.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "condomini"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "visits"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleUnitsRange:         getEnv("GOOGLE_UNITS_RANGE", "Tabella!A1:E"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		TableReloadSchedule: lookupEnv("TABLE_RELOAD_SCHEDULE", "@every 15m"),

		PasswordHash:  getEnv("CONDO_PASSWORD_HASH", ""),
		AuthBypass:    getEnvBool("CONDO_AUTH_BYPASS", false),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),
		CookieSecure:  getEnvBool("COOKIE_SECURE", false),

		VATRate:             getEnvFloat("VAT_RATE", 0.10),
		AllocationCacheSize: getEnvInt("ALLOCATION_CACHE_SIZE", 256),
		AllocationCacheTTL:  getEnvDuration("ALLOCATION_CACHE_TTL", 10*time.Minute),

		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendCSV:
		if c.UnitTablePath == "" {
			errors = append(errors, "unit table path cannot be empty when using csv backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleUnitsRange == "" {
			errors = append(errors, "Google units range is required when using sheets backend")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// The visit log lives in SQLite whenever a path is set
	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.TableReloadSchedule != "" {
		if _, err := cron.ParseStandard(c.TableReloadSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid table reload schedule '%s': %v", c.TableReloadSchedule, err))
		}
	}

	if !c.AuthBypass {
		if c.PasswordHash == "" {
			errors = append(errors, "CONDO_PASSWORD_HASH is required unless CONDO_AUTH_BYPASS is set")
		}
		if len(c.SessionSecret) < 16 {
			errors = append(errors, "SESSION_SECRET must be at least 16 characters unless CONDO_AUTH_BYPASS is set")
		}
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.VATRate < 0 || c.VATRate > 1 {
		errors = append(errors, fmt.Sprintf("invalid VAT rate %v: must be between 0 and 1", c.VATRate))
	}
	if c.AllocationCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid allocation cache size %d: must be at least 1", c.AllocationCacheSize))
	}
	if c.AllocationCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid allocation cache TTL %v: must be positive", c.AllocationCacheTTL))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv keeps an explicitly empty value instead of falling back.
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
