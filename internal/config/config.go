// Package config reads Stockwarp settings from the environment.
package config

import (
	"errors"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type Storage string

const (
	StoragePostgres Storage = "postgres"
	StorageMemory   Storage = "memory"
)

// IEX Cloud style defaults for the HTTP quote provider.
const (
	DefaultQuoteSymbolPath = "$.symbol"
	DefaultQuoteNamePath   = "$.companyName"
	DefaultQuotePricePath  = "$.latestPrice"
)

// Database holds Postgres connection settings.
type Database struct {
	Host     string
	Port     string
	Name     string
	Username string
	Password string
}

// URL returns a connection string for pgx.
func (db Database) URL() string {
	dbURL := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.Username, db.Password),
		Host:   net.JoinHostPort(db.Host, db.Port),
		Path:   "/" + db.Name,
	}

	return dbURL.String()
}

type Quote struct {
	Provider   string
	URL        string
	APIKey     string
	SymbolPath string
	NamePath   string
	PricePath  string
	Static     string
	Timeout    time.Duration
	RedisAddr  string
	RedisPass  string
	CacheTTL   time.Duration
}

type ClickHouse struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Config holds all server and command line tool configuration.
type Config struct {
	Port          string
	SecretKey     string
	Storage       Storage
	Database      Database
	StartingCash  decimal.Decimal
	Currency      string
	BcryptCost    int
	Quote         Quote
	ClickHouse    ClickHouse
	LogLevel      string
	LogFormat     string
	Debug         bool
	SecureCookies bool
}

// Load reads the configuration for the web server.
func Load() (Config, error) {
	return load(true)
}

// LoadForTool reads the configuration for command line tools, which don't
// need session or quote settings.
func LoadForTool() (Config, error) {
	return load(false)
}

func load(server bool) (Config, error) {
	var validationErrs []string

	cfg := Config{
		Port:      envDefault("PORT", "8000"),
		SecretKey: os.Getenv("SECRET_KEY"),
		Storage:   Storage(strings.ToLower(envDefault("STORAGE", string(StoragePostgres)))),
		Database: Database{
			Host:     envDefault("DB_HOST", "localhost"),
			Port:     envDefault("DB_PORT", "5432"),
			Name:     os.Getenv("DB_NAME"),
			Username: os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
		},
		Currency: strings.ToUpper(envDefault("CURRENCY", "USD")),
		Quote: Quote{
			Provider:   strings.ToLower(envDefault("QUOTE_PROVIDER", "http")),
			URL:        os.Getenv("QUOTE_URL"),
			APIKey:     os.Getenv("API_KEY"),
			SymbolPath: envDefault("QUOTE_SYMBOL_PATH", DefaultQuoteSymbolPath),
			NamePath:   envDefault("QUOTE_NAME_PATH", DefaultQuoteNamePath),
			PricePath:  envDefault("QUOTE_PRICE_PATH", DefaultQuotePricePath),
			Static:     os.Getenv("QUOTE_STATIC"),
			RedisAddr:  os.Getenv("REDIS_ADDR"),
			RedisPass:  os.Getenv("REDIS_PASSWORD"),
		},
		ClickHouse: ClickHouse{
			Addr:     os.Getenv("CLICKHOUSE_ADDR"),
			Database: envDefault("CLICKHOUSE_DB", "default"),
			Username: envDefault("CLICKHOUSE_USERNAME", "default"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		},
		LogLevel:  envDefault("LOG_LEVEL", "info"),
		LogFormat: envDefault("LOG_FORMAT", "text"),
	}

	var err error

	if cfg.StartingCash, err = decimal.NewFromString(envDefault("STARTING_CASH", "10000")); err != nil || cfg.StartingCash.IsNegative() {
		validationErrs = append(validationErrs, "STARTING_CASH must be a non-negative number")
	}

	if cfg.BcryptCost, err = strconv.Atoi(envDefault("BCRYPT_COST", strconv.Itoa(bcrypt.DefaultCost))); err != nil ||
		cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		validationErrs = append(validationErrs, "BCRYPT_COST is out of range")
	}

	if cfg.Quote.Timeout, err = time.ParseDuration(envDefault("QUOTE_TIMEOUT", "5s")); err != nil || cfg.Quote.Timeout <= 0 {
		validationErrs = append(validationErrs, "QUOTE_TIMEOUT must be a positive duration")
	}

	if cfg.Quote.CacheTTL, err = time.ParseDuration(envDefault("QUOTE_CACHE_TTL", "1m")); err != nil || cfg.Quote.CacheTTL < 0 {
		validationErrs = append(validationErrs, "QUOTE_CACHE_TTL must be a duration")
	}

	if cfg.Debug, err = strconv.ParseBool(envDefault("DEBUG", "false")); err != nil {
		validationErrs = append(validationErrs, "DEBUG must be a boolean")
	}

	if cfg.SecureCookies, err = strconv.ParseBool(envDefault("SECURE_COOKIES", "false")); err != nil {
		validationErrs = append(validationErrs, "SECURE_COOKIES must be a boolean")
	}

	switch cfg.Storage {
	case StoragePostgres:
		requireEnv("DB_NAME", cfg.Database.Name, &validationErrs)
		requireEnv("DB_USERNAME", cfg.Database.Username, &validationErrs)
	case StorageMemory:
		if !server {
			validationErrs = append(validationErrs, "command line tools need STORAGE=postgres")
		}
	default:
		validationErrs = append(validationErrs, "unknown STORAGE "+string(cfg.Storage))
	}

	if server {
		requireEnv("SECRET_KEY", cfg.SecretKey, &validationErrs)

		switch cfg.Quote.Provider {
		case "http":
			requireEnv("QUOTE_URL", cfg.Quote.URL, &validationErrs)

			if strings.Contains(cfg.Quote.URL, "{token}") {
				requireEnv("API_KEY", cfg.Quote.APIKey, &validationErrs)
			}
		case "static":
			requireEnv("QUOTE_STATIC", cfg.Quote.Static, &validationErrs)
		default:
			validationErrs = append(validationErrs, "unknown QUOTE_PROVIDER "+cfg.Quote.Provider)
		}
	}

	if len(validationErrs) > 0 {
		return cfg, errors.New(strings.Join(validationErrs, "; "))
	}

	return cfg, nil
}

func envDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}

	return fallback
}

func requireEnv(name, value string, errs *[]string) {
	if strings.TrimSpace(value) == "" {
		*errs = append(*errs, name+" is required")
	}
}
