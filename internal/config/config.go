package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	Addr      string
	PublicURL *url.URL
	LogLevel  string

	// DBDriver is "postgres" or "sqlite".
	DBDriver   string
	DBDSN      string
	SQLitePath string

	SessionSecret string
	SessionTTL    time.Duration

	GoogleClientIDs []string
	AppleClientIDs  []string

	FCMProjectID       string
	FCMCredentialsFile string

	// SearchKeySecret is a Secret Manager version name such as
	// projects/p/secrets/search-key/versions/latest. SearchKeyFallback is
	// used when it is empty.
	SearchKeySecret   string
	SearchKeyFallback string

	// WatchBuffer bounds each watch subscriber's queue of pending batches.
	WatchBuffer int
}

// Load reads .env (or APP_ENV_FILE) without overriding the process
// environment, then parses APP_* variables.
func Load() (Config, error) {
	path := os.Getenv("APP_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := loadDotEnvFile(path, os.Setenv, os.Getenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return LoadFromEnv(os.Getenv)
}

func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	for k, v := range values {
		if v == "" || getenv(k) != "" {
			continue
		}
		if err := setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:                getenv("APP_ENV"),
		Addr:               getenv("APP_ADDR"),
		LogLevel:           getenv("APP_LOG_LEVEL"),
		DBDriver:           strings.ToLower(strings.TrimSpace(getenv("APP_DB_DRIVER"))),
		DBDSN:              getenv("APP_DB_DSN"),
		SQLitePath:         getenv("APP_SQLITE_PATH"),
		SessionSecret:      getenv("APP_SESSION_SECRET"),
		FCMProjectID:       strings.TrimSpace(getenv("APP_FCM_PROJECT_ID")),
		FCMCredentialsFile: strings.TrimSpace(getenv("APP_FCM_CREDENTIALS_FILE")),
		SearchKeySecret:    strings.TrimSpace(getenv("APP_SEARCH_KEY_SECRET")),
		SearchKeyFallback:  getenv("APP_SEARCH_API_KEY"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	if cfg.DBDriver == "" {
		if cfg.DBDSN != "" {
			cfg.DBDriver = "postgres"
		} else {
			cfg.DBDriver = "sqlite"
		}
	}
	switch cfg.DBDriver {
	case "postgres":
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required when APP_DB_DRIVER=postgres")
		}
	case "sqlite":
		if cfg.SQLitePath == "" {
			cfg.SQLitePath = "data/hangoutsync.db"
		}
	default:
		return Config{}, errors.New("APP_DB_DRIVER: must be postgres or sqlite")
	}

	ttlRaw := getenv("APP_SESSION_TTL")
	if ttlRaw == "" {
		cfg.SessionTTL = 30 * 24 * time.Hour
	} else {
		ttl, err := time.ParseDuration(ttlRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_SESSION_TTL: %w", err)
		}
		if ttl <= 0 {
			return Config{}, errors.New("APP_SESSION_TTL: must be > 0")
		}
		cfg.SessionTTL = ttl
	}

	bufRaw := getenv("APP_WATCH_BUFFER")
	if bufRaw == "" {
		cfg.WatchBuffer = 64
	} else {
		n, err := strconv.Atoi(bufRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_WATCH_BUFFER: %w", err)
		}
		if n < 1 {
			return Config{}, errors.New("APP_WATCH_BUFFER: must be >= 1")
		}
		cfg.WatchBuffer = n
	}

	cfg.GoogleClientIDs = parseCSV(getenv("APP_GOOGLE_CLIENT_IDS"))
	cfg.AppleClientIDs = parseCSV(getenv("APP_APPLE_CLIENT_IDS"))

	if cfg.FCMCredentialsFile != "" && cfg.FCMProjectID == "" {
		return Config{}, errors.New("APP_FCM_PROJECT_ID: required when APP_FCM_CREDENTIALS_FILE is set")
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDriver != "postgres" {
			return Config{}, errors.New("APP_DB_DRIVER: prod requires postgres")
		}
		if len(cfg.SessionSecret) < 32 {
			return Config{}, errors.New("APP_SESSION_SECRET: must be at least 32 bytes in prod")
		}
		if cfg.SearchKeySecret == "" && cfg.SearchKeyFallback != "" {
			return Config{}, errors.New("APP_SEARCH_API_KEY: not allowed in prod, use APP_SEARCH_KEY_SECRET")
		}
	} else if cfg.SessionSecret == "" {
		cfg.SessionSecret = "dev-only-session-secret-change-me!"
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) PushEnabled() bool { return c.FCMProjectID != "" }

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
