package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// InstituteAccount is a dev login for the local token issuer.
type InstituteAccount struct {
	ID           string `toml:"id"`
	PasswordHash string `toml:"password_hash"` // bcrypt
}

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string // sqlite|postgres|mongo|memory
	DBDSN    string
	MongoDB  string
	SiteID   string

	AuthHMACSecret  string
	TokenTTL        time.Duration
	EnableLocalAuth bool
	Institutes      []InstituteAccount

	EnableMetrics bool

	CORSOriginsOnline  []string
	CORSOriginsOffline []string
}

// fileConfig is the optional TOML overlay named by CONFIG_FILE.
type fileConfig struct {
	Server struct {
		Mode     string `toml:"mode"`
		HTTPAddr string `toml:"http_addr"`
	} `toml:"server"`
	Database struct {
		Driver  string `toml:"driver"`
		DSN     string `toml:"dsn"`
		MongoDB string `toml:"mongo_db"`
	} `toml:"database"`
	Auth struct {
		Institutes []InstituteAccount `toml:"institutes"`
	} `toml:"auth"`
}

// Load reads .env (if present), then the TOML file named by CONFIG_FILE (if
// set), then the environment. Environment values win.
func Load() (Config, error) {
	_ = godotenv.Load()

	var fc fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg := fromEnv(fc)
	// every API route verifies tokens, so a secret is needed even without local login
	if cfg.AuthHMACSecret == "" {
		return Config{}, fmt.Errorf("AUTH_HMAC_SECRET is required")
	}
	return cfg, nil
}

// FromEnv builds a Config from the environment alone.
func FromEnv() Config { return fromEnv(fileConfig{}) }

func fromEnv(fc fileConfig) Config {
	mode := Mode(envOr("MODE", fc.Server.Mode))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", orDefault(fc.Server.HTTPAddr, ":8080")),

		DBDriver: envOr("DB_DRIVER", orDefault(fc.Database.Driver, "sqlite")),
		DBDSN:    envOr("DB_DSN", fc.Database.DSN),
		MongoDB:  envOr("MONGO_DB", orDefault(fc.Database.MongoDB, "mindengage_exams")),
		SiteID:   envOr("SITE_ID", "local"),

		AuthHMACSecret:  envOr("AUTH_HMAC_SECRET", defaultSecret(mode)),
		TokenTTL:        envDuration("TOKEN_TTL", 8*time.Hour),
		EnableLocalAuth: envBool("ENABLE_LOCAL_AUTH", mode == ModeOffline),
		Institutes:      fc.Auth.Institutes,

		EnableMetrics: envBool("ENABLE_METRICS", true),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://exams.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010"),
	}
}

// Only offline mode gets a built-in secret.
func defaultSecret(mode Mode) string {
	if mode == ModeOffline {
		return "supersecret-dev-key"
	}
	return ""
}

func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil && d > 0 {
		return d
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
