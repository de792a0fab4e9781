package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL settings for the optional invocation audit log.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// Enabled reports whether an audit database has been configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// DecompilerConfig describes how the external decompiler is invoked.
type DecompilerConfig struct {
	Path           string
	FormatFlag     string
	Timeout        time.Duration
	MaxOutputBytes int64
	KillGrace      time.Duration
}

// RateLimitConfig bounds the number of requests per client within a window.
type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

// DialectConfig toggles the dialect-specific decompile routes.
type DialectConfig struct {
	Luau          bool
	Lua51         bool
	LuauEncodeKey uint8
}

// AppConfig is the centralized configuration struct for the application.
// It is populated once from environment variables and never mutated afterwards.
type AppConfig struct {
	AppHost     string
	Port        string
	MaxFileSize int64
	StagingDir  string
	StaticDir   string
	Timezone    string
	Decompiler  DecompilerConfig
	RateLimit   RateLimitConfig
	Dialects    DialectConfig
	Database    DatabaseConfig
}

// Location resolves the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// Real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:     getEnv("APP_HOST", "localhost:3000"),
		Port:        getEnv("PORT", "3000"),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 5*1024*1024),
		StagingDir:  getEnv("STAGING_DIR", ""),
		StaticDir:   getEnv("STATIC_DIR", "public"),
		Timezone:    getEnv("TIMEZONE", "UTC"),
		Decompiler: DecompilerConfig{
			Path:           getEnv("DECOMPILER_PATH", "./medal"),
			FormatFlag:     getEnv("DECOMPILER_FORMAT_FLAG", "--text"),
			Timeout:        getEnvDuration("DECOMPILE_TIMEOUT", 10*time.Second),
			MaxOutputBytes: getEnvInt64("MAX_OUTPUT_BYTES", 10*1024*1024),
			KillGrace:      getEnvDuration("KILL_GRACE_PERIOD", 2*time.Second),
		},
		RateLimit: RateLimitConfig{
			Window: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			Max:    getEnvInt("RATE_LIMIT_MAX", 30),
		},
		Dialects: DialectConfig{
			Luau:          getEnvBool("LUAU_ENABLED", true),
			Lua51:         getEnvBool("LUA51_ENABLED", false),
			LuauEncodeKey: getEnvUint8("LUAU_ENCODE_KEY", 203),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvInt64 only accepts positive values; sizes of zero or below would disable the ceilings.
func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil && i > 0 {
			return i
		}
	}
	return def
}

func getEnvUint8(key string, def uint8) uint8 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseUint(v, 10, 8)
		if err == nil {
			return uint8(i)
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("10s") or a bare number of milliseconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
