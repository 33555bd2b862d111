package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	Sessions    SessionConfig
	CORS        CORSConfig
	Log         LogConfig
	Password    PasswordConfig
	Permissions PermissionsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig governs token issuance. Access tokens are short-lived JWTs
// used on API requests; the session token is the opaque value the client
// persists and the server verifies against storage.
type SessionConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	SessionExpiry     time.Duration
	Issuer            string
	SingleSession     bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PasswordConfig tunes the complexity policy and the reuse window.
type PasswordConfig struct {
	MinLength    int
	HistoryDepth int
}

// PermissionsConfig controls permission resolution.
type PermissionsConfig struct {
	CacheTTL time.Duration
	// FullAccessTitles lists the function titles granted an unrestricted
	// permission record regardless of role or stored overrides.
	FullAccessTitles []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Sessions = SessionConfig{
		AccessTokenSecret: v.GetString("ACCESS_TOKEN_SECRET"),
		AccessTokenExpiry: parseDuration(v.GetString("ACCESS_TOKEN_EXPIRY"), time.Hour),
		SessionExpiry:     parseDuration(v.GetString("SESSION_EXPIRY"), 30*24*time.Hour),
		Issuer:            v.GetString("TOKEN_ISSUER"),
		SingleSession:     v.GetBool("SINGLE_SESSION"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Password = PasswordConfig{
		MinLength:    v.GetInt("PASSWORD_MIN_LENGTH"),
		HistoryDepth: v.GetInt("PASSWORD_HISTORY_DEPTH"),
	}

	cfg.Permissions = PermissionsConfig{
		CacheTTL:         parseDuration(v.GetString("PERMISSIONS_CACHE_TTL"), 5*time.Minute),
		FullAccessTitles: splitAndTrim(v.GetString("FULL_ACCESS_TITLES")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lexcase_identity")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ACCESS_TOKEN_SECRET", "dev_secret")
	v.SetDefault("ACCESS_TOKEN_EXPIRY", "1h")
	v.SetDefault("SESSION_EXPIRY", "720h")
	v.SetDefault("TOKEN_ISSUER", "lexcase-identity")
	v.SetDefault("SINGLE_SESSION", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PASSWORD_MIN_LENGTH", 8)
	v.SetDefault("PASSWORD_HISTORY_DEPTH", 3)

	v.SetDefault("PERMISSIONS_CACHE_TTL", "5m")
	v.SetDefault("FULL_ACCESS_TITLES", "Managing Partner,IT Administrator")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
