package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Links      LinksConfig
	Blob       BlobConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	Env      string
	LogLevel string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type EncryptionConfig struct {
	Key string
}

// RateLimitConfig covers the global limiter and the stricter one placed
// in front of the token-addressed form routes.
type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
	FormRequests  int
	UseRedis      bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LinksConfig struct {
	DefaultTTLHours int
	MaxTTLHours     int
	MaxPayloadBytes int
	RetentionDays   int
	SweepCron       string
}

type BlobConfig struct {
	Provider        string // s3, gcs, memory
	Bucket          string
	Region          string
	Endpoint        string
	AccessKey       string
	SecretKey       string
	CredentialsFile string
	Prefix          string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (l *LinksConfig) DefaultTTL() time.Duration {
	return time.Duration(l.DefaultTTLHours) * time.Hour
}

func (l *LinksConfig) MaxTTL() time.Duration {
	return time.Duration(l.MaxTTLHours) * time.Hour
}

// Retention is how long an expired, never-redeemed link is kept before the
// sweeper revokes it. Zero disables the sweep.
func (l *LinksConfig) Retention() time.Duration {
	return time.Duration(l.RetentionDays) * 24 * time.Hour
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "formlink")
	v.SetDefault("DATABASE_PASSWORD", "formlink_secret")
	v.SetDefault("DATABASE_NAME", "formlink")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_FORM_REQUESTS", 20)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("LINK_DEFAULT_TTL_HOURS", 72)
	v.SetDefault("LINK_MAX_TTL_HOURS", 24*30)
	v.SetDefault("LINK_MAX_PAYLOAD_BYTES", 256*1024)
	v.SetDefault("LINK_RETENTION_DAYS", 30)
	v.SetDefault("LINK_SWEEP_CRON", "0 3 * * *")
	v.SetDefault("BLOB_PROVIDER", "memory")
	v.SetDefault("BLOB_BUCKET", "")
	v.SetDefault("BLOB_REGION", "us-east-1")
	v.SetDefault("BLOB_ENDPOINT", "")
	v.SetDefault("BLOB_PREFIX", "submissions")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:     v.GetString("SERVER_HOST"),
			Port:     v.GetInt("SERVER_PORT"),
			Env:      v.GetString("SERVER_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			FormRequests:  v.GetInt("RATE_LIMIT_FORM_REQUESTS"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Links: LinksConfig{
			DefaultTTLHours: v.GetInt("LINK_DEFAULT_TTL_HOURS"),
			MaxTTLHours:     v.GetInt("LINK_MAX_TTL_HOURS"),
			MaxPayloadBytes: v.GetInt("LINK_MAX_PAYLOAD_BYTES"),
			RetentionDays:   v.GetInt("LINK_RETENTION_DAYS"),
			SweepCron:       v.GetString("LINK_SWEEP_CRON"),
		},
		Blob: BlobConfig{
			Provider:        v.GetString("BLOB_PROVIDER"),
			Bucket:          v.GetString("BLOB_BUCKET"),
			Region:          v.GetString("BLOB_REGION"),
			Endpoint:        v.GetString("BLOB_ENDPOINT"),
			AccessKey:       v.GetString("BLOB_ACCESS_KEY"),
			SecretKey:       v.GetString("BLOB_SECRET_KEY"),
			CredentialsFile: v.GetString("BLOB_CREDENTIALS_FILE"),
			Prefix:          v.GetString("BLOB_PREFIX"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Links.DefaultTTLHours < 0 || c.Links.MaxTTLHours < 0 {
		return fmt.Errorf("link TTL hours must not be negative")
	}
	if c.Links.DefaultTTLHours > c.Links.MaxTTLHours {
		return fmt.Errorf("LINK_DEFAULT_TTL_HOURS (%d) exceeds LINK_MAX_TTL_HOURS (%d)",
			c.Links.DefaultTTLHours, c.Links.MaxTTLHours)
	}
	if c.Links.MaxPayloadBytes <= 0 {
		return fmt.Errorf("LINK_MAX_PAYLOAD_BYTES must be positive")
	}
	switch c.Blob.Provider {
	case "memory":
	case "s3", "gcs":
		if c.Blob.Bucket == "" {
			return fmt.Errorf("BLOB_BUCKET is required for provider %q", c.Blob.Provider)
		}
	default:
		return fmt.Errorf("unsupported BLOB_PROVIDER %q", c.Blob.Provider)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
