package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm/logger"

	"todo-api/internal/cache"
	"todo-api/internal/database"
)

const (
	AuthModeIAM      = "iam"
	AuthModePassword = "password"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Log       LogConfig       `json:"log"`
	Lambda    LambdaConfig    `json:"lambda"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Environment     string        `json:"environment"`
}

type DatabaseConfig struct {
	Endpoint        string        `json:"endpoint"`
	Region          string        `json:"region"`
	User            string        `json:"user"`
	Name            string        `json:"name"`
	Port            int           `json:"port"`
	SSLMode         string        `json:"ssl_mode"`
	AuthMode        string        `json:"auth_mode"`
	Password        string        `json:"-"`
	TokenTTL        time.Duration `json:"token_ttl"`
	ConnectTimeout  time.Duration `json:"connect_timeout"`
	QueryTimeout    time.Duration `json:"query_timeout"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled      bool          `json:"enabled"`
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	Password     string        `json:"-"`
	DB           int           `json:"db"`
	KeyPrefix    string        `json:"key_prefix"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	CacheTTL     time.Duration `json:"cache_ttl"`
	WarmInterval time.Duration `json:"warm_interval"`
}

type AuthConfig struct {
	JWTSecret string `json:"-"`
	JWTIssuer string `json:"jwt_issuer"`
}

// Enabled reports whether bearer tokens are required in server mode.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	RequestsPerMin  int           `json:"requests_per_minute"`
	BurstSize       int           `json:"burst_size"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type LambdaConfig struct {
	Handler string `json:"handler"`
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("HOST", "localhost"),
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Endpoint:        getEnv("DSQL_CLUSTER_ENDPOINT", ""),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			User:            getEnv("DB_USER", "admin"),
			Name:            getEnv("DB_NAME", "postgres"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			SSLMode:         getEnv("DB_SSL_MODE", "verify-full"),
			AuthMode:        strings.ToLower(getEnv("DB_AUTH_MODE", AuthModeIAM)),
			Password:        getEnv("DB_PASSWORD", ""),
			TokenTTL:        getEnvAsDuration("DB_TOKEN_TTL", 10*time.Minute),
			ConnectTimeout:  getEnvAsDuration("DB_CONNECT_TIMEOUT", 30*time.Second),
			QueryTimeout:    getEnvAsDuration("DB_QUERY_TIMEOUT", 30*time.Second),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 1),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 1),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 10*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "todo-api:"),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 1),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
			CacheTTL:     getEnvAsDuration("CACHE_TTL", 30*time.Second),
			WarmInterval: getEnvAsDuration("CACHE_WARM_INTERVAL", time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTIssuer: getEnv("JWT_ISSUER", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin:  getEnvAsInt("RATE_LIMIT_RPM", 100),
			BurstSize:       getEnvAsInt("RATE_LIMIT_BURST", 10),
			CleanupInterval: getEnvAsDuration("RATE_LIMIT_CLEANUP", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Lambda: LambdaConfig{
			Handler: getEnv("TODO_HANDLER", ""),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Database.AuthMode {
	case AuthModeIAM, AuthModePassword:
	default:
		return fmt.Errorf("DB_AUTH_MODE must be %q or %q, got %q", AuthModeIAM, AuthModePassword, c.Database.AuthMode)
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}

	if c.IsProduction() {
		if c.Database.Endpoint == "" {
			return fmt.Errorf("DSQL_CLUSTER_ENDPOINT is required in production")
		}
		if c.Database.AuthMode == AuthModePassword && c.Database.Password == "" {
			return fmt.Errorf("database password is required in production when DB_AUTH_MODE=password")
		}
	}

	return nil
}

// DatabaseClientConfig translates the environment into the database
// client's settings.
func (c *Config) DatabaseClientConfig() *database.Config {
	cfg := database.DefaultConfig()
	cfg.Endpoint = c.Database.Endpoint
	cfg.Region = c.Database.Region
	cfg.User = c.Database.User
	cfg.Name = c.Database.Name
	cfg.Port = c.Database.Port
	cfg.SSLMode = c.Database.SSLMode
	cfg.TokenTTL = c.Database.TokenTTL
	cfg.ConnectTimeout = c.Database.ConnectTimeout
	cfg.QueryTimeout = c.Database.QueryTimeout
	cfg.MaxOpenConns = c.Database.MaxOpenConns
	cfg.MaxIdleConns = c.Database.MaxIdleConns
	cfg.ConnMaxLifetime = c.Database.ConnMaxLifetime
	if strings.EqualFold(c.Log.Level, "debug") {
		cfg.LogLevel = logger.Info
	}
	return cfg
}

func (c *Config) CacheConfig() *cache.CacheConfig {
	return &cache.CacheConfig{
		Addr:         c.GetRedisAddr(),
		Password:     c.Redis.Password,
		DB:           c.Redis.DB,
		KeyPrefix:    c.Redis.KeyPrefix,
		PoolSize:     c.Redis.PoolSize,
		MinIdleConns: c.Redis.MinIdleConns,
		MaxRetries:   c.Redis.MaxRetries,
		DialTimeout:  c.Redis.DialTimeout,
		ReadTimeout:  c.Redis.ReadTimeout,
		WriteTimeout: c.Redis.WriteTimeout,
	}
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
