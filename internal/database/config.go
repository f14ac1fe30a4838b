package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm/logger"
)

type Config struct {
	Endpoint        string
	Region          string
	User            string
	Name            string
	Port            int
	SSLMode         string
	TokenTTL        time.Duration
	ConnectTimeout  time.Duration
	QueryTimeout    time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

func DefaultConfig() *Config {
	return &Config{
		Region:          "us-east-1",
		User:            "admin",
		Name:            "postgres",
		Port:            5432,
		SSLMode:         "verify-full",
		TokenTTL:        10 * time.Minute,
		ConnectTimeout:  30 * time.Second,
		QueryTimeout:    30 * time.Second,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 10 * time.Minute,
		LogLevel:        logger.Warn,
	}
}

// Host strips the scheme and default TLS port that cluster endpoints are
// often configured with.
func (c *Config) Host() string {
	host := strings.TrimPrefix(c.Endpoint, "https://")
	return strings.TrimSuffix(host, ":443")
}

// DSN describes the connection without a password; the password is supplied
// per physical connection by the token signer.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s connect_timeout=%d",
		c.Host(),
		c.Port,
		c.User,
		c.Name,
		c.SSLMode,
		int(c.ConnectTimeout.Seconds()),
	)
}

func (c *Config) validate() error {
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Region == "" {
		return ErrMissingRegion
	}
	return nil
}
