// Copyright 2025 SQLGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config collects the gateway's configuration values from the
// environment. Components never read the environment themselves; they
// receive values from here.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds every value the gateway consumes.
type Config struct {
	// Database
	Driver      string // mysql or postgres
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	TLSRootCert string // Optional CA certificate path

	// Cache
	CacheTTL        time.Duration
	CacheMaxEntries int

	// Pool
	PoolMinConnections   int
	PoolMaxConnections   int
	PoolAcquireTimeout   time.Duration
	PoolIdleTimeout      time.Duration
	PoolMaxConnectionAge time.Duration

	// Executor
	MaxQueryTimeout time.Duration
	MaxResultRows   int

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RedisURL          string // Optional shared window backend

	// Validator
	PolicyFile string // Optional YAML keyword overrides

	// Discovery
	DiscoveryDegrade bool

	// Admin HTTP surface
	ListenAddr string
}

// FromEnv builds a Config from environment variables with defaults.
func FromEnv() *Config {
	return &Config{
		Driver:      getEnv("DB_DRIVER", "mysql"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnvInt("DB_PORT", 3306),
		DBUser:      getEnv("DB_USER", "root"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      getEnv("DB_NAME", ""),
		TLSRootCert: os.Getenv("DB_TLS_ROOT_CERT"),

		CacheTTL:        getEnvSeconds("CACHE_TTL_SECONDS", 300),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 1000),

		PoolMinConnections:   getEnvInt("POOL_MIN_CONNECTIONS", 2),
		PoolMaxConnections:   getEnvInt("POOL_MAX_CONNECTIONS", 10),
		PoolAcquireTimeout:   getEnvSeconds("POOL_ACQUIRE_TIMEOUT_SECONDS", 30),
		PoolIdleTimeout:      getEnvSeconds("POOL_IDLE_TIMEOUT_SECONDS", 300),
		PoolMaxConnectionAge: getEnvSeconds("POOL_MAX_CONNECTION_AGE_SECONDS", 3600),

		MaxQueryTimeout: getEnvSeconds("MAX_QUERY_TIMEOUT_SECONDS", 30),
		MaxResultRows:   getEnvInt("MAX_RESULT_ROWS", 1000),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvSeconds("RATE_LIMIT_WINDOW_SECONDS", 60),
		RedisURL:          os.Getenv("REDIS_URL"),

		PolicyFile: os.Getenv("POLICY_FILE"),

		DiscoveryDegrade: getEnvBool("DISCOVERY_DEGRADE", true),

		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
	}
}

// mysqlTLSConfigName is the registered name for the custom CA, referenced
// from the DSN's tls parameter.
const mysqlTLSConfigName = "sqlgate"

// DSN builds the driver-specific data source name. For MySQL a custom CA is
// registered with the driver under a named TLS config; production defaults
// (parseTime, UTC, utf8mb4, single statements, server-side prepares) are
// always applied.
func (c *Config) DSN() (string, error) {
	switch c.Driver {
	case "mysql":
		return c.mysqlDSN()
	case "postgres":
		return c.postgresDSN()
	default:
		return "", fmt.Errorf("unsupported driver: %q", c.Driver)
	}
}

func (c *Config) mysqlDSN() (string, error) {
	if c.DBName == "" {
		return "", fmt.Errorf("database name is required")
	}

	params := "parseTime=true&loc=UTC&charset=utf8mb4&collation=utf8mb4_unicode_ci" +
		"&timeout=10s&readTimeout=30s&writeTimeout=30s" +
		"&multiStatements=false&interpolateParams=false"

	if c.TLSRootCert != "" {
		if err := c.registerMySQLTLS(); err != nil {
			return "", err
		}
		params += "&tls=" + mysqlTLSConfigName
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, params), nil
}

func (c *Config) registerMySQLTLS() error {
	pem, err := os.ReadFile(c.TLSRootCert)
	if err != nil {
		return fmt.Errorf("failed to read TLS root certificate: %w", err)
	}

	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return fmt.Errorf("no certificates found in %s", c.TLSRootCert)
	}

	return mysql.RegisterTLSConfig(mysqlTLSConfigName, &tls.Config{RootCAs: roots})
}

func (c *Config) postgresDSN() (string, error) {
	if c.DBName == "" {
		return "", fmt.Errorf("database name is required")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s connect_timeout=10",
		c.DBHost, c.DBPort, c.DBUser, c.DBName)
	if c.DBPassword != "" {
		dsn += " password=" + c.DBPassword
	}
	if c.TLSRootCert != "" {
		dsn += " sslmode=verify-ca sslrootcert=" + c.TLSRootCert
	} else {
		dsn += " sslmode=disable"
	}
	return dsn, nil
}

// getEnv returns the environment value or a default.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSeconds)) * time.Second
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
