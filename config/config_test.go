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

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, "mysql", cfg.Driver)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, 3306, cfg.DBPort)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 1000, cfg.CacheMaxEntries)
	assert.Equal(t, 2, cfg.PoolMinConnections)
	assert.Equal(t, 10, cfg.PoolMaxConnections)
	assert.Equal(t, 30*time.Second, cfg.MaxQueryTimeout)
	assert.Equal(t, 1000, cfg.MaxResultRows)
	assert.Equal(t, 100, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.True(t, cfg.DiscoveryDegrade)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("CACHE_TTL_SECONDS", "60")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("DISCOVERY_DEGRADE", "false")

	cfg := FromEnv()

	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.RateLimitRequests)
	assert.False(t, cfg.DiscoveryDegrade)
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("DISCOVERY_DEGRADE", "maybe")

	cfg := FromEnv()
	assert.Equal(t, 3306, cfg.DBPort)
	assert.True(t, cfg.DiscoveryDegrade)
}

func TestMySQLDSN(t *testing.T) {
	cfg := &Config{
		Driver:     "mysql",
		DBHost:     "db.internal",
		DBPort:     3306,
		DBUser:     "gateway",
		DBPassword: "secret",
		DBName:     "shop",
	}

	dsn, err := cfg.DSN()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(dsn, "gateway:secret@tcp(db.internal:3306)/shop?"))
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "multiStatements=false")
	assert.Contains(t, dsn, "interpolateParams=false")
	assert.NotContains(t, dsn, "tls=")
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		Driver:     "postgres",
		DBHost:     "db.internal",
		DBPort:     5432,
		DBUser:     "gateway",
		DBPassword: "secret",
		DBName:     "shop",
	}

	dsn, err := cfg.DSN()
	require.NoError(t, err)

	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "dbname=shop")
	assert.Contains(t, dsn, "sslmode=disable")

	cfg.TLSRootCert = "/etc/ssl/ca.pem"
	dsn, err = cfg.DSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "sslmode=verify-ca")
}

func TestDSNRequiresDatabaseName(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres"} {
		cfg := &Config{Driver: driver, DBHost: "h", DBPort: 1, DBUser: "u"}
		_, err := cfg.DSN()
		assert.Error(t, err, driver)
	}
}

func TestDSNUnsupportedDriver(t *testing.T) {
	cfg := &Config{Driver: "oracle", DBName: "x"}
	_, err := cfg.DSN()
	assert.Error(t, err)
}
