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

// Package main is the entry point for the SQLGate service.
//
// SQLGate is a read-only database access gateway that:
// - Validates statements against a SELECT-only policy before execution
// - Caches query results and schema metadata with TTL expiry
// - Pools database connections with health checking
// - Enforces per-client rate limits
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	LISTEN_ADDR - HTTP listen address (default: :8080)
//	DB_DRIVER - mysql or postgres (default: mysql)
//	DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME - database connection
//	DB_TLS_ROOT_CERT - optional CA certificate for verified TLS
//	CACHE_TTL_SECONDS - result and schema cache TTL (default: 300)
//	CACHE_MAX_ENTRIES - cache capacity before LRU eviction (default: 1000)
//	POOL_MIN_CONNECTIONS, POOL_MAX_CONNECTIONS - pool sizing (default: 2, 10)
//	POOL_ACQUIRE_TIMEOUT_SECONDS - wait bound for a pooled connection (default: 30)
//	MAX_QUERY_TIMEOUT_SECONDS - per-query execution ceiling (default: 30)
//	MAX_RESULT_ROWS - truncation threshold (default: 1000)
//	RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW_SECONDS - admission window (default: 100/60)
//	REDIS_URL - optional shared rate-limit backend
//	POLICY_FILE - optional YAML validator policy overrides
//	LOG_LEVEL - DEBUG, INFO, WARN or ERROR (default: INFO)
package main

import "sqlgate/gateway/server"

func main() {
	server.Run()
}
