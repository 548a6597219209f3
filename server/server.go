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

// Package server assembles the gateway from configuration and serves its
// operational HTTP surface. The tool-protocol framing that exposes gateway
// operations to remote agents lives outside this repository; this surface
// covers health, stats, metrics and direct operation endpoints.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"sqlgate/gateway/cache"
	"sqlgate/gateway/config"
	"sqlgate/gateway/executor"
	"sqlgate/gateway/monitor"
	"sqlgate/gateway/pool"
	"sqlgate/gateway/ratelimit"
	"sqlgate/gateway/schema"
	"sqlgate/gateway/service"
	"sqlgate/gateway/shared/logger"
	"sqlgate/gateway/validator"
)

// Run builds the gateway from the environment and blocks serving HTTP until
// SIGINT/SIGTERM.
func Run() {
	log := logger.New("server")
	cfg := config.FromEnv()

	svc, cleanup, err := Build(cfg)
	if err != nil {
		log.ErrorWithErr("", "", "failed to build gateway", err, nil)
		os.Exit(1)
	}
	defer cleanup()

	router := NewRouter(svc)
	handler := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "X-Client-ID"},
	}).Handler(router)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("", "", "gateway listening", map[string]any{
			"addr":   cfg.ListenAddr,
			"driver": cfg.Driver,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.ErrorWithErr("", "", "http server failed", err, nil)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("", "", "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// Build wires every gateway component from configuration. The returned
// cleanup closes the pool and the shared database handle.
func Build(cfg *config.Config) (*service.Service, func(), error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	// The explicit pool owns connection lifetimes; the shared handle only
	// hands out dedicated sessions, so its own pooling is left open-ended.
	db.SetMaxOpenConns(cfg.PoolMaxConnections)

	dialect, err := schema.ForDriver(cfg.Driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	policy, err := validator.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	valid := validator.New(validator.WithPolicy(policy))

	cacheManager := cache.NewManager(cfg.CacheTTL, cfg.CacheMaxEntries)

	connPool := pool.New(pool.Config{
		MinConnections:   cfg.PoolMinConnections,
		MaxConnections:   cfg.PoolMaxConnections,
		AcquireTimeout:   cfg.PoolAcquireTimeout,
		IdleTimeout:      cfg.PoolIdleTimeout,
		MaxConnectionAge: cfg.PoolMaxConnectionAge,
	}, func(ctx context.Context) (pool.Conn, error) {
		return db.Conn(ctx)
	}, nil)

	limiterOpts := []ratelimit.Option{}
	if cfg.RedisURL != "" {
		redisClient, rerr := ratelimit.NewRedisClient(context.Background(), cfg.RedisURL)
		if rerr != nil {
			// A missing Redis never blocks startup: the in-process
			// window takes over.
			logger.New("server").Warn("", "", "redis unavailable, using in-memory rate limiting",
				map[string]any{"error": rerr.Error()})
		} else {
			limiterOpts = append(limiterOpts, ratelimit.WithRedis(redisClient))
		}
	}
	limiter := ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow, limiterOpts...)

	mon := monitor.New()

	exec := executor.New(executor.Config{
		DefaultTimeout: cfg.MaxQueryTimeout,
		MaxTimeout:     cfg.MaxQueryTimeout,
		MaxResultRows:  cfg.MaxResultRows,
		CacheTTL:       cfg.CacheTTL,
	}, connPool, cacheManager, valid)

	insp := schema.NewInspector(connPool, cacheManager, dialect,
		schema.WithCacheTTL(cfg.CacheTTL),
		schema.WithDegradation(cfg.DiscoveryDegrade))

	svc := service.New(exec, insp, valid, limiter, mon, cacheManager, connPool)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = connPool.Shutdown(ctx)
		_ = db.Close()
	}

	return svc, cleanup, nil
}

// NewRouter builds the operational HTTP surface over a Service.
func NewRouter(svc *service.Service) *mux.Router {
	h := &handlers{svc: svc, log: logger.New("http")}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/query", h.executeQuery).Methods("POST")
	api.HandleFunc("/validate", h.validateQuery).Methods("POST")
	api.HandleFunc("/databases", h.discoverDatabases).Methods("GET")
	api.HandleFunc("/databases/{database}/tables", h.discoverTables).Methods("GET")
	api.HandleFunc("/databases/{database}/tables/{table}/schema", h.getTableSchema).Methods("GET")
	api.HandleFunc("/cache/refresh", h.refreshCache).Methods("POST")
	api.HandleFunc("/stats", h.serverStats).Methods("GET")

	return r
}
