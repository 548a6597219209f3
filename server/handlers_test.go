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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlgate/gateway/cache"
	"sqlgate/gateway/executor"
	"sqlgate/gateway/monitor"
	"sqlgate/gateway/pool"
	"sqlgate/gateway/ratelimit"
	"sqlgate/gateway/schema"
	"sqlgate/gateway/service"
	"sqlgate/gateway/validator"
)

func newTestRouter(t *testing.T, rateLimit int) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	p := pool.New(pool.Config{MinConnections: 1, MaxConnections: 2, AcquireTimeout: time.Second},
		func(ctx context.Context) (pool.Conn, error) { return db, nil }, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})

	c := cache.NewManager(time.Minute, 100)
	valid := validator.New()
	exec := executor.New(executor.Config{}, p, c, valid)
	dialect, err := schema.ForDriver("mysql")
	require.NoError(t, err)
	insp := schema.NewInspector(p, c, dialect)
	svc := service.New(exec, insp, valid, ratelimit.New(rateLimit, time.Minute), monitor.New(), c, p)

	return NewRouter(svc), mock
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", "test-client")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestQueryEndpoint(t *testing.T) {
	h, mock := newTestRouter(t, 100)

	mock.ExpectQuery("SELECT id FROM users").WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	rec := doJSON(t, h, "POST", "/api/v1/query", `{"sql":"SELECT id FROM users"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload struct {
		Columns  []string `json:"columns"`
		RowCount int      `json:"row_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, []string{"id"}, payload.Columns)
	assert.Equal(t, 1, payload.RowCount)
}

func TestQueryEndpointRejectsNonSelect(t *testing.T) {
	h, _ := newTestRouter(t, 100)

	rec := doJSON(t, h, "POST", "/api/v1/query", `{"sql":"DROP TABLE users"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var payload errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "validation_failed", payload.Error)
}

func TestQueryEndpointBadJSON(t *testing.T) {
	h, _ := newTestRouter(t, 100)

	rec := doJSON(t, h, "POST", "/api/v1/query", "{broken")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, 100)

	rec := doJSON(t, h, "POST", "/api/v1/validate", `{"sql":"DELETE FROM users"}`)
	require.Equal(t, http.StatusOK, rec.Code, "invalid SQL is a payload, not an HTTP error")

	var report validator.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.Valid)
}

func TestRateLimitedRequestsGet429(t *testing.T) {
	h, _ := newTestRouter(t, 1)

	rec := doJSON(t, h, "POST", "/api/v1/validate", `{"sql":"SELECT 1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/validate", `{"sql":"SELECT 1"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSchemaEndpointNotFound(t *testing.T) {
	h, mock := newTestRouter(t, 100)

	mock.ExpectQuery("information_schema.columns").WithArgs("shop", "ghost").WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "column_type", "is_nullable", "column_default",
			"column_key", "character_maximum_length", "numeric_precision", "numeric_scale",
			"ordinal_position"}))

	rec := doJSON(t, h, "GET", "/api/v1/databases/shop/tables/ghost/schema", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, 100)

	rec := doJSON(t, h, "GET", "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats service.ServerStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.GreaterOrEqual(t, stats.Pool.Total, 0)
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, 100)

	rec := doJSON(t, h, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, 100)

	rec := doJSON(t, h, "POST", "/api/v1/cache/refresh", `{"scope":"tables"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, "POST", "/api/v1/cache/refresh", `{"scope":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
