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
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"sqlgate/gateway/base"
	"sqlgate/gateway/executor"
	"sqlgate/gateway/schema"
	"sqlgate/gateway/service"
	"sqlgate/gateway/shared/logger"
)

type handlers struct {
	svc *service.Service
	log *logger.Logger
}

type queryRequest struct {
	SQL            string `json:"sql"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	UseCache       *bool  `json:"use_cache,omitempty"`
}

type validateRequest struct {
	SQL string `json:"sql"`
}

type refreshRequest struct {
	Scope string `json:"scope,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// clientID identifies the caller for rate limiting. Absent headers fall
// back to a shared bucket rather than unlimited access.
func clientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	return "anonymous"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the gateway error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var validationErr *base.ValidationError
	var timeoutErr *base.TimeoutError
	var poolTimeoutErr *base.PoolTimeoutError
	var connErr *base.ConnectionError
	var execErr *base.ExecutionError

	switch {
	case errors.Is(err, service.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: err.Error()})
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_failed", Message: err.Error()})
	case errors.Is(err, schema.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: err.Error()})
	case errors.As(err, &timeoutErr), errors.As(err, &poolTimeoutErr):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "timeout", Message: err.Error()})
	case errors.As(err, &connErr):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "connection_failed", Message: err.Error()})
	case errors.As(err, &execErr):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "execution_failed", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Message: err.Error()})
	}
}

func (h *handlers) executeQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	opts := executor.DefaultOptions()
	if req.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	if req.UseCache != nil {
		opts.UseCache = *req.UseCache
	}

	result, err := h.svc.ExecuteQuery(r.Context(), clientID(r), req.SQL, &opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) validateQuery(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	report, err := h.svc.ValidateQuery(r.Context(), clientID(r), req.SQL)
	if err != nil {
		writeError(w, err)
		return
	}
	// Invalid statements are a successful validation outcome, not an
	// HTTP error.
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) discoverDatabases(w http.ResponseWriter, r *http.Request) {
	databases, err := h.svc.DiscoverDatabases(r.Context(), clientID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"databases": databases})
}

func (h *handlers) discoverTables(w http.ResponseWriter, r *http.Request) {
	database := mux.Vars(r)["database"]
	tables, err := h.svc.DiscoverTables(r.Context(), clientID(r), database)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"database": database, "tables": tables})
}

func (h *handlers) getTableSchema(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	desc, err := h.svc.GetTableSchema(r.Context(), clientID(r), vars["database"], vars["table"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (h *handlers) refreshCache(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.Body != nil {
		// An empty body means a full refresh.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ok, err := h.svc.RefreshCache(r.Context(), clientID(r), req.Scope)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "unknown refresh scope"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": true, "scope": req.Scope})
}

func (h *handlers) serverStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetServerStats())
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	status := h.svc.Health(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
