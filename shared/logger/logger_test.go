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

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"testing"
)

func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)
	fn()
	return buf.String()
}

func parseEntry(t *testing.T, line string) LogEntry {
	t.Helper()
	start := strings.Index(line, "{")
	if start < 0 {
		t.Fatalf("no JSON in log line: %q", line)
	}
	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(line[start:])), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	return entry
}

func TestNew(t *testing.T) {
	t.Setenv("INSTANCE_ID", "instance-123")

	l := New("query-executor")
	if l.Component != "query-executor" {
		t.Errorf("expected component query-executor, got %s", l.Component)
	}
	if l.InstanceID != "instance-123" {
		t.Errorf("expected instance ID instance-123, got %s", l.InstanceID)
	}
	if l.Container == "" {
		t.Error("expected container to be set from hostname")
	}
}

func TestNewDefaultsInstanceID(t *testing.T) {
	t.Setenv("INSTANCE_ID", "")

	l := New("executor")
	if l.InstanceID != "unknown" {
		t.Errorf("expected unknown instance ID, got %s", l.InstanceID)
	}
}

func TestInfoProducesJSON(t *testing.T) {
	l := New("test")

	out := capture(t, func() {
		l.Info("client-1", "req-1", "query executed", map[string]any{"row_count": 3})
	})

	entry := parseEntry(t, out)
	if entry.Level != INFO {
		t.Errorf("expected INFO level, got %s", entry.Level)
	}
	if entry.ClientID != "client-1" || entry.RequestID != "req-1" {
		t.Errorf("client/request IDs not carried: %+v", entry)
	}
	if entry.Message != "query executed" {
		t.Errorf("unexpected message: %s", entry.Message)
	}
	if entry.Fields["row_count"] != float64(3) {
		t.Errorf("fields not carried: %+v", entry.Fields)
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	l := New("test")

	out := capture(t, func() {
		l.Debug("", "", "debug message", nil)
		l.Info("", "", "info message", nil)
		l.Warn("", "", "warn message", nil)
	})

	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("entries below WARN should be suppressed: %q", out)
	}
	if !strings.Contains(out, "warn message") {
		t.Errorf("WARN entry missing: %q", out)
	}
}

func TestInvalidLogLevelDefaultsToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "VERBOSE")
	l := New("test")

	out := capture(t, func() {
		l.Debug("", "", "debug message", nil)
		l.Info("", "", "info message", nil)
	})

	if strings.Contains(out, "debug message") {
		t.Errorf("DEBUG should be suppressed at default level: %q", out)
	}
	if !strings.Contains(out, "info message") {
		t.Errorf("INFO entry missing: %q", out)
	}
}

func TestErrorWithErr(t *testing.T) {
	l := New("test")

	out := capture(t, func() {
		l.ErrorWithErr("c", "r", "query failed", errors.New("boom"), nil)
	})

	entry := parseEntry(t, out)
	if entry.Level != ERROR {
		t.Errorf("expected ERROR level, got %s", entry.Level)
	}
	if entry.Fields["error"] != "boom" {
		t.Errorf("error string not attached: %+v", entry.Fields)
	}
}

func TestInfoWithDuration(t *testing.T) {
	l := New("test")

	out := capture(t, func() {
		l.InfoWithDuration("c", "r", "done", 12.5, nil)
	})

	entry := parseEntry(t, out)
	if entry.Fields["duration_ms"] != 12.5 {
		t.Errorf("duration not attached: %+v", entry.Fields)
	}
}
