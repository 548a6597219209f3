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

package base

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// NormalizeValue coerces whatever the driver returned into the gateway's
// enumerated scalar set: nil, int64, float64, string, bool, or an RFC 3339
// date/time string. This is the universal normalization boundary between the
// driver and the rest of the system.
func NormalizeValue(val any, colType *sql.ColumnType) any {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case []byte:
		return normalizeBytes(v, colType)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return v
	case float32:
		return float64(v)
	case bool:
		return v
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// normalizeBytes converts []byte values based on the declared column type.
// Text-ish types become strings; decimals stay strings to preserve precision;
// anything binary is rendered as a string as well since the wire format
// carries no raw bytes.
func normalizeBytes(v []byte, colType *sql.ColumnType) any {
	if colType == nil {
		return string(v)
	}

	typeName := strings.ToUpper(colType.DatabaseTypeName())
	switch {
	case strings.Contains(typeName, "INT"):
		var n int64
		if _, err := fmt.Sscan(string(v), &n); err == nil {
			return n
		}
		return string(v)
	case strings.Contains(typeName, "FLOAT"),
		strings.Contains(typeName, "DOUBLE"),
		strings.Contains(typeName, "REAL"):
		var f float64
		if _, err := fmt.Sscan(string(v), &f); err == nil {
			return f
		}
		return string(v)
	case strings.Contains(typeName, "BOOL"):
		s := string(v)
		return s == "1" || strings.EqualFold(s, "true") || strings.EqualFold(s, "t")
	default:
		// CHAR/TEXT/ENUM/SET/JSON, and DECIMAL/NUMERIC kept as strings
		// to preserve precision.
		return string(v)
	}
}
