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
	"fmt"
)

// ViolationCategory classifies why the validator rejected a statement.
type ViolationCategory string

const (
	CategoryEmpty            ViolationCategory = "empty"
	CategoryNonSelect        ViolationCategory = "non_select"
	CategoryForbiddenKeyword ViolationCategory = "forbidden_keyword"
	CategoryDangerousPattern ViolationCategory = "dangerous_pattern"
	CategorySyntax           ViolationCategory = "syntax"
)

// ValidationError means the caller's input violates the security policy or
// a parameter limit. It is deterministic and never retried.
type ValidationError struct {
	Category ViolationCategory
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("query validation failed (%s): %s", e.Category, e.Reason)
}

// NewValidationError creates a ValidationError with the given category and reason.
func NewValidationError(category ViolationCategory, format string, args ...any) *ValidationError {
	return &ValidationError{
		Category: category,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// ExecutionError means the database rejected or failed the statement.
// The driver's message is passed through; the gateway does not auto-retry.
type ExecutionError struct {
	Operation string
	Message   string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError wraps a driver failure for one operation.
func NewExecutionError(operation, message string, err error) *ExecutionError {
	return &ExecutionError{Operation: operation, Message: message, Err: err}
}

// TimeoutError means the database execution step exceeded its budget.
// Distinct from ExecutionError so callers can tell "slow" from "wrong".
type TimeoutError struct {
	Operation string
	Timeout   string
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// PoolTimeoutError means no connection became available within the
// acquisition timeout.
type PoolTimeoutError struct {
	Timeout string
}

func (e *PoolTimeoutError) Error() string {
	return fmt.Sprintf("connection pool exhausted: no connection available within %s", e.Timeout)
}

// ConnectionError means the gateway cannot reach the database at all.
// Raised during connection creation and health checks.
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("database connection failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("database connection failed: %s", e.Message)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
