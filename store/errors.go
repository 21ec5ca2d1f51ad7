// Copyright 2025 AxonFlow
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

package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"axonflow/honeynet/shared/metrics"
)

var (
	// ErrStoreUnavailable indicates a backing-store I/O failure. Handlers
	// log it and keep serving the peer; deception takes precedence over
	// capture completeness.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrForeignKeyMissing indicates a write referenced an attack or
	// session id that does not exist.
	ErrForeignKeyMissing = errors.New("referenced record does not exist")

	// ErrSessionNotFound indicates the session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
)

// pgForeignKeyViolation is the PostgreSQL SQLSTATE for FK violations.
const pgForeignKeyViolation = "23503"

// classifyErr maps a driver error onto the store error taxonomy and bumps
// the per-operation failure counter.
func classifyErr(op string, err error) error {
	if err == nil {
		return nil
	}
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("%s: %w", op, ErrForeignKeyMissing)
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrStoreUnavailable)
}
