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
	"context"
	"time"

	"github.com/google/uuid"
)

// Service identifies the emulator that produced a record.
const (
	ServiceSSH  = "ssh"
	ServiceHTTP = "http"
	ServiceFTP  = "ftp"
)

// Attack is the main attack event record. ThreatType, Confidence, Country
// and ASN are nullable; Confidence is present only when the label is
// ML-derived.
type Attack struct {
	ID         uuid.UUID              `json:"id"`
	IP         string                 `json:"ip"`
	Timestamp  time.Time              `json:"timestamp"`
	Service    string                 `json:"service"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	ThreatType *string                `json:"threat_type,omitempty"`
	Confidence *float64               `json:"confidence,omitempty"`
	Country    *string                `json:"country,omitempty"`
	ASN        *int                   `json:"asn,omitempty"`
}

// Credential is a captured username/password attempt. Values are stored
// verbatim as received; capture fidelity is the point. Success reflects what
// the attacker observed, not truth.
type Credential struct {
	ID       uuid.UUID `json:"id"`
	AttackID uuid.UUID `json:"attack_id"`
	Username string    `json:"username"`
	Password string    `json:"password"`
	Success  bool      `json:"success"`
}

// CommandEntry is one command captured during a session.
type CommandEntry struct {
	Cmd       string    `json:"cmd"`
	Timestamp time.Time `json:"timestamp"`
}

// Session tracks the lifecycle of an interactive shell or control channel.
// EndTime is nil until the session is sealed.
type Session struct {
	ID        uuid.UUID      `json:"id"`
	AttackID  uuid.UUID      `json:"attack_id"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Commands  []CommandEntry `json:"commands"`
}

// Recorder is the persistence contract the emulators write through. It is
// implemented by *Store; tests substitute in-memory fakes.
type Recorder interface {
	// InsertAttack assigns the record's ID and timestamp if absent and
	// persists it, returning the assigned ID.
	InsertAttack(ctx context.Context, a *Attack) (uuid.UUID, error)

	// InsertCredential persists a credential attempt tied to an attack.
	InsertCredential(ctx context.Context, attackID uuid.UUID, username, password string, success bool) (uuid.UUID, error)

	// OpenSession creates a Session with start_time = now and an empty
	// command log.
	OpenSession(ctx context.Context, attackID uuid.UUID) (uuid.UUID, error)

	// AppendCommand appends one command to a session's log. Appends to a
	// closed session are dropped.
	AppendCommand(ctx context.Context, sessionID uuid.UUID, cmd string) error

	// CloseSession seals a session. Closing an already closed session is a
	// no-op; the first end_time wins.
	CloseSession(ctx context.Context, sessionID uuid.UUID, endTime time.Time) error
}
