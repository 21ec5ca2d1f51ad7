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
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"axonflow/honeynet/config"
	"axonflow/honeynet/shared/logger"
)

// Store is the PostgreSQL-backed record store.
type Store struct {
	db   *sql.DB
	log  *logger.Logger
	echo bool
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Pool sizing mirrors the pool_size/max_overflow configuration split:
	// pool_size idle connections, pool_size+max_overflow open at peak.
	db.SetMaxOpenConns(cfg.PoolSize + cfg.MaxOverflow)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	st := New(db)
	st.echo = cfg.Echo
	return st, nil
}

// New wraps an existing database handle. Used by Open and by tests that
// provide a mock handle.
func New(db *sql.DB) *Store {
	return &Store{
		db:  db,
		log: logger.New("store"),
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the backing store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// logStatement echoes the SQL about to run at debug level when the
// database.echo option is on.
func (s *Store) logStatement(op, query string) {
	if !s.echo {
		return
	}
	s.log.Debug("", "store_statement", map[string]interface{}{
		"operation": op,
		"query":     query,
	})
}

// InitSchema creates the capture tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS attacks (
			id UUID PRIMARY KEY,
			ip VARCHAR(45) NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			service VARCHAR(50) NOT NULL,
			payload JSONB,
			threat_type VARCHAR(50),
			confidence DOUBLE PRECISION,
			country VARCHAR(2),
			asn INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attacks_ip ON attacks(ip)`,
		`CREATE INDEX IF NOT EXISTS idx_attacks_timestamp ON attacks(timestamp)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id UUID PRIMARY KEY,
			attack_id UUID NOT NULL REFERENCES attacks(id) ON DELETE CASCADE,
			username VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			success BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY,
			attack_id UUID NOT NULL REFERENCES attacks(id) ON DELETE CASCADE,
			start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			end_time TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS session_commands (
			id BIGSERIAL PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			cmd TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_commands_session ON session_commands(session_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create capture tables: %w", err)
		}
	}
	return nil
}

// InsertAttack persists an attack record. The record's ID and timestamp are
// assigned here when absent so that callers can pass a bare event.
func (s *Store) InsertAttack(ctx context.Context, a *Attack) (uuid.UUID, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	var payload []byte
	if a.Payload != nil {
		var err error
		payload, err = json.Marshal(a.Payload)
		if err != nil {
			return uuid.Nil, classifyErr("insert_attack", err)
		}
	}

	const query = `INSERT INTO attacks (id, ip, timestamp, service, payload, threat_type, confidence, country, asn)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	s.logStatement("insert_attack", query)
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.IP, a.Timestamp, a.Service, nullBytes(payload),
		a.ThreatType, a.Confidence, a.Country, a.ASN,
	)
	if err != nil {
		return uuid.Nil, classifyErr("insert_attack", err)
	}
	return a.ID, nil
}

// InsertCredential persists a credential attempt tied to an attack.
func (s *Store) InsertCredential(ctx context.Context, attackID uuid.UUID, username, password string, success bool) (uuid.UUID, error) {
	id := uuid.New()
	const query = `INSERT INTO credentials (id, attack_id, username, password, success)
		 VALUES ($1, $2, $3, $4, $5)`
	s.logStatement("insert_credential", query)
	_, err := s.db.ExecContext(ctx, query,
		id, attackID, username, password, success,
	)
	if err != nil {
		return uuid.Nil, classifyErr("insert_credential", err)
	}
	return id, nil
}

// OpenSession creates a session with start_time = now and no commands.
func (s *Store) OpenSession(ctx context.Context, attackID uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	const query = `INSERT INTO sessions (id, attack_id, start_time) VALUES ($1, $2, $3)`
	s.logStatement("open_session", query)
	_, err := s.db.ExecContext(ctx, query,
		id, attackID, time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, classifyErr("open_session", err)
	}
	return id, nil
}

// AppendCommand appends one command to the session's log inside a single
// bounded transaction. The session row is locked so the append cannot race
// with CloseSession; appends to a closed session are dropped.
func (s *Store) AppendCommand(ctx context.Context, sessionID uuid.UUID, cmd string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyErr("append_command", err)
	}
	defer tx.Rollback()

	var endTime sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT end_time FROM sessions WHERE id = $1 FOR UPDATE`,
		sessionID,
	).Scan(&endTime)
	if err == sql.ErrNoRows {
		return fmt.Errorf("append_command: %w", ErrSessionNotFound)
	}
	if err != nil {
		return classifyErr("append_command", err)
	}

	// Closed session: the append window is over, drop the command.
	if endTime.Valid {
		s.log.Debug("", "session_command_dropped", map[string]interface{}{
			"session_id": sessionID.String(),
		})
		return nil
	}

	const query = `INSERT INTO session_commands (session_id, cmd, created_at) VALUES ($1, $2, $3)`
	s.logStatement("append_command", query)
	if _, err := tx.ExecContext(ctx, query,
		sessionID, cmd, time.Now().UTC(),
	); err != nil {
		return classifyErr("append_command", err)
	}

	if err := tx.Commit(); err != nil {
		return classifyErr("append_command", err)
	}
	return nil
}

// CloseSession seals the session. The guard on end_time makes the call
// idempotent: the first close wins and later closes are no-ops.
func (s *Store) CloseSession(ctx context.Context, sessionID uuid.UUID, endTime time.Time) error {
	const query = `UPDATE sessions SET end_time = $2 WHERE id = $1 AND end_time IS NULL`
	s.logStatement("close_session", query)
	_, err := s.db.ExecContext(ctx, query,
		sessionID, endTime.UTC(),
	)
	if err != nil {
		return classifyErr("close_session", err)
	}
	return nil
}

// GetSession reads a session back with its commands in append order.
func (s *Store) GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	sess := &Session{ID: sessionID}

	var endTime sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT attack_id, start_time, end_time FROM sessions WHERE id = $1`,
		sessionID,
	).Scan(&sess.AttackID, &sess.StartTime, &endTime)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get_session: %w", ErrSessionNotFound)
	}
	if err != nil {
		return nil, classifyErr("get_session", err)
	}
	if endTime.Valid {
		t := endTime.Time
		sess.EndTime = &t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cmd, created_at FROM session_commands WHERE session_id = $1 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, classifyErr("get_session", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry CommandEntry
		if err := rows.Scan(&entry.Cmd, &entry.Timestamp); err != nil {
			return nil, classifyErr("get_session", err)
		}
		sess.Commands = append(sess.Commands, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr("get_session", err)
	}
	return sess, nil
}

// nullBytes converts an empty payload to SQL NULL.
func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
