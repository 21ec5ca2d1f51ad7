// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package store is the durable record store shared by all honeypot emulators.

It persists three entities to PostgreSQL:

  - Attack: one record per meaningful attacker interaction
  - Credential: one record per username/password attempt
  - Session: one record per shell or control-channel lifecycle, with an
    append-only command log

An Attack owns its Credential and Session records; deletion cascades.
Session commands live in a child table so that appends are bounded
transactions and never rewrite the whole command list.

Any number of concurrent connection handlers may call any operation. The
store serializes conflicting writes with row-level locks; callers hold no
locks between protocol events. Appends to a closed session are dropped
silently, and closing an already closed session is a no-op (the first
end_time wins).

Emulators should depend on the Recorder interface rather than *Store so
tests can substitute an in-memory fake.
*/
package store
