// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package honeynet wires the deception services together: configuration,
// record store, the SSH/HTTP/FTP emulators, and the operations listener.
package honeynet
