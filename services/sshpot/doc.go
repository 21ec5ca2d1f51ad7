// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package sshpot implements the SSH deception service.

The server accepts every password ("deliberately vulnerable" includes the
authentication layer), records the credential pair, and drops the peer into a
fake root shell. The shell echoes input, replies to a fixed set of common
commands with plausible canned output, and appends every submitted command to
the session record. Nothing the peer types is ever executed.
*/
package sshpot
