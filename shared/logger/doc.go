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

/*
Package logger provides structured JSON logging for honeypot components.

# Overview

The logger outputs one JSON object per line to stdout, making the capture
stream easily consumable by CloudWatch, ELK, or any log aggregation system.

Each log entry includes:
  - Timestamp (RFC3339Nano format, UTC)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (ssh, http, ftp, store, honeynet)
  - Instance ID and container name (for fleet-wide correlation)
  - Remote IP of the peer the event relates to
  - Event name (the observable contract: ssh_credential_captured,
    http_request_received, ftp_connection_closed, ...)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("ssh")

Log protocol events with the peer address:

	log.Warn("203.0.113.7", "ssh_credential_captured", map[string]interface{}{
	    "username": "root",
	})

# Output Format

Log entries are output as single-line JSON:

	{"timestamp":"2025-01-15T10:30:00.123456789Z","level":"WARN",
	 "component":"ssh","instance_id":"i-abc123","container":"honeynet-xyz",
	 "remote_ip":"203.0.113.7","event":"ssh_credential_captured",
	 "fields":{"username":"root"}}

# Environment Variables

The logger reads these environment variables:

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
