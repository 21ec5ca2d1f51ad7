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

// Package main is the entry point for the honeynet deception server.
//
// The server runs up to three protocol emulators (SSH, HTTP, FTP) that
// masquerade as vulnerable production systems, capture attacker credentials,
// commands, and payloads, and persist them to PostgreSQL for analysis.
//
// Usage:
//
//	./honeynet
//
// Environment Variables:
//
//	CONFIG_PATH - YAML configuration file (default: config.yaml)
//	DATABASE_URL - PostgreSQL connection string
//	MONITOR_PORT - operations listener port (default: 9090)
package main

import (
	"axonflow/honeynet/honeynet"
)

func main() {
	honeynet.Run()
}
