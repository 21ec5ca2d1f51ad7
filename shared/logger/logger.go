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

package logger

import (
	"encoding/json"
	"log"
	"os"
	"sync/atomic"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// levelRank orders levels for threshold filtering.
var levelRank = map[LogLevel]int{
	DEBUG: 0,
	INFO:  1,
	WARN:  2,
	ERROR: 3,
}

// minLevel is the process-wide level threshold. Entries below it are dropped.
var minLevel atomic.Int32

// SetLevel sets the process-wide minimum log level. Unknown level strings
// leave the threshold unchanged.
func SetLevel(level string) {
	if rank, ok := levelRank[LogLevel(level)]; ok {
		minLevel.Store(int32(rank))
	}
}

// Logger provides structured logging for honeypot components
type Logger struct {
	Component  string
	InstanceID string
	Container  string
}

// LogEntry represents a structured log entry. Event names are part of the
// observable contract of the honeypot (ssh_credential_captured,
// http_request_received, ftp_connection_closed, ...).
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	RemoteIP   string                 `json:"remote_ip,omitempty"`
	Event      string                 `json:"event"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a new Logger for the specified component
func New(component string) *Logger {
	// Get instance ID from environment (set during deployment)
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	// Get container name from hostname
	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
	}
}

// Log creates a structured log entry and writes it to stdout
func (l *Logger) Log(level LogLevel, remoteIP, event string, fields map[string]interface{}) {
	if int32(levelRank[level]) < minLevel.Load() {
		return
	}

	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		RemoteIP:   remoteIP,
		Event:      event,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		log.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}

	// Write JSON log to stdout (Docker will capture this)
	log.Println(string(jsonBytes))
}

// Info logs an informational event
func (l *Logger) Info(remoteIP, event string, fields map[string]interface{}) {
	l.Log(INFO, remoteIP, event, fields)
}

// Error logs an error event
func (l *Logger) Error(remoteIP, event string, fields map[string]interface{}) {
	l.Log(ERROR, remoteIP, event, fields)
}

// Warn logs a warning event
func (l *Logger) Warn(remoteIP, event string, fields map[string]interface{}) {
	l.Log(WARN, remoteIP, event, fields)
}

// Debug logs a debug event
func (l *Logger) Debug(remoteIP, event string, fields map[string]interface{}) {
	l.Log(DEBUG, remoteIP, event, fields)
}

// ErrorWithErr logs an error event with the error message attached
func (l *Logger) ErrorWithErr(remoteIP, event string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(remoteIP, event, fields)
}
