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

// Package config loads the honeypot configuration from a YAML file with
// environment variable expansion and validates it against the recognized
// option set.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SSHConfig configures the SSH emulator.
type SSHConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Banner         string `yaml:"banner"`
	MaxConnections int    `yaml:"max_connections"`
	Timeout        int    `yaml:"timeout"` // seconds
}

// HTTPConfig configures the HTTP emulator.
type HTTPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	FakeCMS    string `yaml:"fake_cms"`
	ServeFiles bool   `yaml:"serve_files"`
}

// FTPConfig configures the FTP emulator.
type FTPConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	AnonymousAllowed bool   `yaml:"anonymous_allowed"`
	Timeout          int    `yaml:"timeout"` // seconds
}

// ServicesConfig groups the per-protocol emulator configurations.
type ServicesConfig struct {
	SSH  SSHConfig  `yaml:"ssh"`
	HTTP HTTPConfig `yaml:"http"`
	FTP  FTPConfig  `yaml:"ftp"`
}

// DatabaseConfig configures the record store connection.
type DatabaseConfig struct {
	URL         string `yaml:"url"`
	PoolSize    int    `yaml:"pool_size"`
	MaxOverflow int    `yaml:"max_overflow"`
	Echo        bool   `yaml:"echo"`
}

// MLConfig is recognized for compatibility with the optional classifier
// layer. The core pattern matcher does not consult it.
type MLConfig struct {
	ModelPath           string  `yaml:"model_path"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config is the root configuration for the honeypot.
type Config struct {
	Services ServicesConfig `yaml:"services"`
	Database DatabaseConfig `yaml:"database"`
	ML       MLConfig       `yaml:"ml"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Services: ServicesConfig{
			SSH: SSHConfig{
				Enabled:        true,
				Host:           "0.0.0.0",
				Port:           2222,
				Banner:         "OpenSSH_8.2p1 Ubuntu-4ubuntu0.5",
				MaxConnections: 100,
				Timeout:        30,
			},
			HTTP: HTTPConfig{
				Enabled:    true,
				Host:       "0.0.0.0",
				Port:       8080,
				FakeCMS:    "WordPress 5.8",
				ServeFiles: true,
			},
			FTP: FTPConfig{
				Enabled:          true,
				Host:             "0.0.0.0",
				Port:             2121,
				AnonymousAllowed: true,
				Timeout:          30,
			},
		},
		Database: DatabaseConfig{
			URL:         os.Getenv("DATABASE_URL"),
			PoolSize:    10,
			MaxOverflow: 20,
		},
		ML: MLConfig{
			ModelPath:           "data/models/threat_classifier.bin",
			ConfidenceThreshold: 0.7,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Load reads the YAML configuration file at path, expands environment
// variable references, and overlays it on the defaults. A missing file is
// not an error: Load returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the option ranges that would otherwise fail late at bind
// or connect time.
func (c *Config) Validate() error {
	for name, port := range map[string]int{
		"ssh":  c.Services.SSH.Port,
		"http": c.Services.HTTP.Port,
		"ftp":  c.Services.FTP.Port,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("services.%s.port %d out of range", name, port)
		}
	}
	if c.Services.SSH.Timeout < 0 || c.Services.FTP.Timeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	if c.Database.PoolSize < 0 || c.Database.MaxOverflow < 0 {
		return fmt.Errorf("database pool sizes must be non-negative")
	}
	return nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string.
// Supports ${VAR_NAME}, ${VAR_NAME:-default}, and $VAR_NAME syntax.
// Undefined variables without a default expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		// Handle default values: ${VAR_NAME:-default}
		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultVal
	})
}
