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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "honeynet.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)

	assert.True(t, cfg.Services.SSH.Enabled)
	assert.Equal(t, 2222, cfg.Services.SSH.Port)
	assert.Equal(t, "OpenSSH_8.2p1 Ubuntu-4ubuntu0.5", cfg.Services.SSH.Banner)
	assert.Equal(t, 8080, cfg.Services.HTTP.Port)
	assert.Equal(t, "WordPress 5.8", cfg.Services.HTTP.FakeCMS)
	assert.Equal(t, 2121, cfg.Services.FTP.Port)
	assert.True(t, cfg.Services.FTP.AnonymousAllowed)
	assert.Equal(t, 30, cfg.Services.FTP.Timeout)
	assert.Equal(t, 10, cfg.Database.PoolSize)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
services:
  ssh:
    enabled: true
    host: 127.0.0.1
    port: 2022
    banner: OpenSSH_9.0
  http:
    enabled: false
    port: 8081
    fake_cms: "Joomla 4.2"
  ftp:
    enabled: true
    port: 2121
    anonymous_allowed: false
    timeout: 60
database:
  url: postgres://honeynet:secret@db/honeynet?sslmode=disable
  pool_size: 5
logging:
  level: DEBUG
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Services.SSH.Host)
	assert.Equal(t, 2022, cfg.Services.SSH.Port)
	assert.Equal(t, "OpenSSH_9.0", cfg.Services.SSH.Banner)
	assert.False(t, cfg.Services.HTTP.Enabled)
	assert.Equal(t, "Joomla 4.2", cfg.Services.HTTP.FakeCMS)
	assert.False(t, cfg.Services.FTP.AnonymousAllowed)
	assert.Equal(t, 60, cfg.Services.FTP.Timeout)
	assert.Equal(t, "postgres://honeynet:secret@db/honeynet?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 5, cfg.Database.PoolSize)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)

	// Options the file does not mention keep their defaults.
	assert.Equal(t, 100, cfg.Services.SSH.MaxConnections)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("HONEYNET_DB_URL", "postgres://u:p@localhost/hn")
	t.Setenv("HONEYNET_SSH_BANNER", "")

	path := writeConfig(t, `
database:
  url: ${HONEYNET_DB_URL}
services:
  ssh:
    banner: ${HONEYNET_SSH_BANNER:-OpenSSH_8.2p1 Ubuntu-4ubuntu0.5}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/hn", cfg.Database.URL)
	assert.Equal(t, "OpenSSH_8.2p1 Ubuntu-4ubuntu0.5", cfg.Services.SSH.Banner)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "services: [not a map")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"ssh port zero", func(c *Config) { c.Services.SSH.Port = 0 }, true},
		{"ftp port too large", func(c *Config) { c.Services.FTP.Port = 70000 }, true},
		{"negative timeout", func(c *Config) { c.Services.FTP.Timeout = -1 }, true},
		{"negative pool", func(c *Config) { c.Database.PoolSize = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
