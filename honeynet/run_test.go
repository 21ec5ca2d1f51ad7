// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package honeynet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/honeynet/config"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Services.FTP.Enabled = false

	t.Run("store reachable", func(t *testing.T) {
		rr := httptest.NewRecorder()
		healthHandler(cfg, fakePinger{})(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var report healthReport
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))

		assert.Equal(t, "ok", report.Status)
		assert.Equal(t, "ok", report.Database)
		assert.True(t, report.Services["ssh"].Enabled)
		assert.Equal(t, 2222, report.Services["ssh"].Port)
		assert.False(t, report.Services["ftp"].Enabled)
	})

	t.Run("store down degrades status", func(t *testing.T) {
		rr := httptest.NewRecorder()
		healthHandler(cfg, fakePinger{err: errors.New("connection refused")})(rr,
			httptest.NewRequest(http.MethodGet, "/health", nil))

		var report healthReport
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
		assert.Equal(t, "degraded", report.Status)
		assert.Equal(t, "unavailable", report.Database)
	})
}

func TestGetEnv(t *testing.T) {
	t.Setenv("HONEYNET_TEST_KEY", "value")
	assert.Equal(t, "value", getEnv("HONEYNET_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", getEnv("HONEYNET_TEST_MISSING", "fallback"))
}
