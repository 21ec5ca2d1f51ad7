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

package honeynet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"axonflow/honeynet/config"
	"axonflow/honeynet/services/ftppot"
	"axonflow/honeynet/services/httppot"
	"axonflow/honeynet/services/sshpot"
	"axonflow/honeynet/shared/logger"
	"axonflow/honeynet/store"
)

// Run is the exported entry point for the deception server.
//
// It loads configuration, connects to the record store, starts the enabled
// protocol emulators plus the operations listener, and blocks until the
// process receives SIGINT/SIGTERM or a service fails at startup.
//
// Environment variables used:
//   - CONFIG_PATH: YAML config file (default: config.yaml; missing file
//     falls back to built-in defaults)
//   - DATABASE_URL: PostgreSQL connection string (config default)
//   - MONITOR_PORT: operations listener port (default: 9090)
func Run() {
	log := logger.New("honeynet")
	if err := run(log); err != nil {
		log.ErrorWithErr("", "honeynet_fatal", err, nil)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("", "honeynet_starting", map[string]interface{}{
		"ssh_enabled":  cfg.Services.SSH.Enabled,
		"http_enabled": cfg.Services.HTTP.Enabled,
		"ftp_enabled":  cfg.Services.FTP.Enabled,
	})

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.InitSchema(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Services.SSH.Enabled {
		srv, err := sshpot.NewServer(cfg.Services.SSH, st)
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Start(gctx) })
	}
	if cfg.Services.HTTP.Enabled {
		srv := httppot.NewServer(cfg.Services.HTTP, st)
		g.Go(func() error { return srv.Start(gctx) })
	}
	if cfg.Services.FTP.Enabled {
		srv := ftppot.NewServer(cfg.Services.FTP, st)
		g.Go(func() error { return srv.Start(gctx) })
	}

	g.Go(func() error { return runOps(gctx, cfg, st, log) })

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("", "honeynet_stopped", nil)
	return nil
}

// pinger is the slice of the record store the health endpoint needs.
type pinger interface {
	Ping(ctx context.Context) error
}

// runOps serves the operations endpoints: /health for liveness and
// /prometheus for metrics scraping. This listener is for operators, never
// for attackers; it binds its own port.
func runOps(ctx context.Context, cfg *config.Config, st pinger, log *logger.Logger) error {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler(cfg, st)).Methods(http.MethodGet)
	r.Handle("/prometheus", promhttp.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              ":" + getEnv("MONITOR_PORT", "9090"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("", "monitor_listener_started", map[string]interface{}{
		"addr": srv.Addr,
	})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// serviceHealth is one service's slice of the health snapshot.
type serviceHealth struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// healthReport is the /health response body.
type healthReport struct {
	Status   string                   `json:"status"`
	Database string                   `json:"database"`
	Services map[string]serviceHealth `json:"services"`
}

// healthHandler aggregates service configuration and store reachability.
// A down store degrades health but the emulators keep serving, so the
// status stays "degraded" rather than failing outright.
func healthHandler(cfg *config.Config, st pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{
			Status:   "ok",
			Database: "ok",
			Services: map[string]serviceHealth{
				store.ServiceSSH: {
					Enabled: cfg.Services.SSH.Enabled,
					Host:    cfg.Services.SSH.Host,
					Port:    cfg.Services.SSH.Port,
				},
				store.ServiceHTTP: {
					Enabled: cfg.Services.HTTP.Enabled,
					Host:    cfg.Services.HTTP.Host,
					Port:    cfg.Services.HTTP.Port,
				},
				store.ServiceFTP: {
					Enabled: cfg.Services.FTP.Enabled,
					Host:    cfg.Services.FTP.Host,
					Port:    cfg.Services.FTP.Port,
				},
			},
		}

		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			report.Status = "degraded"
			report.Database = "unavailable"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
