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

package ftppot

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"axonflow/honeynet/config"
	"axonflow/honeynet/shared/logger"
	"axonflow/honeynet/shared/metrics"
	"axonflow/honeynet/store"
)

// Server is the FTP deception service.
type Server struct {
	cfg config.FTPConfig
	rec store.Recorder
	log *logger.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    sync.WaitGroup
}

// NewServer builds the service.
func NewServer(cfg config.FTPConfig, rec store.Recorder) *Server {
	return &Server{
		cfg: cfg,
		rec: rec,
		log: logger.New("ftppot"),
	}
}

// Start listens on the configured address and serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ftp honeypot listen on %s: %w", addr, err)
	}
	s.log.Info("", "ftp_honeypot_started", map[string]interface{}{
		"host":      s.cfg.Host,
		"port":      s.cfg.Port,
		"anonymous": s.cfg.AnonymousAllowed,
	})
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled. Exposed so tests
// can serve on an ephemeral port.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.conns.Wait()
				s.log.Info("", "ftp_honeypot_stopped", nil)
				return nil
			}
			// Transient accept failures must not kill the loop.
			s.log.Debug("", "ftp_accept_error", map[string]interface{}{
				"error": err.Error(),
			})
			time.Sleep(100 * time.Millisecond)
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()
			metrics.ConnectionsTotal.WithLabelValues(store.ServiceFTP).Inc()
			metrics.ActiveSessions.WithLabelValues(store.ServiceFTP).Inc()
			defer metrics.ActiveSessions.WithLabelValues(store.ServiceFTP).Dec()
			newClientConn(s, conn).handle(ctx)
		}()
	}
}

// Addr reports the bound listener address, for tests.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// hostOnly strips the port from a peer address.
func hostOnly(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
