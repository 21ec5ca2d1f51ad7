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

package sshpot

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"axonflow/honeynet/config"
	"axonflow/honeynet/detect"
	"axonflow/honeynet/shared/logger"
	"axonflow/honeynet/shared/metrics"
	"axonflow/honeynet/store"
)

// attackIDExtension carries the attack id from the auth callback to the
// session handler through ssh.Permissions.
const attackIDExtension = "attack-id"

// Server is the SSH deception service.
type Server struct {
	cfg config.SSHConfig
	rec store.Recorder
	log *logger.Logger

	sshConfig *ssh.ServerConfig

	mu       sync.Mutex
	listener net.Listener
	conns    sync.WaitGroup
	sem      chan struct{}
}

// NewServer builds the service with a freshly generated RSA host key.
func NewServer(cfg config.SSHConfig, rec store.Recorder) (*Server, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build host key signer: %w", err)
	}

	s := &Server{
		cfg: cfg,
		rec: rec,
		log: logger.New("sshpot"),
		sem: make(chan struct{}, cfg.MaxConnections),
	}

	s.sshConfig = &ssh.ServerConfig{
		ServerVersion:    "SSH-2.0-" + cfg.Banner,
		PasswordCallback: s.passwordCallback,
	}
	s.sshConfig.AddHostKey(signer)

	return s, nil
}

// passwordCallback accepts every credential pair and records it. The attack
// id travels to the session handler via the permissions extensions.
func (s *Server) passwordCallback(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	remoteIP := hostOnly(meta.RemoteAddr())
	username := meta.User()

	s.log.Warn(remoteIP, "ssh_credential_captured", map[string]interface{}{
		"username": username,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	threat := string(detect.ThreatCredentialAttack)
	attackID, err := s.rec.InsertAttack(ctx, &store.Attack{
		IP:         remoteIP,
		Service:    store.ServiceSSH,
		ThreatType: &threat,
		Payload: map[string]interface{}{
			"username":        username,
			"password_length": len(password),
		},
	})
	if err != nil {
		// Deception over capture: the peer still gets in.
		s.log.ErrorWithErr(remoteIP, "ssh_attack_record_failed", err, nil)
		return &ssh.Permissions{}, nil
	}
	metrics.AttacksRecordedTotal.WithLabelValues(store.ServiceSSH, threat).Inc()

	// The peer is told the login succeeded, so success is recorded as true.
	if _, err := s.rec.InsertCredential(ctx, attackID, username, string(password), true); err != nil {
		s.log.ErrorWithErr(remoteIP, "ssh_attack_record_failed", err, nil)
	}

	s.log.Info(remoteIP, "ssh_attack_recorded", map[string]interface{}{
		"attack_id": attackID.String(),
	})

	return &ssh.Permissions{
		Extensions: map[string]string{attackIDExtension: attackID.String()},
	}, nil
}

// Start listens on the configured address and serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ssh honeypot listen on %s: %w", addr, err)
	}
	s.log.Info("", "ssh_honeypot_started", map[string]interface{}{
		"host": s.cfg.Host,
		"port": s.cfg.Port,
	})
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled. It is exposed so
// tests can serve on an ephemeral port.
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
				s.log.Info("", "ssh_honeypot_stopped", nil)
				return nil
			}
			// Transient accept failures must not kill the loop.
			s.log.Debug("", "ssh_accept_error", map[string]interface{}{
				"error": err.Error(),
			})
			time.Sleep(100 * time.Millisecond)
			continue
		}

		select {
		case s.sem <- struct{}{}:
		default:
			// At capacity. Dropping the connection beats queueing an
			// attacker indefinitely.
			conn.Close()
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			defer func() { <-s.sem }()
			s.handleConn(ctx, conn)
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

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	// Shutdown severs live connections so handlers cannot outlive the
	// server stop.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	remoteIP := hostOnly(conn.RemoteAddr())
	metrics.ConnectionsTotal.WithLabelValues(store.ServiceSSH).Inc()
	s.log.Info(remoteIP, "ssh_connection_established", map[string]interface{}{
		"port": s.cfg.Port,
	})

	idle := time.Duration(s.cfg.Timeout) * time.Second
	wrapped := &idleConn{Conn: conn, timeout: idle}

	sshConn, chans, reqs, err := ssh.NewServerConn(wrapped, s.sshConfig)
	if err != nil {
		// Handshake failures are routine here: scanners probe and leave.
		s.log.Debug(remoteIP, "ssh_handshake_failed", map[string]interface{}{
			"error": err.Error(),
		})
		conn.Close()
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	var attackID uuid.UUID
	if sshConn.Permissions != nil {
		if raw, ok := sshConn.Permissions.Extensions[attackIDExtension]; ok {
			attackID, _ = uuid.Parse(raw)
		}
	}

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			s.log.ErrorWithErr(remoteIP, "ssh_channel_accept_failed", err, nil)
			continue
		}
		s.handleSession(ctx, channel, requests, remoteIP, attackID)
	}

	s.log.Info(remoteIP, "ssh_connection_closed", nil)
}

// handleSession answers the usual channel requests and runs the fake shell
// once the peer asks for one.
func (s *Server) handleSession(ctx context.Context, channel ssh.Channel, requests <-chan *ssh.Request, remoteIP string, attackID uuid.UUID) {
	defer channel.Close()

	shellStarted := make(chan struct{})
	go func() {
		for req := range requests {
			switch req.Type {
			case "pty-req", "env", "window-change":
				req.Reply(true, nil)
			case "shell":
				req.Reply(true, nil)
				close(shellStarted)
			default:
				req.Reply(false, nil)
			}
		}
	}()

	select {
	case <-shellStarted:
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(s.cfg.Timeout) * time.Second):
		return
	}

	metrics.ActiveSessions.WithLabelValues(store.ServiceSSH).Inc()
	defer metrics.ActiveSessions.WithLabelValues(store.ServiceSSH).Dec()

	s.log.Info(remoteIP, "ssh_shell_requested", nil)
	sh := newShell(channel, s.rec, s.log, remoteIP, attackID)
	if err := sh.run(ctx); err != nil {
		s.log.Debug(remoteIP, "ssh_shell_closed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	channel.SendRequest("exit-status", false, []byte{0, 0, 0, 0})
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

// idleConn enforces an inactivity timeout by renewing the read deadline on
// every read.
type idleConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}
