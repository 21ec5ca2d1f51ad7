// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package ftppot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/honeynet/config"
	"axonflow/honeynet/store"
)

// fakeRecorder is an in-memory store.Recorder.
type fakeRecorder struct {
	mu          sync.Mutex
	attacks     []*store.Attack
	credentials []store.Credential
	sessions    map[uuid.UUID]*store.Session
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{sessions: make(map[uuid.UUID]*store.Session)}
}

func (f *fakeRecorder) InsertAttack(_ context.Context, a *store.Attack) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	f.attacks = append(f.attacks, a)
	return a.ID, nil
}

func (f *fakeRecorder) InsertCredential(_ context.Context, attackID uuid.UUID, username, password string, success bool) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred := store.Credential{
		ID:       uuid.New(),
		AttackID: attackID,
		Username: username,
		Password: password,
		Success:  success,
	}
	f.credentials = append(f.credentials, cred)
	return cred.ID, nil
}

func (f *fakeRecorder) OpenSession(_ context.Context, attackID uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.sessions[id] = &store.Session{ID: id, AttackID: attackID, StartTime: time.Now().UTC()}
	return id, nil
}

func (f *fakeRecorder) AppendCommand(_ context.Context, sessionID uuid.UUID, cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionID]
	if !ok {
		return store.ErrSessionNotFound
	}
	if sess.EndTime != nil {
		return nil
	}
	sess.Commands = append(sess.Commands, store.CommandEntry{Cmd: cmd, Timestamp: time.Now().UTC()})
	return nil
}

func (f *fakeRecorder) CloseSession(_ context.Context, sessionID uuid.UUID, endTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionID]
	if !ok {
		return store.ErrSessionNotFound
	}
	if sess.EndTime == nil {
		t := endTime.UTC()
		sess.EndTime = &t
	}
	return nil
}

func (f *fakeRecorder) singleSession(t *testing.T) *store.Session {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.sessions, 1)
	for _, sess := range f.sessions {
		cp := *sess
		cp.Commands = append([]store.CommandEntry(nil), sess.Commands...)
		return &cp
	}
	return nil
}

// ftpClient is a minimal control-channel driver for tests.
type ftpClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func startTestServer(t *testing.T, rec store.Recorder, anonymous bool) *ftpClient {
	t.Helper()

	srv := NewServer(config.FTPConfig{
		Enabled:          true,
		Host:             "127.0.0.1",
		AnonymousAllowed: anonymous,
		Timeout:          10,
	}, rec)

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

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &ftpClient{t: t, conn: conn, r: bufio.NewReader(conn)}
	require.Equal(t, "220 Welcome to FTP server (vsFTPd 3.0.3)", c.readLine())
	return c
}

func (c *ftpClient) readLine() string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimRight(line, "\r\n")
}

func (c *ftpClient) cmd(line string) string {
	c.t.Helper()
	fmt.Fprintf(c.conn, "%s\r\n", line)
	return c.readLine()
}

func (c *ftpClient) login(username, password string) {
	c.t.Helper()
	require.Equal(c.t, "331 Please specify the password.", c.cmd("USER "+username))
	require.Equal(c.t, "230 Login successful.", c.cmd("PASS "+password))
}

var pasvAddr = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

// pasvDial issues PASV, parses the advertised endpoint, and opens the data
// connection. A short pause lets the server-side accept land.
func (c *ftpClient) pasvDial() net.Conn {
	c.t.Helper()
	reply := c.cmd("PASV")
	require.True(c.t, strings.HasPrefix(reply, "227 "), "unexpected PASV reply %q", reply)

	m := pasvAddr.FindStringSubmatch(reply)
	require.NotNil(c.t, m, "no endpoint in PASV reply %q", reply)
	host := strings.Join(m[1:5], ".")
	p1, _ := strconv.Atoi(m[5])
	p2, _ := strconv.Atoi(m[6])

	data, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, p1*256+p2))
	require.NoError(c.t, err)
	c.t.Cleanup(func() { data.Close() })
	time.Sleep(200 * time.Millisecond)
	return data
}

func readAll(t *testing.T, conn net.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	raw, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(raw)
}

func TestLoginCapturesCredential(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)
	c.login("admin", "hunter2")

	rec.mu.Lock()
	require.Len(t, rec.attacks, 1)
	attack := rec.attacks[0]
	assert.Equal(t, store.ServiceFTP, attack.Service)
	assert.Equal(t, "credential_attack", *attack.ThreatType)
	assert.Equal(t, "admin", attack.Payload["username"])
	assert.Equal(t, false, attack.Payload["anonymous"])

	require.Len(t, rec.credentials, 1)
	cred := rec.credentials[0]
	assert.Equal(t, "admin", cred.Username)
	assert.Equal(t, "hunter2", cred.Password)
	assert.True(t, cred.Success)
	rec.mu.Unlock()

	// Pre-auth commands were buffered and flushed, password redacted.
	sess := rec.singleSession(t)
	require.Len(t, sess.Commands, 2)
	assert.Equal(t, "USER admin", sess.Commands[0].Cmd)
	assert.Equal(t, "PASS ***", sess.Commands[1].Cmd)
}

func TestAnonymousLogin(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)

	require.Equal(t, "230 Anonymous login ok, proceed.", c.cmd("USER anonymous"))

	rec.mu.Lock()
	require.Len(t, rec.attacks, 1)
	assert.Equal(t, true, rec.attacks[0].Payload["anonymous"])
	rec.mu.Unlock()
}

func TestAnonymousDisabled(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, false)

	assert.Equal(t, "331 Please specify the password.", c.cmd("USER anonymous"))
}

func TestPassWithoutUser(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)

	assert.Equal(t, "503 Login with USER first.", c.cmd("PASS whatever"))
}

func TestAuthRequired(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)

	for _, line := range []string{"PWD", "CWD backup", "LIST", "RETR x", "STOR x", "DELE x", "PASV"} {
		assert.Equal(t, "530 Please login first.", c.cmd(line), "command %q", line)
	}
}

func TestNavigation(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)
	c.login("root", "toor")

	assert.Equal(t, `257 "/" is the current directory`, c.cmd("PWD"))
	assert.Equal(t, "250 Directory successfully changed.", c.cmd("CWD backup"))
	assert.Equal(t, `257 "/backup" is the current directory`, c.cmd("PWD"))
	assert.Equal(t, "550 Failed to change directory.", c.cmd("CWD secrets"))
	assert.Equal(t, `257 "/backup" is the current directory`, c.cmd("PWD"))
	assert.Equal(t, "250 Directory successfully changed.", c.cmd("CDUP"))
	assert.Equal(t, `257 "/" is the current directory`, c.cmd("PWD"))
}

func TestSystAndFeat(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)

	assert.Equal(t, "215 UNIX Type: L8", c.cmd("SYST"))

	assert.Equal(t, "211-Features:", c.cmd("FEAT"))
	var lines []string
	for {
		line := c.readLine()
		lines = append(lines, line)
		if strings.HasPrefix(line, "211 ") {
			break
		}
	}
	assert.Contains(t, lines, "211- PASV")
	assert.Equal(t, "211 End", lines[len(lines)-1])
}

func TestPassiveList(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)
	c.login("admin", "x")

	data := c.pasvDial()
	require.Equal(t, "150 Here comes the directory listing.", c.cmd("LIST"))

	listing := readAll(t, data)
	assert.Contains(t, listing, "backup")
	assert.Contains(t, listing, "config.php")
	assert.Contains(t, listing, "drwxr-xr-x")

	assert.Equal(t, "226 Directory send OK.", c.readLine())
}

func TestListWithoutDataConnection(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)
	c.login("admin", "x")

	assert.Equal(t, "425 Use PASV or PORT first.", c.cmd("LIST"))
}

func TestRetrBaitContent(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)
	c.login("admin", "x")

	require.Equal(t, "250 Directory successfully changed.", c.cmd("CWD backup"))

	data := c.pasvDial()
	require.Equal(t, "150 Opening BINARY mode data connection.", c.cmd("RETR credentials.txt"))

	content := readAll(t, data)
	assert.Contains(t, content, "admin:admin123")
	assert.Contains(t, content, "ftpuser:ftp@2024!")

	assert.Equal(t, "226 Transfer complete.", c.readLine())

	// The full trail survives in the session record.
	sess := rec.singleSession(t)
	var cmds []string
	for _, entry := range sess.Commands {
		cmds = append(cmds, entry.Cmd)
	}
	assert.Contains(t, cmds, "CWD backup")
	assert.Contains(t, cmds, "RETR credentials.txt")
}

func TestTransferClosesPassiveListener(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)
	c.login("admin", "x")

	reply := c.cmd("PASV")
	m := pasvAddr.FindStringSubmatch(reply)
	require.NotNil(t, m, "no endpoint in PASV reply %q", reply)
	p1, _ := strconv.Atoi(m[5])
	p2, _ := strconv.Atoi(m[6])
	endpoint := fmt.Sprintf("%s:%d", strings.Join(m[1:5], "."), p1*256+p2)

	data, err := net.Dial("tcp", endpoint)
	require.NoError(t, err)
	defer data.Close()
	time.Sleep(200 * time.Millisecond)

	require.Equal(t, "150 Opening BINARY mode data connection.", c.cmd("RETR config.php"))
	readAll(t, data)
	require.Equal(t, "226 Transfer complete.", c.readLine())

	// The listener dies with the transfer: the advertised port must stop
	// accepting.
	require.Eventually(t, func() bool {
		extra, err := net.DialTimeout("tcp", endpoint, time.Second)
		if err != nil {
			return true
		}
		extra.Close()
		return false
	}, 2*time.Second, 50*time.Millisecond)
}

func TestStorAcknowledgedAndDiscarded(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)
	c.login("admin", "x")

	c.pasvDial()
	require.Equal(t, "150 Ok to send data.", c.cmd("STOR shell.php"))
	assert.Equal(t, "226 Transfer complete.", c.readLine())

	sess := rec.singleSession(t)
	var cmds []string
	for _, entry := range sess.Commands {
		cmds = append(cmds, entry.Cmd)
	}
	assert.Contains(t, cmds, "STOR shell.php")
}

func TestWriteCommandsPretendOrFail(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)
	c.login("admin", "x")

	assert.Equal(t, `257 "evil" created`, c.cmd("MKD evil"))
	assert.Equal(t, "550 Remove directory failed.", c.cmd("RMD backup"))
	assert.Equal(t, "550 Delete operation failed.", c.cmd("DELE config.php"))
	assert.Equal(t, "350 Ready for destination name", c.cmd("RNFR config.php"))
	assert.Equal(t, "550 Rename failed.", c.cmd("RNTO gone.php"))
}

func TestSizeCommand(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)
	c.login("admin", "x")

	assert.Equal(t, "213 512", c.cmd("SIZE /backup/credentials.txt"))
	assert.Equal(t, "550 Could not get file size.", c.cmd("SIZE /backup/none.bin"))
}

func TestUnknownCommand(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)

	assert.Equal(t, "502 Command not implemented.", c.cmd("XPWN now"))
}

func TestQuitSealsSession(t *testing.T) {
	rec := newFakeRecorder()
	c := startTestServer(t, rec, true)
	c.login("admin", "x")

	assert.Equal(t, "221 Goodbye.", c.cmd("QUIT"))

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		for _, sess := range rec.sessions {
			return sess.EndTime != nil
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	sess := rec.singleSession(t)
	require.Len(t, sess.Commands, 3)
	assert.Equal(t, "QUIT", sess.Commands[2].Cmd)
	assert.False(t, sess.EndTime.Before(sess.StartTime))
}
