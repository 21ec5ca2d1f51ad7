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
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"axonflow/honeynet/detect"
	"axonflow/honeynet/shared/metrics"
	"axonflow/honeynet/store"
)

// listWait is how long LIST waits for the peer's data connection before
// giving up with a 425.
const listWait = 500 * time.Millisecond

// clientConn is the state machine for one FTP control connection.
type clientConn struct {
	srv      *Server
	conn     net.Conn
	remoteIP string

	username      string
	authenticated bool
	currentDir    string
	renameFrom    string

	attackID  uuid.UUID
	sessionID uuid.UUID
	// pending holds commands received before the session record exists
	// (USER and PASS arrive pre-auth); they are flushed on first record.
	pending  []string
	cmdCount int

	mu        sync.Mutex
	dataConn  net.Conn
	passiveLn net.Listener
}

func newClientConn(srv *Server, conn net.Conn) *clientConn {
	return &clientConn{
		srv:        srv,
		conn:       conn,
		remoteIP:   hostOnly(conn.RemoteAddr()),
		currentDir: "/",
	}
}

// handle runs the control-channel loop until the peer quits, idles out, or
// drops. The session record is sealed on the way out.
func (c *clientConn) handle(ctx context.Context) {
	defer c.close()

	c.srv.log.Info(c.remoteIP, "ftp_connection_established", nil)
	c.reply(220, "Welcome to FTP server (vsFTPd 3.0.3)")

	idle := time.Duration(c.srv.cfg.Timeout) * time.Second
	reader := bufio.NewReader(c.conn)
	for {
		if ctx.Err() != nil {
			return
		}
		if idle > 0 {
			c.conn.SetReadDeadline(time.Now().Add(idle))
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				c.reply(421, "Timeout.")
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if quit := c.processCommand(ctx, line); quit {
			return
		}
	}
}

// processCommand records and dispatches one command line. It reports whether
// the connection should close.
func (c *clientConn) processCommand(ctx context.Context, line string) (quit bool) {
	cmd, arg := line, ""
	if idx := strings.IndexByte(line, ' '); idx >= 0 {
		cmd, arg = line[:idx], line[idx+1:]
	}
	cmd = strings.ToUpper(cmd)

	// Passwords are redacted everywhere except the credentials table.
	loggedArg := arg
	if cmd == "PASS" {
		loggedArg = "***"
	}
	c.srv.log.Debug(c.remoteIP, "ftp_command_received", map[string]interface{}{
		"command":  cmd,
		"argument": loggedArg,
	})
	c.recordCommand(ctx, cmd, loggedArg)

	switch cmd {
	case "USER":
		c.cmdUser(ctx, arg)
	case "PASS":
		c.cmdPass(ctx, arg)
	case "SYST":
		c.reply(215, "UNIX Type: L8")
	case "FEAT":
		c.replyMultiline(211, []string{"Features:", " UTF8", " PASV", " SIZE", " MDTM", "End"})
	case "OPTS":
		if strings.HasPrefix(strings.ToUpper(arg), "UTF8") {
			c.reply(200, "UTF8 set to on")
		} else {
			c.reply(501, "Option not understood")
		}
	case "NOOP":
		c.reply(200, "NOOP ok.")
	case "PWD":
		if c.requireAuth() {
			c.reply(257, fmt.Sprintf("%q is the current directory", c.currentDir))
		}
	case "CWD":
		c.cmdCwd(arg)
	case "CDUP":
		c.cmdCwd("..")
	case "TYPE":
		c.cmdType(arg)
	case "PASV":
		c.cmdPasv()
	case "PORT":
		if c.requireAuth() {
			c.reply(200, "PORT command successful. Use PASV instead.")
		}
	case "LIST":
		c.cmdList(arg)
	case "NLST":
		c.cmdNlst(arg)
	case "RETR":
		c.cmdRetr(arg)
	case "STOR":
		c.cmdStor(arg)
	case "SIZE":
		c.cmdSize(arg)
	case "DELE":
		if c.requireAuth() {
			c.srv.log.Warn(c.remoteIP, "ftp_delete_attempt", map[string]interface{}{"path": arg})
			c.reply(550, "Delete operation failed.")
		}
	case "MKD":
		if c.requireAuth() {
			c.srv.log.Warn(c.remoteIP, "ftp_mkdir_attempt", map[string]interface{}{"path": arg})
			c.reply(257, fmt.Sprintf("%q created", arg))
		}
	case "RMD":
		if c.requireAuth() {
			c.srv.log.Warn(c.remoteIP, "ftp_rmdir_attempt", map[string]interface{}{"path": arg})
			c.reply(550, "Remove directory failed.")
		}
	case "RNFR":
		if c.requireAuth() {
			c.renameFrom = arg
			c.reply(350, "Ready for destination name")
		}
	case "RNTO":
		if c.requireAuth() {
			c.srv.log.Warn(c.remoteIP, "ftp_rename_attempt", map[string]interface{}{
				"from_path": c.renameFrom,
				"to_path":   arg,
			})
			c.renameFrom = ""
			c.reply(550, "Rename failed.")
		}
	case "QUIT":
		c.reply(221, "Goodbye.")
		return true
	default:
		c.reply(502, "Command not implemented.")
	}
	return false
}

// --- authentication ---

func (c *clientConn) cmdUser(ctx context.Context, username string) {
	c.username = username
	c.authenticated = false

	if strings.EqualFold(username, "anonymous") && c.srv.cfg.AnonymousAllowed {
		c.authenticated = true
		c.recordAttack(ctx, true)
		c.reply(230, "Anonymous login ok, proceed.")
		return
	}
	c.reply(331, "Please specify the password.")
}

func (c *clientConn) cmdPass(ctx context.Context, password string) {
	if c.username == "" {
		c.reply(503, "Login with USER first.")
		return
	}

	c.recordAttack(ctx, false)
	c.recordCredential(ctx, password)

	// Any password logs in; the honeypot wants the follow-up activity.
	c.authenticated = true
	c.reply(230, "Login successful.")

	c.srv.log.Warn(c.remoteIP, "ftp_credential_captured", map[string]interface{}{
		"username": c.username,
	})
}

// --- navigation and transfers ---

func (c *clientConn) cmdCwd(path string) {
	if !c.requireAuth() {
		return
	}
	next := resolvePath(c.currentDir, path)
	if dirExists(next) {
		c.currentDir = next
		c.reply(250, "Directory successfully changed.")
		return
	}
	c.reply(550, "Failed to change directory.")
}

func (c *clientConn) cmdType(code string) {
	upper := strings.ToUpper(code)
	if upper == "A" || upper == "I" {
		c.reply(200, "Switching to "+upper+" mode.")
		return
	}
	c.reply(504, "Type not implemented.")
}

func (c *clientConn) cmdSize(path string) {
	if !c.requireAuth() {
		return
	}
	if size, ok := fileSize(resolvePath(c.currentDir, path)); ok {
		c.reply(213, fmt.Sprintf("%d", size))
		return
	}
	c.reply(550, "Could not get file size.")
}

func (c *clientConn) cmdPasv() {
	if !c.requireAuth() {
		return
	}

	c.closeDataChannel()

	host := c.srv.cfg.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	ln, err := net.Listen("tcp4", net.JoinHostPort(c.srv.cfg.Host, "0"))
	if err != nil {
		c.srv.log.ErrorWithErr(c.remoteIP, "ftp_pasv_failed", err, nil)
		c.reply(425, "Cannot enter passive mode.")
		return
	}

	c.mu.Lock()
	c.passiveLn = ln
	c.mu.Unlock()

	go func() {
		dc, err := ln.Accept()
		if err != nil {
			return
		}
		c.mu.Lock()
		c.dataConn = dc
		c.mu.Unlock()
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	c.reply(227, fmt.Sprintf("Entering Passive Mode (%s,%d,%d).",
		strings.ReplaceAll(host, ".", ","), port/256, port%256))
}

func (c *clientConn) cmdList(path string) {
	if !c.requireAuth() {
		return
	}
	data := c.takeDataConn(listWait)
	if data == nil {
		c.reply(425, "Use PASV or PORT first.")
		return
	}

	c.reply(150, "Here comes the directory listing.")

	target := c.currentDir
	if path != "" {
		target = resolvePath(c.currentDir, path)
	}
	for _, line := range listingLines(target) {
		io.WriteString(data, line+"\r\n")
	}
	data.Close()
	c.closePassive()

	c.reply(226, "Directory send OK.")
}

func (c *clientConn) cmdNlst(path string) {
	if !c.requireAuth() {
		return
	}
	data := c.takeDataConn(0)
	if data == nil {
		c.reply(425, "Use PASV or PORT first.")
		return
	}

	c.reply(150, "Here comes the directory listing.")

	target := c.currentDir
	if path != "" {
		target = resolvePath(c.currentDir, path)
	}
	for _, name := range nameList(target) {
		io.WriteString(data, name+"\r\n")
	}
	data.Close()
	c.closePassive()

	c.reply(226, "Directory send OK.")
}

func (c *clientConn) cmdRetr(path string) {
	if !c.requireAuth() {
		return
	}
	c.srv.log.Warn(c.remoteIP, "ftp_download_attempt", map[string]interface{}{"path": path})

	data := c.takeDataConn(0)
	if data == nil {
		c.reply(425, "Use PASV or PORT first.")
		return
	}

	c.reply(150, "Opening BINARY mode data connection.")
	io.WriteString(data, fakeContent(path))
	data.Close()
	c.closePassive()
	c.reply(226, "Transfer complete.")
}

func (c *clientConn) cmdStor(path string) {
	if !c.requireAuth() {
		return
	}
	c.srv.log.Warn(c.remoteIP, "ftp_upload_attempt", map[string]interface{}{"path": path})

	data := c.takeDataConn(0)
	if data == nil {
		c.reply(425, "Use PASV or PORT first.")
		return
	}

	c.reply(150, "Ok to send data.")

	// The upload is acknowledged but never stored.
	data.Close()
	c.closePassive()
	c.reply(226, "Transfer complete.")
}

// --- plumbing ---

func (c *clientConn) requireAuth() bool {
	if !c.authenticated {
		c.reply(530, "Please login first.")
		return false
	}
	return true
}

func (c *clientConn) reply(code int, msg string) {
	fmt.Fprintf(c.conn, "%d %s\r\n", code, msg)
}

func (c *clientConn) replyMultiline(code int, lines []string) {
	for i, line := range lines {
		sep := "-"
		if i == len(lines)-1 {
			sep = " "
		}
		fmt.Fprintf(c.conn, "%d%s%s\r\n", code, sep, line)
	}
}

// takeDataConn detaches the current data connection, optionally waiting for
// a passive peer that has not connected yet.
func (c *clientConn) takeDataConn(wait time.Duration) net.Conn {
	c.mu.Lock()
	data := c.dataConn
	c.mu.Unlock()
	if data == nil && wait > 0 {
		time.Sleep(wait)
		c.mu.Lock()
		data = c.dataConn
		c.mu.Unlock()
	}
	c.mu.Lock()
	c.dataConn = nil
	c.mu.Unlock()
	return data
}

func (c *clientConn) closePassive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.passiveLn != nil {
		c.passiveLn.Close()
		c.passiveLn = nil
	}
}

func (c *clientConn) closeDataChannel() {
	c.mu.Lock()
	if c.dataConn != nil {
		c.dataConn.Close()
		c.dataConn = nil
	}
	if c.passiveLn != nil {
		c.passiveLn.Close()
		c.passiveLn = nil
	}
	c.mu.Unlock()
}

// recordAttack creates the attack and session records once per connection
// and flushes any commands buffered before authentication.
func (c *clientConn) recordAttack(ctx context.Context, anonymous bool) {
	if c.attackID != uuid.Nil {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	threat := string(detect.ThreatCredentialAttack)
	attackID, err := c.srv.rec.InsertAttack(opCtx, &store.Attack{
		IP:         c.remoteIP,
		Service:    store.ServiceFTP,
		ThreatType: &threat,
		Payload: map[string]interface{}{
			"username":  c.username,
			"anonymous": anonymous,
		},
	})
	if err != nil {
		c.srv.log.ErrorWithErr(c.remoteIP, "ftp_attack_record_failed", err, nil)
		return
	}
	c.attackID = attackID
	metrics.AttacksRecordedTotal.WithLabelValues(store.ServiceFTP, threat).Inc()

	sessionID, err := c.srv.rec.OpenSession(opCtx, attackID)
	if err != nil {
		c.srv.log.ErrorWithErr(c.remoteIP, "ftp_session_create_failed", err, nil)
		return
	}
	c.sessionID = sessionID

	for _, cmd := range c.pending {
		if err := c.srv.rec.AppendCommand(opCtx, sessionID, cmd); err != nil {
			c.srv.log.ErrorWithErr(c.remoteIP, "ftp_command_record_failed", err, nil)
		}
	}
	c.pending = nil

	c.srv.log.Info(c.remoteIP, "ftp_attack_recorded", map[string]interface{}{
		"attack_id": attackID.String(),
	})
}

func (c *clientConn) recordCredential(ctx context.Context, password string) {
	if c.attackID == uuid.Nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// The peer sees "230 Login successful", so success is true.
	if _, err := c.srv.rec.InsertCredential(opCtx, c.attackID, c.username, password, true); err != nil {
		c.srv.log.ErrorWithErr(c.remoteIP, "ftp_credential_record_failed", err, nil)
	}
}

// recordCommand appends the command to the session log, buffering until the
// session record exists so pre-auth commands are not lost.
func (c *clientConn) recordCommand(ctx context.Context, cmd, arg string) {
	line := cmd
	if arg != "" {
		line = cmd + " " + arg
	}
	c.cmdCount++

	if c.sessionID == uuid.Nil {
		c.pending = append(c.pending, line)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.srv.rec.AppendCommand(opCtx, c.sessionID, line); err != nil {
		c.srv.log.ErrorWithErr(c.remoteIP, "ftp_command_record_failed", err, nil)
	}
}

// close seals the session record and tears down any data channel. It runs on
// a fresh context so shutdown still persists the end time.
func (c *clientConn) close() {
	c.closeDataChannel()

	if c.sessionID != uuid.Nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.srv.rec.CloseSession(ctx, c.sessionID, time.Now().UTC()); err != nil {
			c.srv.log.ErrorWithErr(c.remoteIP, "ftp_session_close_failed", err, nil)
		}
	}

	c.conn.Close()
	c.srv.log.Info(c.remoteIP, "ftp_connection_closed", map[string]interface{}{
		"commands_count": c.cmdCount,
	})
}
