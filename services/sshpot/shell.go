// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package sshpot

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"axonflow/honeynet/shared/logger"
	"axonflow/honeynet/store"
)

// shell emulates an interactive root shell over a byte stream. It owns the
// session record tied to the attack and seals it when the stream ends.
type shell struct {
	rw        io.ReadWriter
	rec       store.Recorder
	log       *logger.Logger
	remoteIP  string
	attackID  uuid.UUID
	sessionID uuid.UUID
}

func newShell(rw io.ReadWriter, rec store.Recorder, log *logger.Logger, remoteIP string, attackID uuid.UUID) *shell {
	return &shell{
		rw:       rw,
		rec:      rec,
		log:      log,
		remoteIP: remoteIP,
		attackID: attackID,
	}
}

// run drives the shell until the peer logs out, sends EOF, or the stream
// breaks. The session is closed exactly once on the way out.
func (sh *shell) run(ctx context.Context) error {
	sh.openSession(ctx)
	defer sh.closeSession()

	sh.write(motd)
	sh.write(prompt)

	var line []byte
	r := bufio.NewReader(sh.rw)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}

		switch b {
		case '\r', '\n':
			sh.write("\r\n")
			cmd := strings.TrimSpace(string(line))
			line = line[:0]
			if cmd != "" {
				if done := sh.handleCommand(ctx, cmd); done {
					sh.write("\r\nlogout\r\n")
					return nil
				}
			}
			sh.write(prompt)
		case 0x7f: // backspace
			if len(line) > 0 {
				line = line[:len(line)-1]
				sh.write("\b \b")
			}
		case 0x03: // Ctrl-C discards the pending line
			line = line[:0]
			sh.write("^C\r\n")
			sh.write(prompt)
		case 0x04: // Ctrl-D
			sh.write("\r\nlogout\r\n")
			return nil
		default:
			line = append(line, b)
			sh.write(string([]byte{b}))
		}
	}
}

// handleCommand records the command, writes the canned reply, and reports
// whether the shell should terminate.
func (sh *shell) handleCommand(ctx context.Context, cmd string) (done bool) {
	sh.log.Warn(sh.remoteIP, "ssh_command_captured", map[string]interface{}{
		"command":    cmd,
		"session_id": sh.sessionID.String(),
	})
	sh.appendCommand(ctx, cmd)

	lower := strings.ToLower(cmd)
	base := strings.Fields(lower)[0]

	if lower == "exit" || lower == "logout" {
		return true
	}

	if resp, ok := cannedResponses[lower]; ok {
		sh.writeResponse(resp)
		return false
	}
	if resp, ok := cannedResponses[base]; ok {
		sh.writeResponse(resp)
		return false
	}
	if silentBuiltins[base] {
		return false
	}

	sh.writeResponse("-bash: " + base + ": command not found")
	return false
}

func (sh *shell) writeResponse(resp string) {
	if resp == "" {
		return
	}
	sh.write(strings.ReplaceAll(resp, "\n", "\r\n") + "\r\n")
}

func (sh *shell) write(s string) {
	io.WriteString(sh.rw, s)
}

func (sh *shell) openSession(ctx context.Context) {
	if sh.attackID == uuid.Nil {
		return
	}
	id, err := sh.rec.OpenSession(ctx, sh.attackID)
	if err != nil {
		sh.log.ErrorWithErr(sh.remoteIP, "ssh_session_create_failed", err, nil)
		return
	}
	sh.sessionID = id
	sh.log.Info(sh.remoteIP, "ssh_session_created", map[string]interface{}{
		"session_id": id.String(),
		"attack_id":  sh.attackID.String(),
	})
}

func (sh *shell) appendCommand(ctx context.Context, cmd string) {
	if sh.sessionID == uuid.Nil {
		return
	}
	if err := sh.rec.AppendCommand(ctx, sh.sessionID, cmd); err != nil {
		sh.log.ErrorWithErr(sh.remoteIP, "ssh_command_record_failed", err, nil)
	}
}

// closeSession runs on a fresh context so a canceled shell still seals its
// session record.
func (sh *shell) closeSession() {
	if sh.sessionID == uuid.Nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sh.rec.CloseSession(ctx, sh.sessionID, time.Now().UTC()); err != nil {
		sh.log.ErrorWithErr(sh.remoteIP, "ssh_session_close_failed", err, nil)
	}
	sh.log.Info(sh.remoteIP, "ssh_session_ended", map[string]interface{}{
		"session_id": sh.sessionID.String(),
	})
}
