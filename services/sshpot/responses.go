// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package sshpot

// prompt is the fake shell prompt. The claimed root login matches the
// always-succeed authentication.
const prompt = "root@honeypot:~# "

// motd is written once after the shell opens.
const motd = "\r\n" +
	"Welcome to Ubuntu 20.04.3 LTS (GNU/Linux 5.4.0-89-generic x86_64)\r\n" +
	"\r\n" +
	" * Documentation:  https://help.ubuntu.com\r\n" +
	" * Management:     https://landscape.canonical.com\r\n" +
	" * Support:        https://ubuntu.com/advantage\r\n" +
	"\r\n" +
	"Last login: Mon Dec  2 14:23:45 2024 from 192.168.1.1\r\n"

// cannedResponses maps commands to fixed output. Lookup tries the full
// command line first, then its first word, so "uname -a" and "uname" give
// different answers while "ls /tmp" falls back to the "ls" entry.
var cannedResponses = map[string]string{
	"whoami":   "root",
	"id":       "uid=0(root) gid=0(root) groups=0(root)",
	"pwd":      "/root",
	"uname":    "Linux",
	"hostname": "honeypot",
	"uname -a": "Linux honeypot 5.4.0-89-generic #100-Ubuntu SMP " +
		"Fri Sep 24 14:50:10 UTC 2021 x86_64 GNU/Linux",
	"uptime": " 14:32:45 up 127 days, 3:42, 1 user, load average: " +
		"0.00, 0.01, 0.05",
	"cat /etc/passwd": "root:x:0:0:root:/root:/bin/bash\n" +
		"daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin\n" +
		"bin:x:2:2:bin:/bin:/usr/sbin/nologin\n" +
		"sys:x:3:3:sys:/dev:/usr/sbin/nologin\n" +
		"www-data:x:33:33:www-data:/var/www:/usr/sbin/nologin",
	"ls": "Desktop  Documents  Downloads  Music  Pictures",
	"ls -la": "total 32\n" +
		"drwx------  5 root root 4096 Dec  2 14:23 .\n" +
		"drwxr-xr-x 20 root root 4096 Nov 15 10:00 ..\n" +
		"-rw-------  1 root root  220 Nov 15 10:00 .bash_logout\n" +
		"-rw-------  1 root root 3771 Nov 15 10:00 .bashrc\n" +
		"drwx------  2 root root 4096 Nov 15 10:00 .ssh",
	"w": " 14:32:45 up 127 days, 1 user, load average: 0.00\n" +
		"USER     TTY      FROM             LOGIN@   IDLE\n" +
		"root     pts/0    192.168.1.100    14:32    0.00s",
	"exit":   "",
	"logout": "",
}

// silentBuiltins produce no output and no error, like a real bash would for
// a successful builtin.
var silentBuiltins = map[string]bool{
	"cd":     true,
	"export": true,
	"source": true,
	".":      true,
}
