// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package ftppot

import (
	"fmt"
	"strings"
)

// fakeFile is one entry in the fake directory tree.
type fakeFile struct {
	name string
	dir  bool
	size int64
}

// fakeTree is the directory structure shown to every peer. The names are
// chosen to look worth stealing.
var fakeTree = map[string][]fakeFile{
	"/": {
		{name: ".", dir: true, size: 4096},
		{name: "..", dir: true, size: 4096},
		{name: "backup", dir: true, size: 4096},
		{name: "public_html", dir: true, size: 4096},
		{name: "logs", dir: true, size: 4096},
		{name: ".htaccess", size: 235},
		{name: "config.php", size: 1842},
	},
	"/backup": {
		{name: ".", dir: true, size: 4096},
		{name: "..", dir: true, size: 4096},
		{name: "db_backup_2024.sql.gz", size: 15728640},
		{name: "site_backup.tar.gz", size: 52428800},
		{name: "credentials.txt", size: 512},
	},
	"/public_html": {
		{name: ".", dir: true, size: 4096},
		{name: "..", dir: true, size: 4096},
		{name: "index.php", size: 4523},
		{name: "wp-config.php", size: 2841},
		{name: "wp-content", dir: true, size: 4096},
	},
	"/logs": {
		{name: ".", dir: true, size: 4096},
		{name: "..", dir: true, size: 4096},
		{name: "access.log", size: 1048576},
		{name: "error.log", size: 524288},
	},
}

// resolvePath normalizes path against cwd, collapsing "." and "..". The
// result always stays inside the fake root.
func resolvePath(cwd, path string) string {
	if path == "" {
		return cwd
	}

	var full string
	if strings.HasPrefix(path, "/") {
		full = path
	} else if cwd == "/" {
		full = "/" + path
	} else {
		full = cwd + "/" + path
	}

	var resolved []string
	for _, part := range strings.Split(full, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(resolved) > 0 {
				resolved = resolved[:len(resolved)-1]
			}
		default:
			resolved = append(resolved, part)
		}
	}
	if len(resolved) == 0 {
		return "/"
	}
	return "/" + strings.Join(resolved, "/")
}

// dirExists reports whether the path names a directory in the fake tree.
func dirExists(path string) bool {
	_, ok := fakeTree[path]
	return ok
}

// listingLines renders a Unix-style LIST response for the directory.
func listingLines(path string) []string {
	files := fakeTree[path]
	lines := make([]string, 0, len(files))
	for _, f := range files {
		ftype, perms := "-", "rw-r--r--"
		if f.dir {
			ftype, perms = "d", "rwxr-xr-x"
		}
		lines = append(lines, fmt.Sprintf(
			"%s%s   1 ftp      ftp  %10d Dec  5 12:00 %s",
			ftype, perms, f.size, f.name,
		))
	}
	return lines
}

// nameList renders an NLST response, skipping the dot entries.
func nameList(path string) []string {
	files := fakeTree[path]
	names := make([]string, 0, len(files))
	for _, f := range files {
		if f.name == "." || f.name == ".." {
			continue
		}
		names = append(names, f.name)
	}
	return names
}

// fileSize looks up a file's advertised size.
func fileSize(fullPath string) (int64, bool) {
	dir, name := splitPath(fullPath)
	for _, f := range fakeTree[dir] {
		if f.name == name {
			return f.size, true
		}
	}
	return 0, false
}

func splitPath(fullPath string) (dir, name string) {
	idx := strings.LastIndex(fullPath, "/")
	if idx <= 0 {
		return "/", strings.TrimPrefix(fullPath, "/")
	}
	return fullPath[:idx], fullPath[idx+1:]
}

// fakeContent fabricates download bodies keyed off the filename. Anything
// credential-shaped gets bait secrets.
func fakeContent(filename string) string {
	lower := strings.ToLower(filename)

	switch {
	case strings.Contains(lower, "passwd") || strings.Contains(lower, "credentials"):
		return "# Credentials backup\n" +
			"admin:admin123\n" +
			"root:toor\n" +
			"ftpuser:ftp@2024!\n" +
			"backup:b4ckup_p4ss\n"
	case strings.Contains(lower, "config"):
		return "<?php\n" +
			"define('DB_NAME', 'wordpress');\n" +
			"define('DB_USER', 'wp_admin');\n" +
			"define('DB_PASSWORD', 'S3cr3t_DB_P4ss!');\n" +
			"define('DB_HOST', 'localhost');\n" +
			"?>\n"
	case strings.Contains(lower, ".sql"):
		return "-- MySQL dump\n" +
			"-- Database: wordpress\n" +
			"CREATE TABLE users (id INT, username VARCHAR(255));\n" +
			"INSERT INTO users VALUES (1, 'admin');\n"
	case strings.Contains(lower, ".htaccess"):
		return "RewriteEngine On\n" +
			"RewriteRule ^admin /login.php [L]\n"
	default:
		return "Content of " + filename + "\n"
	}
}
