// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package detect

import (
	"regexp"
)

// ThreatType labels an attack record. Pattern families carry the first five
// labels; the remaining labels come from path, header, and handler context.
type ThreatType string

const (
	ThreatSQLInjection     ThreatType = "sql_injection"
	ThreatXSS              ThreatType = "xss"
	ThreatPathTraversal    ThreatType = "path_traversal"
	ThreatCommandInjection ThreatType = "command_injection"
	ThreatLFIRFI           ThreatType = "lfi_rfi"
	ThreatReconnaissance   ThreatType = "reconnaissance"
	ThreatScanner          ThreatType = "scanner"
	ThreatProbe            ThreatType = "probe"

	// ThreatCredentialAttack is assigned by handlers that harvest login
	// attempts, not by the matcher.
	ThreatCredentialAttack ThreatType = "credential_attack"
)

// Pattern is one compiled detection rule inside a family.
type Pattern struct {
	// Name is a human-readable identifier for the pattern.
	Name string

	// Threat is the label assigned when the pattern matches.
	Threat ThreatType

	// Regex is the compiled regular expression. Inputs are case-folded
	// before matching, so patterns are written in lower case.
	Regex *regexp.Regexp

	// Description explains what this pattern detects.
	Description string
}

// defaultPatterns returns the built-in detection rules. Order is part of the
// contract: families are evaluated top to bottom and the first match wins, so
// an input matching both sql_injection and xss is labeled sql_injection.
func defaultPatterns() []*Pattern {
	return []*Pattern{
		// SQL injection
		{
			Name:        "quote_or_comment",
			Threat:      ThreatSQLInjection,
			Regex:       regexp.MustCompile(`(%27)|(')|(--)|(%23)|(#)`),
			Description: "Detects quote and comment metacharacters, raw or URL-encoded",
		},
		{
			Name:        "equals_then_terminator",
			Threat:      ThreatSQLInjection,
			Regex:       regexp.MustCompile(`((%3d)|(=))[^\n]*((%27)|(')|(--)|(%3b)|(;))`),
			Description: "Detects assignment followed by a statement terminator",
		},
		{
			Name:        "quoted_or",
			Threat:      ThreatSQLInjection,
			Regex:       regexp.MustCompile(`\w*((%27)|('))((%6f)|o|(%4f))((%72)|r|(%52))`),
			Description: "Detects quote followed by OR, including hex-encoded forms",
		},
		{
			Name:        "union_select",
			Threat:      ThreatSQLInjection,
			Regex:       regexp.MustCompile(`union.*select`),
			Description: "Detects UNION SELECT statements used to extract data",
		},
		{
			Name:        "select_from",
			Threat:      ThreatSQLInjection,
			Regex:       regexp.MustCompile(`select.*from`),
			Description: "Detects SELECT ... FROM statements",
		},
		{
			Name:        "insert_into",
			Threat:      ThreatSQLInjection,
			Regex:       regexp.MustCompile(`insert.*into`),
			Description: "Detects INSERT INTO statements",
		},
		{
			Name:        "drop_table",
			Threat:      ThreatSQLInjection,
			Regex:       regexp.MustCompile(`drop.*table`),
			Description: "Detects DROP TABLE statements",
		},
		{
			Name:        "update_set",
			Threat:      ThreatSQLInjection,
			Regex:       regexp.MustCompile(`update.*set`),
			Description: "Detects UPDATE ... SET statements",
		},
		{
			Name:        "delete_from",
			Threat:      ThreatSQLInjection,
			Regex:       regexp.MustCompile(`delete.*from`),
			Description: "Detects DELETE FROM statements",
		},

		// Cross-site scripting
		{
			Name:        "script_tag",
			Threat:      ThreatXSS,
			Regex:       regexp.MustCompile(`<script[^>]*>`),
			Description: "Detects script tag injection",
		},
		{
			Name:        "javascript_uri",
			Threat:      ThreatXSS,
			Regex:       regexp.MustCompile(`javascript:`),
			Description: "Detects javascript: URI scheme",
		},
		{
			Name:        "event_handler",
			Threat:      ThreatXSS,
			Regex:       regexp.MustCompile(`on\w+\s*=`),
			Description: "Detects inline event handler attributes",
		},
		{
			Name:        "img_onerror",
			Threat:      ThreatXSS,
			Regex:       regexp.MustCompile(`<img[^>]+onerror`),
			Description: "Detects img tag with onerror payload",
		},
		{
			Name:        "svg_onload",
			Threat:      ThreatXSS,
			Regex:       regexp.MustCompile(`<svg[^>]+onload`),
			Description: "Detects svg tag with onload payload",
		},

		// Path traversal
		{
			Name:        "dotdot_slash",
			Threat:      ThreatPathTraversal,
			Regex:       regexp.MustCompile(`\.\./`),
			Description: "Detects ../ traversal sequences",
		},
		{
			Name:        "dotdot_backslash",
			Threat:      ThreatPathTraversal,
			Regex:       regexp.MustCompile(`\.\.\\`),
			Description: "Detects ..\\ traversal sequences",
		},
		{
			Name:        "encoded_dotdot_full",
			Threat:      ThreatPathTraversal,
			Regex:       regexp.MustCompile(`%2e%2e%2f`),
			Description: "Detects fully URL-encoded ../",
		},
		{
			Name:        "encoded_dotdot",
			Threat:      ThreatPathTraversal,
			Regex:       regexp.MustCompile(`%2e%2e/`),
			Description: "Detects URL-encoded dots with literal slash",
		},
		{
			Name:        "dotdot_encoded_slash",
			Threat:      ThreatPathTraversal,
			Regex:       regexp.MustCompile(`\.\.%2f`),
			Description: "Detects literal dots with URL-encoded slash",
		},
		{
			Name:        "etc_passwd",
			Threat:      ThreatPathTraversal,
			Regex:       regexp.MustCompile(`/etc/passwd`),
			Description: "Detects direct reference to /etc/passwd",
		},
		{
			Name:        "etc_shadow",
			Threat:      ThreatPathTraversal,
			Regex:       regexp.MustCompile(`/etc/shadow`),
			Description: "Detects direct reference to /etc/shadow",
		},
		{
			Name:        "windows_dir",
			Threat:      ThreatPathTraversal,
			Regex:       regexp.MustCompile(`c:\\windows`),
			Description: "Detects Windows system directory reference",
		},

		// Command injection
		{
			Name:        "semicolon_command",
			Threat:      ThreatCommandInjection,
			Regex:       regexp.MustCompile(`;\s*\w+`),
			Description: "Detects chained command after a semicolon",
		},
		{
			Name:        "pipe_command",
			Threat:      ThreatCommandInjection,
			Regex:       regexp.MustCompile(`\|\s*\w+`),
			Description: "Detects piped command",
		},
		{
			Name:        "backtick_substitution",
			Threat:      ThreatCommandInjection,
			Regex:       regexp.MustCompile("`[^`]+`"),
			Description: "Detects backtick command substitution",
		},
		{
			Name:        "dollar_substitution",
			Threat:      ThreatCommandInjection,
			Regex:       regexp.MustCompile(`\$\([^)]+\)`),
			Description: "Detects $() command substitution",
		},
		{
			Name:        "and_command",
			Threat:      ThreatCommandInjection,
			Regex:       regexp.MustCompile(`&&\s*\w+`),
			Description: "Detects chained command after &&",
		},

		// Local/remote file inclusion
		{
			Name:        "wrapper_scheme",
			Threat:      ThreatLFIRFI,
			Regex:       regexp.MustCompile(`(file|php|zip|data|expect|input|phar)://`),
			Description: "Detects PHP stream wrapper schemes",
		},
		{
			Name:        "include_call",
			Threat:      ThreatLFIRFI,
			Regex:       regexp.MustCompile(`include\s*\(`),
			Description: "Detects include() calls in payloads",
		},
		{
			Name:        "require_call",
			Threat:      ThreatLFIRFI,
			Regex:       regexp.MustCompile(`require\s*\(`),
			Description: "Detects require() calls in payloads",
		},
	}
}

// sensitivePaths are prefixes attackers probe for during reconnaissance.
var sensitivePaths = []string{
	"/wp-admin",
	"/wp-login.php",
	"/administrator",
	"/admin",
	"/phpmyadmin",
	"/mysql",
	"/.git",
	"/.env",
	"/config",
	"/backup",
	"/.htaccess",
	"/wp-config.php",
	"/xmlrpc.php",
	"/shell",
	"/cmd",
	"/eval",
	"/api/v1",
	"/graphql",
	"/.well-known",
	"/robots.txt",
	"/sitemap.xml",
}

// scannerSignatures are User-Agent substrings of well-known scanning tools.
var scannerSignatures = []string{
	"nikto", "sqlmap", "nmap", "masscan", "zgrab",
	"gobuster", "dirbuster", "wfuzz", "burp", "acunetix",
	"nessus", "qualys", "openvas", "w3af", "skipfish",
}
