// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package detect

import (
	"strings"
)

// classifyBodyLimit caps how much of the body feeds classification.
const classifyBodyLimit = 1000

// RequestSummary is the matcher's view of one HTTP request. Only the fields
// relevant to classification are carried; header keys are canonical.
type RequestSummary struct {
	Method  string
	Path    string
	Query   string
	Headers map[string]string
	Body    string
}

// UserAgent returns the request's User-Agent header, or "".
func (r RequestSummary) UserAgent() string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, "User-Agent") {
			return v
		}
	}
	return ""
}

// Matcher classifies request summaries into threat types. It is immutable
// after construction and safe for concurrent use.
type Matcher struct {
	patterns []*Pattern
}

// NewMatcher creates a matcher with the built-in pattern families.
func NewMatcher() *Matcher {
	return &Matcher{patterns: defaultPatterns()}
}

// Patterns returns the matcher's rules in evaluation order.
func (m *Matcher) Patterns() []*Pattern {
	return m.patterns
}

// Classify labels a request. Pattern families are checked first in a fixed
// order, then sensitive path prefixes, then scanner User-Agent substrings;
// anything left is a probe. The function is pure: identical inputs always
// yield identical labels.
func (m *Matcher) Classify(req RequestSummary) ThreatType {
	path := strings.ToLower(req.Path)
	combined := path + "?" + strings.ToLower(req.Query)

	if req.Body != "" {
		body := req.Body
		if len(body) > classifyBodyLimit {
			body = body[:classifyBodyLimit]
		}
		combined += " " + strings.ToLower(body)
	}

	for _, p := range m.patterns {
		if p.Regex.MatchString(combined) {
			return p.Threat
		}
	}

	for _, prefix := range sensitivePaths {
		if strings.HasPrefix(path, prefix) {
			return ThreatReconnaissance
		}
	}

	ua := strings.ToLower(req.UserAgent())
	for _, sig := range scannerSignatures {
		if strings.Contains(ua, sig) {
			return ThreatScanner
		}
	}

	return ThreatProbe
}
