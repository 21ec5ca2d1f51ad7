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

package httppot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"axonflow/honeynet/config"
	"axonflow/honeynet/detect"
	"axonflow/honeynet/shared/logger"
	"axonflow/honeynet/shared/metrics"
	"axonflow/honeynet/store"
)

const (
	// bodyCaptureLimit bounds how much of a request body is read into
	// memory for capture.
	bodyCaptureLimit = 1 << 20

	// payloadBodyLimit bounds how much of the body lands in the attack
	// payload.
	payloadBodyLimit = 1000
)

// Server is the HTTP deception service.
type Server struct {
	cfg     config.HTTPConfig
	rec     store.Recorder
	matcher *detect.Matcher
	log     *logger.Logger
	router  *mux.Router
}

// NewServer wires the fake WordPress routes behind the capture middleware.
func NewServer(cfg config.HTTPConfig, rec store.Recorder) *Server {
	s := &Server{
		cfg:     cfg,
		rec:     rec,
		matcher: detect.NewMatcher(),
		log:     logger.New("httppot"),
		router:  mux.NewRouter(),
	}

	s.router.Use(s.captureMiddleware)

	s.router.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	s.router.HandleFunc("/index.php", s.handleHome).Methods(http.MethodGet)
	s.router.HandleFunc("/index.html", s.handleHome).Methods(http.MethodGet)

	s.router.HandleFunc("/wp-login.php", s.handleLoginForm).Methods(http.MethodGet)
	s.router.HandleFunc("/wp-login.php", s.handleLoginPost).Methods(http.MethodPost)
	s.router.HandleFunc("/wp-admin", s.handleAdminRedirect).Methods(http.MethodGet)
	s.router.HandleFunc("/wp-admin/", s.handleAdminRedirect).Methods(http.MethodGet)
	s.router.HandleFunc("/xmlrpc.php", s.handleXMLRPC).Methods(http.MethodPost)

	s.router.HandleFunc("/robots.txt", s.handleRobots).Methods(http.MethodGet)
	if cfg.ServeFiles {
		s.router.HandleFunc("/.env", s.handleEnvProbe).Methods(http.MethodGet)
		s.router.HandleFunc("/config.php", s.handleConfigProbe).Methods(http.MethodGet)
	}

	// Everything else gets the themed 404 so the middleware still records
	// the probe.
	s.router.PathPrefix("/").HandlerFunc(s.handleCatchall)

	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("", "http_honeypot_started", map[string]interface{}{
		"host":     s.cfg.Host,
		"port":     s.cfg.Port,
		"fake_cms": s.cfg.FakeCMS,
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http honeypot listen on %s: %w", addr, err)
	}
	s.log.Info("", "http_honeypot_stopped", nil)
	return nil
}

// captureMiddleware classifies and records every request before its handler
// runs, and turns handler panics into a plain 500.
func (s *Server) captureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteIP := clientIP(r)
		metrics.ConnectionsTotal.WithLabelValues(store.ServiceHTTP).Inc()

		var body string
		if r.Method == http.MethodPost && r.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(r.Body, bodyCaptureLimit))
			if err == nil {
				body = string(raw)
			}
			r.Body.Close()
			// Hand the handler a fresh copy so form parsing still works.
			r.Body = io.NopCloser(bytes.NewReader([]byte(body)))
		}

		summary := detect.RequestSummary{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.RawQuery,
			Headers: flattenHeaders(r.Header),
			Body:    body,
		}
		threat := s.matcher.Classify(summary)

		s.log.Info(remoteIP, "http_request_received", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"query":       r.URL.RawQuery,
			"user_agent":  r.UserAgent(),
			"threat_type": string(threat),
		})

		s.recordRequest(remoteIP, summary, threat)

		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error(remoteIP, "http_handler_error", map[string]interface{}{
					"error": fmt.Sprint(rec),
				})
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// recordRequest persists the request as an attack record. Store failures are
// logged and swallowed; the response must go out regardless.
func (s *Server) recordRequest(remoteIP string, summary detect.RequestSummary, threat detect.ThreatType) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := map[string]interface{}{
		"method":     summary.Method,
		"path":       summary.Path,
		"query":      summary.Query,
		"headers":    summary.Headers,
		"user_agent": summary.UserAgent(),
	}
	if summary.Body != "" {
		body := summary.Body
		if len(body) > payloadBodyLimit {
			body = body[:payloadBodyLimit]
		}
		payload["body"] = body
	}

	threatStr := string(threat)
	attackID, err := s.rec.InsertAttack(ctx, &store.Attack{
		IP:         remoteIP,
		Service:    store.ServiceHTTP,
		ThreatType: &threatStr,
		Payload:    payload,
	})
	if err != nil {
		s.log.ErrorWithErr(remoteIP, "http_attack_record_failed", err, nil)
		return
	}
	metrics.AttacksRecordedTotal.WithLabelValues(store.ServiceHTTP, threatStr).Inc()
	s.log.Debug(remoteIP, "http_attack_recorded", map[string]interface{}{
		"attack_id":   attackID.String(),
		"threat_type": threatStr,
	})
}

// recordCredential persists a harvested login attempt as its own attack.
func (s *Server) recordCredential(remoteIP, username, password string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	threat := string(detect.ThreatCredentialAttack)
	attackID, err := s.rec.InsertAttack(ctx, &store.Attack{
		IP:         remoteIP,
		Service:    store.ServiceHTTP,
		ThreatType: &threat,
		Payload: map[string]interface{}{
			"type":     "login_attempt",
			"username": username,
		},
	})
	if err != nil {
		s.log.ErrorWithErr(remoteIP, "http_credential_record_failed", err, nil)
		return
	}
	metrics.AttacksRecordedTotal.WithLabelValues(store.ServiceHTTP, threat).Inc()

	// The form always reports failure, so success is false.
	if _, err := s.rec.InsertCredential(ctx, attackID, username, password, false); err != nil {
		s.log.ErrorWithErr(remoteIP, "http_credential_record_failed", err, nil)
		return
	}
	s.log.Warn(remoteIP, "http_credential_captured", map[string]interface{}{
		"username": username,
	})
}

// --- route handlers ---

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.writeWordPressHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, homePage(s.cfg.FakeCMS))
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.writeWordPressHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, loginPage(false))
}

func (s *Server) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	remoteIP := clientIP(r)

	if err := r.ParseForm(); err != nil {
		s.log.ErrorWithErr(remoteIP, "http_login_parse_error", err, nil)
	} else {
		username := r.PostFormValue("log")
		password := r.PostFormValue("pwd")
		if username != "" || password != "" {
			s.recordCredential(remoteIP, username, password)
		}
	}

	// The login always fails from the peer's point of view.
	s.writeWordPressHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, loginPage(true))
}

func (s *Server) handleAdminRedirect(w http.ResponseWriter, r *http.Request) {
	s.writeWordPressHeaders(w)
	http.Redirect(w, r, "/wp-login.php?redirect_to=/wp-admin/", http.StatusFound)
}

func (s *Server) handleXMLRPC(w http.ResponseWriter, r *http.Request) {
	s.writeWordPressHeaders(w)
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	io.WriteString(w, xmlrpcFault)
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, robotsBody)
}

func (s *Server) handleEnvProbe(w http.ResponseWriter, r *http.Request) {
	s.log.Warn(clientIP(r), "http_sensitive_file_accessed", map[string]interface{}{
		"path": "/.env",
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, envBody)
}

func (s *Server) handleConfigProbe(w http.ResponseWriter, r *http.Request) {
	s.log.Warn(clientIP(r), "http_sensitive_file_accessed", map[string]interface{}{
		"path": "/config.php",
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, configBody)
}

func (s *Server) handleCatchall(w http.ResponseWriter, r *http.Request) {
	s.writeWordPressHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(w, notFoundPage)
}

// writeWordPressHeaders adds the response headers a real WordPress behind
// Apache would send.
func (s *Server) writeWordPressHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Server", "Apache/2.4.41 (Ubuntu)")
	h.Set("X-Powered-By", "PHP/7.4.3")
	h.Set("X-Pingback", "/xmlrpc.php")
	h.Set("Link", `</>; rel="https://api.w.org/"`)
}

// clientIP resolves the peer address, honoring proxy headers so deployments
// behind a load balancer still attribute attacks correctly.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}

// flattenHeaders keeps the first value per header for the attack payload.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
