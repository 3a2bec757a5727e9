package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/mmif"
	"github.com/c360/mmif/model"
	"github.com/c360/mmif/pkg/tlsutil"
)

const requestIDHeader = "X-Request-ID"

// ServeCmd runs the HTTP server.
type ServeCmd struct {
	Addr            string        `default:":8080" env:"MMIF_ADDR" help:"Listen address."`
	MaxBody         int64         `name:"max-body" default:"67108864" env:"MMIF_MAX_BODY" help:"Largest accepted request body in bytes."`
	ShutdownTimeout time.Duration `name:"shutdown-timeout" default:"10s" env:"MMIF_SHUTDOWN_TIMEOUT" help:"Graceful shutdown timeout."`

	TLS TLSFlags `embed:"" prefix:"tls-" envprefix:"MMIF_TLS_"`
}

// TLSFlags configure HTTPS and client certificate checks for serve.
type TLSFlags struct {
	Cert              string   `type:"existingfile" env:"CERT" help:"Server certificate (PEM). Enables HTTPS."`
	Key               string   `type:"existingfile" env:"KEY" help:"Server private key (PEM)."`
	MinVersion        string   `name:"min-version" default:"1.2" enum:"1.2,1.3" help:"Lowest accepted TLS version."`
	ClientCA          []string `name:"client-ca" type:"existingfile" help:"CAs that sign accepted client certificates."`
	RequireClientCert bool     `name:"require-client-cert" help:"Reject clients without a certificate."`
	AllowedCN         []string `name:"allowed-cn" help:"Accepted client certificate common names."`
}

func (f TLSFlags) config() tlsutil.ServerConfig {
	return tlsutil.ServerConfig{
		CertFile:          f.Cert,
		KeyFile:           f.Key,
		MinVersion:        f.MinVersion,
		ClientCAFiles:     f.ClientCA,
		RequireClientCert: f.RequireClientCert,
		AllowedClientCNs:  f.AllowedCN,
	}
}

// Run serves until SIGINT or SIGTERM.
func (c *ServeCmd) Run(g *Globals) error {
	e, err := g.setup()
	if err != nil {
		return err
	}
	defer e.stop()

	tlsConfig, err := tlsutil.LoadServerConfig(c.TLS.config())
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           newServer(e, c.MaxBody).routes(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         tlsConfig,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("serving", "addr", c.Addr, "tls", tlsConfig != nil)
		if tlsConfig != nil {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.WrapFatal(err, "cli", "serve", "listen on "+c.Addr)
		}
		return nil
	case <-ctx.Done():
		e.logger.Info("received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.WrapTransient(err, "cli", "serve", "graceful shutdown")
	}
	e.logger.Info("shutdown complete")
	return nil
}

type server struct {
	env     *env
	maxBody int64
}

func newServer(e *env, maxBody int64) *server {
	return &server{env: e, maxBody: maxBody}
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.instrument)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", s.env.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/validate", s.validate).Methods(http.MethodPost)
	r.HandleFunc("/sanitize", s.sanitize).Methods(http.MethodPost)
	r.HandleFunc("/describe", s.describe).Methods(http.MethodPost)
	return r
}

type loggerKey struct{}

func (s *server) logger(r *http.Request) *slog.Logger {
	if l, ok := r.Context().Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return s.env.logger
}

// requestID echoes X-Request-ID, generating one when absent, and scopes the
// request logger to it.
func (s *server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		l := s.env.logger.With("request_id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), loggerKey{}, l)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		s.env.metrics.CoreMetrics().RecordRequest(route, rec.code, elapsed)
		s.logger(r).Debug("request served", "method", r.Method, "route", route, "code", rec.code, "duration", elapsed)
	})
}

// health reports the aggregate status; 503 once any component is unhealthy.
func (s *server) health(w http.ResponseWriter, r *http.Request) {
	status := s.env.health.AggregateHealth(appName)
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, code, status)
}

func (s *server) body(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, err)
			return nil, false
		}
		s.writeError(w, r, http.StatusBadRequest, err)
		return nil, false
	}
	return data, true
}

func (s *server) validate(w http.ResponseWriter, r *http.Request) {
	data, ok := s.body(w, r)
	if !ok {
		return
	}
	report := check(s.env, data)
	code := http.StatusOK
	if !report.Valid {
		code = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, r, code, report)
}

func (s *server) sanitize(w http.ResponseWriter, r *http.Request) {
	data, ok := s.body(w, r)
	if !ok {
		return
	}
	m, err := mmif.FromJSON(data, s.env.options()...)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	opts := []mmif.SanitizeOption{mmif.InPlace()}
	if strict, _ := strconv.ParseBool(r.URL.Query().Get("strict")); strict {
		opts = append(opts, mmif.FailOnFindings())
	}
	m, findings, err := m.Sanitize(opts...)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty"))
	out, err := m.Serialize(pretty)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-MMIF-Findings", strconv.Itoa(len(findings)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *server) describe(w http.ResponseWriter, r *http.Request) {
	data, ok := s.body(w, r)
	if !ok {
		return
	}
	m, err := mmif.FromJSON(data, s.env.options()...)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, mmif.Describe(m))
}

// statusFor maps error classes to HTTP status codes.
func statusFor(err error) int {
	switch errors.Classify(err) {
	case errors.ErrorFatal:
		return http.StatusBadRequest
	case errors.ErrorTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	s.logger(r).Warn("request failed", "path", r.URL.Path, "code", code, "error", err)
	s.writeJSON(w, r, code, map[string]string{"error": err.Error(), "class": errors.Classify(err).String()})
}

func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	b, err := model.Marshal(v)
	if err != nil {
		s.logger(r).Error("encode response", "error", err)
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}
