package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Paintersrp/forkrun/internal/api"
	"github.com/Paintersrp/forkrun/internal/metrics"
)

const (
	defaultAddr            = "127.0.0.1:9464"
	defaultReadHeader      = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config controls construction of the diagnostics server.
type Config struct {
	Addr       string
	Controller api.Controller
	// Listener, when set, is served instead of listening on Addr.
	Listener          net.Listener
	Registry          *prometheus.Registry
	Logger            zerolog.Logger
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server exposes in-flight runs, health and metrics over HTTP.
type Server struct {
	ctrl            api.Controller
	handler         http.Handler
	addr            string
	listener        net.Listener
	logger          zerolog.Logger
	readHeader      time.Duration
	shutdownTimeout time.Duration
}

// NewServer validates cfg and builds the route table. Nothing listens until
// Run is called.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("controller is required")
	}
	if v := reflect.ValueOf(cfg.Controller); v.Kind() == reflect.Ptr && v.IsNil() {
		return nil, fmt.Errorf("controller is required (got nil %T)", cfg.Controller)
	}
	registry := cfg.Registry
	if registry == nil {
		registry = metrics.Registry()
	}

	s := &Server{
		ctrl:            cfg.Controller,
		addr:            normalizeAddr(cfg.Addr),
		listener:        cfg.Listener,
		logger:          cfg.Logger,
		readHeader:      cfg.ReadHeaderTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if s.readHeader <= 0 {
		s.readHeader = defaultReadHeader
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = defaultShutdownTimeout
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", getOnly(s.handleHealth))
	mux.HandleFunc("/api/v1/status", getOnly(s.handleStatus))
	mux.HandleFunc("/api/v1/runs/{id}", getOnly(s.handleRun))
	mux.HandleFunc("/api/v1/runs/", getOnly(s.handleRun))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s.handler = mux
	return s, nil
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the address being served, which differs from the configured
// one when the listener picked the port.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx stdcontext.Context) error {
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.addr, err)
		}
		s.listener = ln
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.readHeader,
	}
	stop := stdcontext.AfterFunc(ctx, func() {
		shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("diagnostics shutdown incomplete")
		}
	})
	defer stop()

	if err := srv.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{
				Code:    "method_not_allowed",
				Message: fmt.Sprintf("method %s not allowed", r.Method),
			})
			return
		}
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.ctrl.Status(r.Context())
	if err != nil {
		s.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.fail(w, fmt.Errorf("%w: missing run id", api.ErrUnknownRun), map[string]any{"run": id})
		return
	}
	info, err := s.ctrl.Run(r.Context(), id)
	if err != nil {
		s.fail(w, err, map[string]any{"run": id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": info})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, err error, extra map[string]any) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("diagnostics request failed")
	}
	details := map[string]any{"timestamp": time.Now().UTC()}
	for k, v := range extra {
		details[k] = v
	}
	writeJSON(w, status, errorBody{Code: code, Message: err.Error(), Details: details})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, api.ErrUnknownRun):
		return http.StatusNotFound, "unknown_run"
	case errors.Is(err, stdcontext.Canceled), errors.Is(err, stdcontext.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// normalizeAddr keeps the server on loopback unless a concrete host is named.
func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return defaultAddr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
