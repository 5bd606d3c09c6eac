// Package web provides the HTTP status server for the reservoir controller.
package web

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/hydro-controller/internal/metrics"
	"github.com/sweeney/hydro-controller/internal/mqtt"
	"github.com/sweeney/hydro-controller/internal/status"
)

// PumpController accepts manual pump commands.
type PumpController interface {
	SetPump(on bool)
}

// Server serves the status page, the JSON status, the manual pump override
// and the Prometheus metrics.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	pump       PumpController
	logger     *slog.Logger
}

// New creates a Server that reads state from the given tracker. A nil pump
// disables the override endpoint.
func New(addr string, tracker *status.Tracker, pump PumpController, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{tracker: tracker, pump: pump, logger: logger}

	r := mux.NewRouter()
	r.Use(instrument)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet, http.MethodHead)
	if pump != nil {
		r.HandleFunc("/api/pump", s.handlePump).Methods(http.MethodPost)
	}
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.logger.Error("render status page", "err", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handlePump takes the command from the "on" form value, or the raw body
// when no form value is given. Browsers are sent back to the status page;
// other clients get the updated status as JSON.
func (s *Server) handlePump(w http.ResponseWriter, r *http.Request) {
	raw := []byte(r.FormValue("on"))
	if len(raw) == 0 {
		body, err := io.ReadAll(io.LimitReader(r.Body, 64))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		raw = body
	}

	on, err := mqtt.ParseCommand(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info("manual pump command", "on", on, "remote", r.RemoteAddr)
	s.pump.SetPump(on)
	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.handleJSON(w, r)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.HTTPRequestLatencySeconds.
			WithLabelValues(route, r.Method).
			Observe(time.Since(start).Seconds())
	})
}
