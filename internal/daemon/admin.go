package daemon

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/logfields"
	"git.home.luguber.info/inful/sitesnap/internal/metrics"
)

// HealthStatus represents the overall health of the daemon.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
)

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status    HealthStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Running   bool         `json:"running"`
}

// AdminServer serves /healthz, /status, /metrics and /trigger.
type AdminServer struct {
	addr     string
	registry *prom.Registry
	daemon   *Daemon
	ln       net.Listener
	srv      *http.Server
}

// NewAdminServer creates an admin server for addr. Metrics are served from
// reg; a nil registry serves the process default.
func NewAdminServer(addr string, reg *prom.Registry) *AdminServer {
	return &AdminServer{addr: addr, registry: reg}
}

func (a *AdminServer) attach(d *Daemon) { a.daemon = d }

// Handler returns the admin routes.
func (a *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/status", a.handleStatus)
	mux.HandleFunc("/trigger", a.handleTrigger)
	mux.Handle("/metrics", metrics.HTTPHandler(a.registry))
	return mux
}

// Listen binds the configured address.
func (a *AdminServer) Listen() error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return errors.DaemonError("failed to bind admin address").
			WithCause(err).
			WithContext("addr", a.addr).
			Build()
	}
	a.ln = ln
	a.srv = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (a *AdminServer) Addr() string {
	if a.ln != nil {
		return a.ln.Addr().String()
	}
	return a.addr
}

// Serve blocks until Shutdown. A clean shutdown returns nil.
func (a *AdminServer) Serve() error {
	slog.Info("Admin server listening", slog.String("addr", a.Addr()))
	if err := a.srv.Serve(a.ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (a *AdminServer) Shutdown(ctx context.Context) error {
	if a.srv == nil {
		return nil
	}
	return a.srv.Shutdown(ctx)
}

func (a *AdminServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: HealthStatusHealthy, Timestamp: time.Now().UTC()}
	if a.daemon != nil {
		st := a.daemon.Status()
		resp.Running = st.Snapshot(time.Now()).Running
		if !st.Healthy() {
			resp.Status = HealthStatusDegraded
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *AdminServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if a.daemon == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "daemon not attached"})
		return
	}
	writeJSON(w, http.StatusOK, a.daemon.Status().Snapshot(time.Now()))
}

func (a *AdminServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if a.daemon == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "daemon not attached"})
		return
	}
	queued := a.daemon.Trigger(ReasonAdmin)
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode admin response", logfields.Error(err))
	}
}
