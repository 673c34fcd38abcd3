package panelsim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/spanpanel/span-go/pkg/log"
	"github.com/spanpanel/span-go/pkg/panel"
)

// Server exposes the simulated panel over the REST API a real panel
// serves on port 80.
type Server struct {
	sim  *Simulator
	addr string

	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates the API server for a simulator.
func NewServer(sim *Simulator, addr string) *Server {
	s := &Server{
		sim:  sim,
		addr: addr,
	}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc(panel.PathStatus, s.handleStatus)
	s.mux.HandleFunc(panel.PathRegister, s.handleRegister)
	s.mux.HandleFunc(panel.PathPanel, s.requireAuth(s.handlePanel))
	s.mux.HandleFunc(panel.PathCircuits, s.requireAuth(s.handleCircuits))
	s.mux.HandleFunc(panel.PathCircuits+"/", s.requireAuth(s.handleCircuit))
	s.mux.HandleFunc(panel.PathBattery, s.requireAuth(s.handleBattery))
}

// Handler returns the full request handler, including event logging.
// Useful for serving through a test server.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Start begins serving and blocks until the server stops. A server
// stopped via Shutdown returns nil.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.sim.logger.Info("panel API listening", "addr", s.addr, "serial", s.sim.Serial())

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests records every API call in the event log.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.sim.events.Log(log.Event{
			Timestamp:    time.Now(),
			Category:     log.CategoryHTTP,
			Host:         r.Host,
			SerialNumber: s.sim.Serial(),
			HTTPCall: &log.HTTPCallEvent{
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: rec.status,
				Duration:   time.Since(start),
			},
		})
	})
}

// requireAuth rejects requests without a valid bearer token.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		client, err := s.sim.Authorize(token)
		if err != nil {
			s.sim.logger.Warn("rejected access token", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid access token"})
			return
		}

		s.sim.logger.Debug("authorized request", "client", client, "path", r.URL.Path)
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, statusResponseFrom(s.sim.Status()))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}

	token, err := s.sim.Register(req.Name, req.Description)
	if err != nil {
		if errors.Is(err, ErrWindowLocked) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "auth window is locked"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		IATms:       time.Now().UnixMilli(),
	})
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, panelResponseFrom(s.sim.PanelData()))
}

func (s *Server) handleCircuits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	circuits := s.sim.Circuits()
	resp := circuitsResponse{Circuits: make(map[string]circuitResponse, len(circuits))}
	for _, c := range circuits {
		resp.Circuits[c.ID] = circuitResponseFrom(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCircuit(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, panel.PathCircuits+"/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown circuit"})
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req relayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	err := s.sim.SetRelay(id, panel.RelayState(req.RelayStateIn.RelayState))
	switch {
	case err == nil:
	case errors.Is(err, panel.ErrCircuitNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown circuit"})
		return
	case errors.Is(err, panel.ErrInvalidRelay):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, ErrNotControllable):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	circuit, _ := s.sim.Circuit(id)
	writeJSON(w, http.StatusOK, circuitResponseFrom(circuit))
}

func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	battery, err := s.sim.Battery()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no battery configured"})
		return
	}

	var resp batteryResponse
	resp.SOE.Percentage = battery.Percentage
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}
