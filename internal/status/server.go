package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/logger"
	"github.com/gorilla/mux"
)

const readHeaderTimeout = 5 * time.Second

type tickResponse struct {
	Timestamp  time.Time `json:"timestamp"`
	Profile    string    `json:"profile"`
	CPUTemp    int       `json:"cpu_temp"`
	GPUTemp    int       `json:"gpu_temp"`
	GPUProbe   *int      `json:"gpu_probe_temp,omitempty"`
	FanDuty    int       `json:"fan_duty"`
	Desired    int       `json:"desired_duty"`
	Target     int       `json:"target_duty"`
	FanRPM     int       `json:"fan_rpm"`
	Written    bool      `json:"written"`
	Reason     string    `json:"reason"`
	Ticks      uint64    `json:"ticks"`
	UptimeSecs int64     `json:"uptime_seconds"`
}

type Server struct {
	store *Store
	log   logger.Logger
	srv   *http.Server
	done  chan error
}

// NewServer serves a read-only view of store on addr.
func NewServer(addr string, store *Store, log logger.Logger) *Server {
	s := &Server{store: store, log: log}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	return r
}

// Start binds the listener and serves in the background. Bind failures are
// returned directly.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errors.New().Wrap(errors.ErrInitFailed, err)
	}

	s.done = make(chan error, 1)
	go func() {
		err := s.srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Status server stopped")
		}
		s.done <- err
	}()

	s.log.Info().Msgf("Status endpoint listening on %s", ln.Addr())

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.done == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}
	<-s.done
	s.done = nil

	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	last, ok := s.store.Last()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no tick recorded yet"})
		return
	}

	resp := tickResponse{
		Timestamp:  last.Timestamp,
		Profile:    last.Profile,
		CPUTemp:    last.Temperature.CPU,
		GPUTemp:    last.Temperature.GPU,
		FanDuty:    last.FanDuty.Current,
		Desired:    last.FanDuty.Desired,
		Target:     last.FanDuty.Target,
		FanRPM:     last.FanRPM,
		Written:    last.Action.Written,
		Reason:     last.Action.Reason,
		Ticks:      s.store.Ticks(),
		UptimeSecs: int64(s.store.Uptime().Seconds()),
	}
	if last.Temperature.GPUProbe >= 0 {
		probe := last.Temperature.GPUProbe
		resp.GPUProbe = &probe
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
