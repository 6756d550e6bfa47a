package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// ServerConfig holds the broker server's listen settings.
type ServerConfig struct {
	Port int
	Bind string

	// Upgrade rate limiting; zero disables it.
	RateLimit float64
	RateBurst int
}

// Server owns the HTTP listener: REST API under bearer auth, the device
// and client websocket endpoints, health, and metrics.
type Server struct {
	config   ServerConfig
	broker   *Broker
	upgrader websocket.Upgrader
	limiter  *rate.Limiter

	mu      sync.Mutex
	httpSrv *http.Server
	addr    string
}

func NewServer(config ServerConfig, broker *Broker) *Server {
	s := &Server{
		config: config,
		broker: broker,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if config.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst)
	}
	return s
}

// Addr returns the bound address, or "" if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/command", s.broker.handleCommand).Methods(http.MethodPost)
	api.HandleFunc("/devices/pair", s.broker.handlePair).Methods(http.MethodPost)
	api.HandleFunc("/devices", s.broker.handleDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", s.broker.handleDeleteDevice).Methods(http.MethodDelete)
	api.HandleFunc("/status", s.broker.handleStatus).Methods(http.MethodGet)
	api.Use(func(next http.Handler) http.Handler {
		return bearerAuth(s.broker.apiKey, next)
	})

	r.HandleFunc("/ws/device", s.handleDeviceWS).Methods(http.MethodGet)
	r.HandleFunc("/ws/client", s.handleClientWS).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", MetricsHandler()).Methods(http.MethodGet)

	return r
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port))
	if err != nil {
		return fmt.Errorf("bind %s:%d: %w", s.config.Bind, s.config.Port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpSrv = &http.Server{
		Handler:     s.router(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	srv := s.httpSrv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	if err := srv.Serve(ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting new requests and lets in-flight ones finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) allowUpgrade() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// handleDeviceWS upgrades a device socket. No bearer here; the device
// proves itself in-band through the pairing or auth handshake.
func (s *Server) handleDeviceWS(w http.ResponseWriter, r *http.Request) {
	if !s.allowUpgrade() {
		http.Error(w, "Too many connection attempts", http.StatusTooManyRequests)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	newDeviceSession(ws, s.broker).Run(r.Context())
}

// handleClientWS upgrades a client event stream. Auth is the api key in
// the token query parameter.
func (s *Server) handleClientWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.broker.apiKey)) != 1 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !s.allowUpgrade() {
		http.Error(w, "Too many connection attempts", http.StatusTooManyRequests)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	(&clientSession{ws: ws, bus: s.broker.bus}).Run()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
