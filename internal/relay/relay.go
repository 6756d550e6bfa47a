// Package relay is the optional rate-limited HTTP front that forwards push
// and VoIP requests to APNs on behalf of a broker that cannot reach Apple
// directly. It shares nothing with the broker core beyond the dispatcher.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

// Pusher is the slice of the APNs dispatcher the relay forwards to.
type Pusher interface {
	SendNotifyPush(ctx context.Context, pushToken, title, body, sound string) error
	SendVoipPush(ctx context.Context, voipToken, pushType string, params json.RawMessage) error
}

// Config holds the relay's listen settings and hourly cap.
type Config struct {
	Port       int
	Bind       string
	MaxPerHour int
}

// Server is the relay HTTP front.
type Server struct {
	config  Config
	push    Pusher
	limiter *Limiter

	mu      sync.Mutex
	httpSrv *http.Server
	addr    string
}

func NewServer(config Config, push Pusher) *Server {
	return &Server{
		config:  config,
		push:    push,
		limiter: NewLimiter(config.MaxPerHour),
	}
}

// Addr returns the bound address, or "" if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Router builds the relay's route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/relay/push", s.handlePush).Methods(http.MethodPost)
	r.HandleFunc("/relay/voip", s.handleVoip).Methods(http.MethodPost)
	r.HandleFunc("/relay/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

// ListenAndServe blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port))
	if err != nil {
		return fmt.Errorf("bind %s:%d: %w", s.config.Bind, s.config.Port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpSrv = &http.Server{Handler: s.Router()}
	srv := s.httpSrv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	slog.Info("push relay started", "addr", s.addr)

	if err := srv.Serve(ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// PushRequest is the POST /relay/push body.
type PushRequest struct {
	DeviceToken string `json:"device_token"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Sound       string `json:"sound"`
}

// VoipRequest is the POST /relay/voip body.
type VoipRequest struct {
	VoipToken string `json:"voip_token"`
	PushType  string `json:"type"`
	Sound     string `json:"sound,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Response is the relay's uniform reply shape.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeResponse(w, status, Response{Status: "error", Error: msg})
}

// isValidDeviceToken accepts exactly 64 lowercase hex characters.
func isValidDeviceToken(token string) bool {
	if len(token) != 64 {
		return false
	}
	for _, c := range token {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Sound == "" {
		req.Sound = "default"
	}

	if !isValidDeviceToken(req.DeviceToken) {
		writeError(w, http.StatusBadRequest, "Invalid device token: must be 64 hex characters")
		return
	}
	if !s.limiter.Allow(req.DeviceToken) {
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	slog.Info("relay push", "token_prefix", req.DeviceToken[:8])

	if err := s.push.SendNotifyPush(r.Context(), req.DeviceToken, req.Title, req.Body, req.Sound); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeResponse(w, http.StatusOK, Response{Status: "ok"})
}

func (s *Server) handleVoip(w http.ResponseWriter, r *http.Request) {
	var req VoipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !isValidDeviceToken(req.VoipToken) {
		writeError(w, http.StatusBadRequest, "Invalid VoIP token: must be 64 hex characters")
		return
	}
	if !s.limiter.Allow(req.VoipToken) {
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	params, _ := json.Marshal(map[string]any{
		"sound":   req.Sound,
		"message": req.Message,
	})

	slog.Info("relay voip push", "token_prefix", req.VoipToken[:8])

	if err := s.push.SendVoipPush(r.Context(), req.VoipToken, req.PushType, params); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeResponse(w, http.StatusOK, Response{Status: "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, http.StatusOK, Response{Status: "ok"})
}
