// Package api exposes the gate control surface over HTTP.
//
// Routes:
//
//	GET  /api/v1/status    current gate view
//	POST /api/v1/start     start scanning
//	POST /api/v1/stop      stop and disconnect
//	POST /api/v1/commands  send a gate command
//	POST /api/v1/auth      authenticate the live session
//	GET  /api/v1/events    WebSocket event stream and control frames
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chaz8081/gatekeeper/internal/events"
	"github.com/chaz8081/gatekeeper/internal/gate"
)

// Controller is the gate surface the API drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Authenticate(ctx context.Context, password, deviceLabel string) error
	SendCommand(text string) error
	View() gate.View
}

// SubscribeFunc registers a new event consumer.
type SubscribeFunc func() (<-chan events.Event, func())

const pingInterval = 20 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// Server holds handler dependencies.
type Server struct {
	ctl       Controller
	subscribe SubscribeFunc
	log       *slog.Logger
}

// NewRouter wires all /api/v1/* routes and returns a http.Handler.
func NewRouter(ctl Controller, subscribe SubscribeFunc, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{ctl: ctl, subscribe: subscribe, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.status)
	mux.HandleFunc("POST /api/v1/start", s.start)
	mux.HandleFunc("POST /api/v1/stop", s.stop)
	mux.HandleFunc("POST /api/v1/commands", s.command)
	mux.HandleFunc("POST /api/v1/auth", s.authenticate)
	mux.HandleFunc("GET /api/v1/events", s.eventStream)

	return withLogging(log, mux)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.View())
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Start(r.Context()); err != nil {
		s.log.Warn("[API] start", "error", err)
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Stop(r.Context()); err != nil {
		s.log.Warn("[API] stop", "error", err)
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopped"})
}

type commandRequest struct {
	Command string `json:"command"`
}

func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		http.Error(w, "command must not be empty", http.StatusBadRequest)
		return
	}
	if err := s.ctl.SendCommand(req.Command); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type authRequest struct {
	Password    string `json:"password"`
	DeviceLabel string `json:"device_label"`
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		http.Error(w, "password required", http.StatusBadRequest)
		return
	}
	if err := s.ctl.Authenticate(r.Context(), req.Password, req.DeviceLabel); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
}

// statusFor maps gate errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gate.ErrCommandRejected), errors.Is(err, gate.ErrAuthUnavailable):
		return http.StatusConflict
	case errors.Is(err, gate.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, gate.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// ── WebSocket event stream ────────────────────────────────────────────────

// controlFrame is an inbound WebSocket message.
type controlFrame struct {
	Action      string `json:"action"` // start, stop, command, authenticate
	Command     string `json:"command,omitempty"`
	Password    string `json:"password,omitempty"`
	DeviceLabel string `json:"device_label,omitempty"`
}

// controlResult answers a control frame.
type controlResult struct {
	Type   string `json:"type"` // always "control_result"
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) eventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("[API] ws upgrade", "error", err)
		return
	}
	defer conn.Close()

	ch, unsub := s.subscribe()
	defer unsub()

	// gorilla/websocket allows one writer: the reader hands its replies
	// to this loop.
	replies := make(chan controlResult, 8)
	done := make(chan struct{})
	defer close(done)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.readControl(r.Context(), conn, replies, done)
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				s.log.Debug("[API] ws write", "error", err)
				return
			}
		case res := <-replies:
			if err := conn.WriteJSON(res); err != nil {
				s.log.Debug("[API] ws write", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) readControl(ctx context.Context, conn *websocket.Conn, replies chan<- controlResult, done <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame controlFrame
		res := controlResult{Type: "control_result"}
		if err := json.Unmarshal(data, &frame); err != nil {
			res.Error = "invalid JSON frame"
		} else {
			res.Action = frame.Action
			if err := s.dispatch(ctx, frame); err != nil {
				res.Error = err.Error()
			} else {
				res.OK = true
			}
		}
		select {
		case replies <- res:
		case <-done:
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, f controlFrame) error {
	switch f.Action {
	case "start":
		return s.ctl.Start(ctx)
	case "stop":
		return s.ctl.Stop(ctx)
	case "command":
		if strings.TrimSpace(f.Command) == "" {
			return errors.New("command must not be empty")
		}
		return s.ctl.SendCommand(f.Command)
	case "authenticate":
		if f.Password == "" {
			return errors.New("password required")
		}
		return s.ctl.Authenticate(ctx, f.Password, f.DeviceLabel)
	default:
		return fmt.Errorf("unknown action %q", f.Action)
	}
}

// ── Middleware ────────────────────────────────────────────────────────────

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Debug("[API] request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.code,
			"duration", time.Since(start),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	code int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.code = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade reach the underlying connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("api: response writer does not support hijacking")
	}
	rw.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// ── helpers ───────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
