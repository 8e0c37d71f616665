// Package api provides the HTTP control surface and the websocket event
// stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	"autotyper/internal/control"
	"autotyper/internal/engine"
	"autotyper/internal/protocol"
	"autotyper/internal/settings"
)

// maxBodyBytes caps request bodies; word batches from the page script are
// the largest legitimate payloads.
const maxBodyBytes = 4 << 20

// Server provides the HTTP API for remote control
type Server struct {
	svc    *control.Service
	token  string
	wsMgr  *WSManager

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewServer creates a new API server. An empty token disables auth.
func NewServer(svc *control.Service, token string) *Server {
	s := &Server{
		svc:   svc,
		token: token,
	}
	s.wsMgr = newWSManager(s)
	go s.wsMgr.start()

	svc.Engine.AddEventSink(s.publishEvent)
	svc.OnChange(s.publishStatus)
	return s
}

// Handler builds the full middleware chain around the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/words", s.handleWords)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /api/typed", s.handleTyped)
	mux.HandleFunc("POST /api/speed", s.handleSpeed)
	mux.HandleFunc("POST /api/error-chance", s.handleErrorChance)
	mux.HandleFunc("POST /api/custom-delay", s.handleCustomDelay)
	mux.HandleFunc("POST /api/toggle/{flag}", s.handleToggle)
	mux.HandleFunc("POST /api/force-parse", s.handleForceParse)
	mux.HandleFunc("GET /api/parsing-status", s.handleParsingStatus)
	mux.HandleFunc("DELETE /api/queue", s.handleClearQueue)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Routes the browser page script has always called
	mux.HandleFunc("POST /words", s.handleWords)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("GET /typed", s.handleTyped)
	mux.HandleFunc("POST /set_speed", s.handleSpeed)
	mux.HandleFunc("POST /set_error_chance", s.handleErrorChance)
	mux.HandleFunc("POST /set_custom_delay", s.handleCustomDelay)
	mux.HandleFunc("POST /toggle_continue", s.legacyToggle("continue"))
	mux.HandleFunc("POST /toggle_memory", s.legacyToggle("memory"))
	mux.HandleFunc("POST /toggle_parsing", s.legacyToggle("parsing"))
	mux.HandleFunc("POST /force_parse", s.handleForceParse)
	mux.HandleFunc("GET /parsing_status", s.handleParsingStatus)

	return s.corsMiddleware(s.authMiddleware(s.recoverMiddleware(mux)))
}

// Start serves on addr until Shutdown. It blocks.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("API: failed to listen on %s: %v", addr, err)
		return err
	}
	log.Printf("API: listening on %s", ln.Addr())

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("API: server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and the websocket hub
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsMgr.stop()
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: panic recovered: %v", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the API token if one is configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		if r.URL.Path == "/health" || s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("Authorization") == "Bearer "+s.token {
			next.ServeHTTP(w, r)
			return
		}
		// Browsers cannot set headers on a websocket handshake
		if r.URL.Path == "/ws" && r.URL.Query().Get("token") == s.token {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

// corsMiddleware lets the page script call the API from any origin
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleWords handles POST /api/words {"words": [...]}
func (s *Server) handleWords(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Words *[]string `json:"words"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "expected {\"words\": [...]} with a list of strings")
		return
	}
	if body.Words == nil {
		writeError(w, http.StatusBadRequest, "missing words")
		return
	}

	n := s.svc.EnqueueWords(*body.Words)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"added":     len(*body.Words),
		"queue_len": n,
	})
}

// handleStart handles POST /api/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := s.svc.Start()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "run_id": id})
}

// handleStop handles POST /api/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Stop(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTyped handles GET /api/typed
func (s *Server) handleTyped(w http.ResponseWriter, r *http.Request) {
	words := s.svc.TypedWords()
	if n, err := strconv.Atoi(r.URL.Query().Get("tail")); err == nil && n >= 0 {
		words = s.svc.TypedTail(n)
	}
	if words == nil {
		words = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"typed_words": words})
}

// handleSpeed handles POST /api/speed {"value": "fast"}
func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	name, err := parseName(body.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.svc.SetSpeed(name); err != nil {
		msg := err.Error()
		if hint := suggest(name, s.svc.Settings.Profiles()); hint != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", hint)
		}
		writeError(w, statusFor(err), msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "speed": name})
}

// handleErrorChance handles POST /api/error-chance {"value": 5}
func (s *Server) handleErrorChance(w http.ResponseWriter, r *http.Request) {
	v, ok := readNumber(w, r)
	if !ok {
		return
	}
	if err := s.svc.SetErrorChance(v); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "error_chance": v})
}

// handleCustomDelay handles POST /api/custom-delay {"value": 0.2}
func (s *Server) handleCustomDelay(w http.ResponseWriter, r *http.Request) {
	v, ok := readNumber(w, r)
	if !ok {
		return
	}
	if err := s.svc.SetCustomDelay(v); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "custom_delay": v})
}

// handleToggle handles POST /api/toggle/{flag}
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r.PathValue("flag"))
}

func (s *Server) legacyToggle(flag string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.toggle(w, flag)
	}
}

func (s *Server) toggle(w http.ResponseWriter, flag string) {
	var (
		key string
		v   bool
	)
	switch flag {
	case "continue":
		key, v = "continue_mode", s.svc.ToggleContinue()
	case "errors":
		key, v = "errors_enabled", s.svc.ToggleErrors()
	case "memory":
		key, v = "memory_enabled", s.svc.ToggleMemory()
	case "parsing":
		key, v = "parsing_enabled", s.svc.ToggleParsing()
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown flag %q", flag))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", key: v})
}

// handleForceParse handles POST /api/force-parse
func (s *Server) handleForceParse(w http.ResponseWriter, r *http.Request) {
	s.svc.ForceParse()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "force parse requested; queue and typed words cleared",
	})
}

// handleParsingStatus handles GET /api/parsing-status. Reading it consumes
// the force flag.
func (s *Server) handleParsingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ParsingStatus())
}

// handleClearQueue handles DELETE /api/queue
func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	n := s.svc.ClearQueue()
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "dropped": n})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) publishEvent(ev engine.Event) {
	s.wsMgr.Broadcast(protocol.Message{
		Type: protocol.TypeEvent,
		Payload: protocol.EventPayload{
			Type:     string(ev.Type),
			RunID:    ev.RunID,
			Word:     ev.Word,
			Degraded: ev.Degraded,
			Reason:   ev.Reason,
			Time:     ev.Time,
		},
	})
	if ev.Type == engine.EventRunFinished {
		s.publishStatus()
	}
}

func (s *Server) publishStatus() {
	s.wsMgr.Broadcast(protocol.Message{Type: protocol.TypeStatus, Payload: s.svc.Status()})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrAlreadyRunning), errors.Is(err, engine.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, settings.ErrUnknownProfile), errors.Is(err, settings.ErrOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// suggest returns the closest profile name, or "" if nothing matches
func suggest(name string, profiles []string) string {
	matches := fuzzy.Find(name, profiles)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// readNumber decodes {"value": n} where n is a JSON number or a numeric
// string, writing a 400 on failure
func readNumber(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return 0, false
	}
	v, err := parseNumber(body.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return v, true
}

func parseNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing value")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, errors.New("value must be a number")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not a number", str)
	}
	return f, nil
}

func parseName(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("missing value")
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}
	// "0.01" is a profile name that clients sometimes send as a number
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return string(raw), nil
	}
	return "", errors.New("value must be a profile name")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}
