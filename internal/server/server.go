// Package server exposes the configured notification services over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/restnotify/restnotify/internal/metrics"
	"github.com/restnotify/restnotify/internal/notify"
)

// maxRequestBody caps the size of a notification request.
const maxRequestBody = 1 << 20

// Config holds configuration for the trigger server.
type Config struct {
	// Addr is the address to listen on (e.g., ":8080").
	Addr string
	// Metrics mounts /metrics and /status.
	Metrics bool
}

// Server is the HTTP front end of a MultiNotifier.
type Server struct {
	config   Config
	notifier *notify.MultiNotifier
	log      zerolog.Logger
	server   *http.Server
}

// New creates a trigger server for notifier.
func New(config Config, notifier *notify.MultiNotifier, log zerolog.Logger) *Server {
	return &Server{
		config:   config,
		notifier: notifier,
		log:      log.With().Str("component", "server").Logger(),
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /notify", s.handleBroadcast)
	mux.HandleFunc("POST /notify/{name}", s.handleNotify)
	mux.HandleFunc("GET /services", s.handleServices)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.config.Metrics {
		mux.Handle("GET /metrics", metrics.PromHandler())
		mux.Handle("GET /status", metrics.JSONHandler())
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// long enough for a broadcast whose requests all hit the timeout
		WriteTimeout: notify.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.config.Addr).Msg("starting trigger server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down trigger server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// notifyRequest is the JSON body of POST /notify. Target may be a single
// string or a list.
type notifyRequest struct {
	Message string         `json:"message"`
	Title   string         `json:"title"`
	Target  targetList     `json:"target"`
	Data    map[string]any `json:"data"`
}

type targetList []string

func (t *targetList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*t = nil
		} else {
			*t = targetList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("target must be a string or a list of strings")
	}
	*t = many
	return nil
}

type response struct {
	Status   string   `json:"status"`
	Error    string   `json:"error,omitempty"`
	Services []string `json:"services,omitempty"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (notify.Message, bool) {
	var req notifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "invalid request body: " + err.Error()})
		return notify.Message{}, false
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "message is required"})
		return notify.Message{}, false
	}
	return notify.Message{
		Text:   req.Message,
		Title:  req.Title,
		Target: req.Target,
		Data:   req.Data,
	}, true
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decode(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	err := s.notifier.Notify(r.Context(), name, msg)
	switch {
	case errors.Is(err, notify.ErrUnknownService):
		writeJSON(w, http.StatusNotFound, response{Status: "error", Error: err.Error()})
	case err != nil:
		s.log.Error().Err(err).Str("service", name).Msg("notification failed")
		writeJSON(w, http.StatusBadGateway, response{Status: "error", Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, response{Status: "sent", Services: []string{name}})
	}
}

// handleBroadcast sends to every service. With ?async=1 it answers 202 at
// once and the sends finish in the background; MultiNotifier.Wait covers
// them on shutdown.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decode(w, r)
	if !ok {
		return
	}
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		names := s.notifier.Names()
		if len(names) == 0 {
			writeJSON(w, http.StatusServiceUnavailable, response{Status: "error", Error: notify.ErrNoServices.Error()})
			return
		}
		s.notifier.Send(context.WithoutCancel(r.Context()), msg)
		writeJSON(w, http.StatusAccepted, response{Status: "queued", Services: names})
		return
	}
	err := s.notifier.SendAll(r.Context(), msg)
	switch {
	case errors.Is(err, notify.ErrNoServices):
		writeJSON(w, http.StatusServiceUnavailable, response{Status: "error", Error: err.Error()})
	case err != nil:
		s.log.Error().Err(err).Msg("broadcast had failures")
		writeJSON(w, http.StatusBadGateway, response{Status: "error", Error: err.Error(), Services: s.notifier.Names()})
	default:
		writeJSON(w, http.StatusOK, response{Status: "sent", Services: s.notifier.Names()})
	}
}

func (s *Server) handleServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"services": s.notifier.Names()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
