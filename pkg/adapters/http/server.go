package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// Server exposes a tree over HTTP.
type Server struct {
	Engine  ports.TreeEngine
	Streams *StreamManager
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger used for request failures and stream diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the tree. Events of the tree are fanned out
// to every /events subscriber until ctx is done.
func NewHandler(ctx context.Context, engine ports.TreeEngine, opts ...Option) http.Handler {
	s := &Server{Engine: engine, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	s.Streams.Attach(ctx, engine)

	r := chi.NewRouter()
	r.Use(enableCORS)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/nodes", s.ListNodes)
	r.Get("/nodes/{value}", s.GetNode)
	r.Patch("/nodes/{value}", s.PatchNode)
	r.Get("/value", s.GetValue)
	r.Put("/value", s.PutValue)
	r.Get("/events", s.SubscribeEvents)
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// writeError maps engine errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNodeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrLimitExceeded):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNotExpandable):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "canopy-http",
		"version": strings.TrimSpace(canopy.Version),
	})
}

// ListNodes handles GET /nodes. With ?visible=true only nodes under expanded ancestors are listed.
func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes := s.Engine.Nodes()
	if r.URL.Query().Get("visible") == "true" {
		nodes = s.Engine.Visible()
	}
	if nodes == nil {
		nodes = []domain.NodeView{}
	}
	s.writeJSON(w, http.StatusOK, nodes)
}

// GetNode handles GET /nodes/{value}.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.Engine.Get(domain.Value(chi.URLParam(r, "value")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

// PatchNode handles PATCH /nodes/{value} with an ItemPatch body.
func (s *Server) PatchNode(w http.ResponseWriter, r *http.Request) {
	var patch domain.ItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	value := domain.Value(chi.URLParam(r, "value"))
	if err := s.Engine.SetItem(value, patch); err != nil {
		s.writeError(w, err)
		return
	}
	node, err := s.Engine.Get(value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

// GetValue handles GET /value: the controlled checked, expanded and activated lists.
func (s *Server) GetValue(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Engine.Snapshot())
}

// PutValue handles PUT /value: a silent sync of the controlled lists.
func (s *Server) PutValue(w http.ResponseWriter, r *http.Request) {
	var snap domain.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := s.Engine.Restore(&snap); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Engine.Snapshot())
}

// WireEvent is the JSON form of an event on the /events stream.
type WireEvent struct {
	Type      domain.EventType `json:"type"`
	Values    []domain.Value   `json:"values"`
	Node      domain.Value     `json:"node,omitempty"`
	Trigger   domain.Trigger   `json:"trigger"`
	ElapsedMS int64            `json:"elapsed_ms,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

func toWire(e *domain.Event) WireEvent {
	w := WireEvent{
		Type:      e.Type,
		Values:    e.Values,
		Node:      e.Node.Value,
		Trigger:   e.Trigger,
		ElapsedMS: e.Elapsed.Milliseconds(),
		Timestamp: e.Timestamp,
	}
	if w.Values == nil {
		w.Values = []domain.Value{}
	}
	if e.Err != nil {
		w.Error = e.Err.Error()
	}
	return w
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan<- WireEvent]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty stream manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan<- WireEvent]struct{}),
		logger:      logger,
	}
}

// Attach broadcasts every event of engine until ctx is done.
func (sm *StreamManager) Attach(ctx context.Context, engine ports.TreeEngine) {
	handler := func(_ context.Context, e *domain.Event) { sm.Broadcast(toWire(e)) }
	var unsubs []func()
	for _, t := range []domain.EventType{
		domain.EventChange, domain.EventExpand, domain.EventActive, domain.EventLoad, domain.EventLoadError,
	} {
		unsubs = append(unsubs, engine.On(t, handler))
	}
	go func() {
		<-ctx.Done()
		for _, u := range unsubs {
			u()
		}
	}()
}

// Subscribe registers a new listener. The returned function unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe() (<-chan WireEvent, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan WireEvent, 16)
	sm.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subscribers, ch)
			close(ch)
		})
	}
}

// Len returns the number of active subscribers.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Broadcast sends ev to every subscriber without blocking.
func (sm *StreamManager) Broadcast(ev WireEvent) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "type", ev.Type)
		}
	}
}

// SubscribeEvents handles the GET /events request (SSE).
// ?types=change,expand restricts the stream to the listed event types.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	filter := make(map[domain.EventType]bool)
	if types := r.URL.Query().Get("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			filter[domain.EventType(strings.TrimSpace(t))] = true
		}
	}

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if len(filter) > 0 && !filter[ev.Type] {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
