package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// StreamManager fans record diffs out to SSE subscribers, per vehicle.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      slog.Default(),
	}
}

// Subscribe registers a buffered channel for vehicleID. The returned func
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(vehicleID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[vehicleID]; !ok {
		sm.subscribers[vehicleID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[vehicleID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[vehicleID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(sm.subscribers, vehicleID)
				}
			}
			close(ch)
		})
	}
}

// Subscribers returns how many streams are open for vehicleID.
func (sm *StreamManager) Subscribers(vehicleID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[vehicleID])
}

// Broadcast delivers msg to every subscriber of vehicleID. Slow clients
// drop messages rather than block the run.
func (sm *StreamManager) Broadcast(vehicleID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[vehicleID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "vehicle_id", vehicleID)
		}
	}
}

// SubscribeEvents handles GET /api/events?vehicle_id=...&watch=severity,messages.
// The optional watch list keeps only diffs touching one of the named fields
// ("messages" and "path" included).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	vin := s.vehicle(r.URL.Query().Get("vehicle_id"))

	var watch []string
	if v := r.URL.Query().Get("watch"); v != "" {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				watch = append(watch, f)
			}
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(vin)
	defer cancel()
	s.logger.Info("SSE: subscribed", "vehicle_id", vin)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "vehicle_id", vin)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !touches(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func touches(msg string, watch []string) bool {
	var diff domain.StateDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range watch {
		switch field {
		case "messages":
			if len(diff.Messages) > 0 {
				return true
			}
		case "path":
			if len(diff.Path) > 0 {
				return true
			}
		default:
			if _, ok := diff.Fields[field]; ok {
				return true
			}
		}
	}
	return false
}
