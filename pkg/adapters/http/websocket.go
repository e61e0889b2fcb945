package http

import (
	"context"
	"net/http"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Frame is one websocket message of the telemetry feed.
type Frame struct {
	Type string `json:"type"` // telemetry | alert | chat
	Data any    `json:"data"`
}

// Alert is the payload of an alert frame.
type Alert struct {
	Reason    string          `json:"reason"`
	Severity  domain.Severity `json:"severity"`
	Diagnosis string          `json:"diagnosis"`
	RUL       *float64        `json:"rul,omitempty"`
}

// TelemetryFeed handles GET /ws/telemetry?vehicle_id=...: it replays the
// telemetry source, runs the engine on every sample and pushes the sample,
// any alert and the newest reply to the client.
func (s *Server) TelemetryFeed(w http.ResponseWriter, r *http.Request) {
	if s.telemetry == nil {
		http.Error(w, "telemetry disabled", http.StatusNotImplemented)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	vin := s.vehicle(r.URL.Query().Get("vehicle_id"))
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client only talks to close; a read error ends the feed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Info("telemetry client connected", "vehicle_id", vin)
	for sample := range s.telemetry.Stream(ctx) {
		if err := s.send(conn, Frame{Type: "telemetry", Data: sample}); err != nil {
			break
		}

		prev, next, err := s.runReading(ctx, vin, sample)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("telemetry run failed", "vehicle_id", vin, "err", err)
			}
			break
		}
		if !next.AnomalyDetected {
			continue
		}

		if err := s.send(conn, Frame{Type: "alert", Data: Alert{
			Reason:    next.AnomalyReason,
			Severity:  next.Severity,
			Diagnosis: next.Diagnosis,
			RUL:       next.RUL,
		}}); err != nil {
			break
		}
		if len(next.Messages) > len(prev.Messages) {
			if err := s.send(conn, Frame{Type: "chat", Data: next.Messages[len(next.Messages)-1]}); err != nil {
				break
			}
		}
	}
	s.logger.Info("telemetry client disconnected", "vehicle_id", vin)
}

func (s *Server) send(conn *websocket.Conn, f Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}
