package domain

// Sender identifies who authored a transcript entry.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

// Message is one transcript entry.
type Message struct {
	Sender  Sender `json:"sender"`
	Content string `json:"content"`
}

// BookingIntent is a concrete slot the user asked for.
type BookingIntent struct {
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // e.g. "09:30 AM"
}

// State is the record threaded through one run.
//
// Nodes never mutate it directly: they return an Update and the engine merges
// it. Messages and Path only ever grow.
type State struct {
	// RunID correlates logs, events and stored records of a single run.
	RunID string `json:"run_id"`

	VehicleID   string           `json:"vehicle_id"`
	CurrentData Sample           `json:"current_data"`
	History     []map[string]any `json:"history,omitempty"`

	AnomalyDetected bool     `json:"anomaly_detected"`
	AnomalyReason   string   `json:"anomaly_reason,omitempty"`
	Severity        Severity `json:"severity,omitempty"`
	RUL             *float64 `json:"rul,omitempty"`

	Diagnosis           string   `json:"diagnosis,omitempty"`
	DiagnosisConfidence *float64 `json:"diagnosis_confidence,omitempty"`

	Messages []Message `json:"messages"`

	ShowBookingUI  bool           `json:"show_booking_ui"`
	BookingIntent  *BookingIntent `json:"booking_intent,omitempty"`
	AvailableSlots []string       `json:"available_slots,omitempty"`
	BookingID      string         `json:"booking_id,omitempty"`

	// Error is set by the engine when a node fails.
	Error string `json:"error,omitempty"`

	// Path lists the nodes executed, in order.
	Path []NodeID `json:"path,omitempty"`
}

// NewState creates the entry record for a vehicle.
func NewState(vehicleID string, data Sample) *State {
	if data == nil {
		data = Sample{}
	}
	return &State{
		VehicleID:   vehicleID,
		CurrentData: data,
		Messages:    []Message{},
	}
}

// Clone returns a copy that shares no mutable memory with s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.CurrentData = s.CurrentData.Clone()
	if s.History != nil {
		c.History = make([]map[string]any, len(s.History))
		for i, h := range s.History {
			entry := make(map[string]any, len(h))
			for k, v := range h {
				entry[k] = v
			}
			c.History[i] = entry
		}
	}
	if s.RUL != nil {
		v := *s.RUL
		c.RUL = &v
	}
	if s.DiagnosisConfidence != nil {
		v := *s.DiagnosisConfidence
		c.DiagnosisConfidence = &v
	}
	if s.BookingIntent != nil {
		bi := *s.BookingIntent
		c.BookingIntent = &bi
	}
	c.Messages = cloneSlice(s.Messages)
	c.AvailableSlots = cloneSlice(s.AvailableSlots)
	c.Path = cloneSlice(s.Path)
	return &c
}

func cloneSlice[T any](src []T) []T {
	if src == nil {
		return nil
	}
	out := make([]T, len(src))
	copy(out, src)
	return out
}

// LastMessage returns the most recent transcript entry not authored by the
// user, if any.
func (s *State) LastMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Sender != SenderUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// PendingUserMessage returns the final transcript entry when it is a user
// turn nobody has answered yet.
func (s *State) PendingUserMessage() (Message, int, bool) {
	if n := len(s.Messages); n > 0 && s.Messages[n-1].Sender == SenderUser {
		return s.Messages[n-1], n - 1, true
	}
	return Message{}, -1, false
}

// LastUserMessage returns the most recent user turn, if any.
func (s *State) LastUserMessage() (Message, int, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Sender == SenderUser {
			return s.Messages[i], i, true
		}
	}
	return Message{}, -1, false
}
