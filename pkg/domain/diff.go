package domain

import (
	"reflect"
)

// StateDiff represents the changes between two records of the same vehicle.
// It is serialized to JSON for partial updates on streaming clients.
type StateDiff struct {
	RunID     string `json:"run_id"`
	VehicleID string `json:"vehicle_id"`

	// Fields contains only changed, added or cleared scalar fields.
	// Cleared fields are present with a nil value.
	Fields map[string]any `json:"fields,omitempty"`

	// Messages contains transcript entries appended since the old record.
	Messages []Message `json:"messages,omitempty"`

	// Path contains nodes appended since the old record.
	Path []NodeID `json:"path,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, the diff describes the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		RunID:     newState.RunID,
		VehicleID: newState.VehicleID,
		Fields:    diffFields(oldState, newState),
	}

	if oldState == nil {
		diff.Messages = newState.Messages
		diff.Path = newState.Path
	} else {
		diff.Messages = appended(oldState.Messages, newState.Messages)
		// A new run restarts the path.
		if oldState.RunID != newState.RunID {
			diff.Path = newState.Path
		} else {
			diff.Path = appended(oldState.Path, newState.Path)
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func fieldView(s *State) map[string]any {
	view := map[string]any{
		"anomaly_detected": s.AnomalyDetected,
		"show_booking_ui":  s.ShowBookingUI,
	}
	put := func(k string, v any, present bool) {
		if present {
			view[k] = v
		}
	}
	put("anomaly_reason", s.AnomalyReason, s.AnomalyReason != "")
	put("severity", s.Severity, s.Severity != "")
	put("diagnosis", s.Diagnosis, s.Diagnosis != "")
	put("booking_id", s.BookingID, s.BookingID != "")
	put("error", s.Error, s.Error != "")
	put("available_slots", s.AvailableSlots, len(s.AvailableSlots) > 0)
	if s.RUL != nil {
		view["rul"] = *s.RUL
	}
	if s.DiagnosisConfidence != nil {
		view["diagnosis_confidence"] = *s.DiagnosisConfidence
	}
	if s.BookingIntent != nil {
		view["booking_intent"] = *s.BookingIntent
	}
	return view
}

func diffFields(old, new *State) map[string]any {
	delta := make(map[string]any)
	newView := fieldView(new)

	if old == nil {
		for k, v := range newView {
			delta[k] = v
		}
		return delta
	}

	oldView := fieldView(old)
	for k, newVal := range newView {
		oldVal, exists := oldView[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range oldView {
		if _, exists := newView[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// appended assumes append-only growth and returns the new tail.
func appended[T any](old, new []T) []T {
	if len(new) > len(old) {
		return new[len(old):]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return len(d.Fields) == 0 && len(d.Messages) == 0 && len(d.Path) == 0
}
