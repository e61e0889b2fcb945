package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *State {
	rul := 70.0
	s := NewState("EV-42", Sample{SensorBatteryTemperature: 30, SensorVibrationLevel: 6})
	s.RunID = "run-1"
	s.AnomalyDetected = true
	s.AnomalyReason = "High Vibration Detected (6)"
	s.Severity = SeverityMedium
	s.RUL = &rul
	s.History = []map[string]any{{"battery_temperature": 29.5}}
	s.Messages = []Message{{Sender: SenderUser, Content: "hello"}}
	s.AvailableSlots = []string{"09:30 AM"}
	return s
}

func TestMerge_EmptyUpdateIsIdentity(t *testing.T) {
	s := sampleState()
	got := Merge(s, Update{})
	assert.Equal(t, s, got)
	assert.NotSame(t, s, got)
}

func TestMerge_OverwritesOnlyWrittenFields(t *testing.T) {
	s := sampleState()
	got := Merge(s, Update{
		Diagnosis:           Set("Drivetrain Misalignment or uneven tire wear detected."),
		DiagnosisConfidence: Set(0.78),
		Severity:            Set(SeverityMedium),
	})

	assert.Equal(t, "Drivetrain Misalignment or uneven tire wear detected.", got.Diagnosis)
	require.NotNil(t, got.DiagnosisConfidence)
	assert.Equal(t, 0.78, *got.DiagnosisConfidence)
	assert.Equal(t, s.AnomalyReason, got.AnomalyReason)
	assert.Equal(t, *s.RUL, *got.RUL)
	assert.Equal(t, s.Messages, got.Messages)

	// The input record is untouched.
	assert.Empty(t, s.Diagnosis)
	assert.Nil(t, s.DiagnosisConfidence)
}

func TestMerge_MessagesOnlyGrow(t *testing.T) {
	s := sampleState()
	u := Update{Messages: []Message{{Sender: SenderAI, Content: "a"}, {Sender: SenderSystem, Content: "b"}}}

	got := Merge(s, u)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, s.Messages[0], got.Messages[0])
	assert.Equal(t, "b", got.Messages[2].Content)
	assert.Len(t, s.Messages, 1)

	again := Merge(got, Update{})
	assert.Equal(t, got.Messages, again.Messages)
}

func TestMerge_ClearsBookingIntent(t *testing.T) {
	s := sampleState()
	s.BookingIntent = &BookingIntent{Date: "2025-12-07", Time: "09:30 AM"}

	got := Merge(s, Update{BookingIntent: Set[*BookingIntent](nil), BookingID: Set("SC-1")})
	assert.Nil(t, got.BookingIntent)
	assert.Equal(t, "SC-1", got.BookingID)
	assert.NotNil(t, s.BookingIntent)
}

func TestMerge_DoesNotAliasSlices(t *testing.T) {
	slots := []string{"09:30 AM", "11:00 AM"}
	got := Merge(sampleState(), Update{AvailableSlots: Set(slots)})
	slots[0] = "mutated"
	assert.Equal(t, "09:30 AM", got.AvailableSlots[0])
}

func TestUpdate_Fields(t *testing.T) {
	assert.Empty(t, Update{}.Fields())
	assert.True(t, Update{}.IsEmpty())

	u := Update{
		AnomalyDetected: Set(false),
		Severity:        Set(SeverityLow),
		RUL:             Set(100.0),
		Messages:        []Message{{Sender: SenderAI, Content: "x"}},
	}
	assert.Equal(t, []string{"anomaly_detected", "severity", "rul", "messages"}, u.Fields())
}

func TestParseNodeID(t *testing.T) {
	id, err := ParseNodeID("  Customer_Engagement ")
	require.NoError(t, err)
	assert.Equal(t, NodeCustomerEngagement, id)

	_, err = ParseNodeID("billing")
	assert.ErrorIs(t, err, ErrUnknownNode)

	assert.True(t, NodeStart.IsMarker())
	assert.False(t, NodeRCA.IsMarker())
	assert.Len(t, Nodes(), 7)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"low", SeverityLow},
		{"MEDIUM", SeverityMedium},
		{"High", SeverityHigh},
		{"critical", SeverityCritical},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseSeverity("severe")
	assert.ErrorIs(t, err, ErrInvalidSeverity)

	assert.True(t, SeverityCritical.Urgent())
	assert.True(t, SeverityHigh.Urgent())
	assert.False(t, SeverityMedium.Urgent())
	assert.False(t, Severity("").Urgent())
}

func TestState_LastMessages(t *testing.T) {
	s := NewState("EV-1", nil)
	_, ok := s.LastMessage()
	assert.False(t, ok)

	s.Messages = []Message{
		{Sender: SenderAI, Content: "Shall I book an appointment?"},
		{Sender: SenderUser, Content: "yes"},
	}
	m, ok := s.LastMessage()
	require.True(t, ok)
	assert.Equal(t, SenderAI, m.Sender)

	u, idx, ok := s.LastUserMessage()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "yes", u.Content)

	u, idx, ok = s.PendingUserMessage()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "yes", u.Content)

	// Once answered, the user turn is no longer pending.
	s.Messages = append(s.Messages, Message{Sender: SenderSystem, Content: "Booked."})
	_, _, ok = s.PendingUserMessage()
	assert.False(t, ok)
	_, idx, ok = s.LastUserMessage()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestSample_MissingKeysReadAsZero(t *testing.T) {
	var s Sample
	assert.Equal(t, 0.0, s.Get(SensorMotorRPM))
	assert.Equal(t, 0.0, Sample{"x": 1}.Get(SensorBatteryTemperature))
}

func TestLifecycleHooks_Combine(t *testing.T) {
	var calls []string
	a := LifecycleHooks{OnRunEnd: func(_ context.Context, _ *RunEvent) { calls = append(calls, "a") }}
	b := LifecycleHooks{
		OnRunEnd:    func(_ context.Context, _ *RunEvent) { calls = append(calls, "b") },
		OnNodeEnter: func(_ context.Context, _ *NodeEvent) { calls = append(calls, "enter") },
	}

	h := a.Combine(b)
	h.OnRunEnd(context.Background(), &RunEvent{})
	h.OnNodeEnter(context.Background(), &NodeEvent{})
	assert.Nil(t, h.OnTransition)
	assert.Equal(t, []string{"a", "b", "enter"}, calls)
}
