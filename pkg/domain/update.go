package domain

// Field is an optional value in an Update. The zero Field is "not written".
type Field[T any] struct {
	value T
	set   bool
}

// Set marks a field as written with v.
func Set[T any](v T) Field[T] {
	return Field[T]{value: v, set: true}
}

// Get returns the value and whether it was written.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.set
}

// IsSet reports whether the field was written.
func (f Field[T]) IsSet() bool { return f.set }

func (f Field[T]) apply(dst *T) {
	if f.set {
		*dst = f.value
	}
}

// Update is the partial record a node returns. Only written fields are merged;
// messages are appended to the transcript.
type Update struct {
	AnomalyDetected Field[bool]
	AnomalyReason   Field[string]
	Severity        Field[Severity]
	RUL             Field[float64]

	Diagnosis           Field[string]
	DiagnosisConfidence Field[float64]

	ShowBookingUI  Field[bool]
	BookingIntent  Field[*BookingIntent]
	AvailableSlots Field[[]string]
	BookingID      Field[string]

	Error Field[string]

	Messages []Message
}

// Fields lists the record fields the update writes, in declaration order.
func (u Update) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(u.AnomalyDetected.IsSet(), "anomaly_detected")
	add(u.AnomalyReason.IsSet(), "anomaly_reason")
	add(u.Severity.IsSet(), "severity")
	add(u.RUL.IsSet(), "rul")
	add(u.Diagnosis.IsSet(), "diagnosis")
	add(u.DiagnosisConfidence.IsSet(), "diagnosis_confidence")
	add(u.ShowBookingUI.IsSet(), "show_booking_ui")
	add(u.BookingIntent.IsSet(), "booking_intent")
	add(u.AvailableSlots.IsSet(), "available_slots")
	add(u.BookingID.IsSet(), "booking_id")
	add(u.Error.IsSet(), "error")
	add(len(u.Messages) > 0, "messages")
	return out
}

// IsEmpty reports whether the update writes nothing.
func (u Update) IsEmpty() bool {
	return len(u.Fields()) == 0
}

// Merge returns a new record with u applied to s. s is not modified.
func Merge(s *State, u Update) *State {
	out := s.Clone()
	if out == nil {
		out = &State{Messages: []Message{}}
	}

	u.AnomalyDetected.apply(&out.AnomalyDetected)
	u.AnomalyReason.apply(&out.AnomalyReason)
	u.Severity.apply(&out.Severity)
	if v, ok := u.RUL.Get(); ok {
		out.RUL = &v
	}
	u.Diagnosis.apply(&out.Diagnosis)
	if v, ok := u.DiagnosisConfidence.Get(); ok {
		out.DiagnosisConfidence = &v
	}
	u.ShowBookingUI.apply(&out.ShowBookingUI)
	if v, ok := u.BookingIntent.Get(); ok {
		if v != nil {
			bi := *v
			v = &bi
		}
		out.BookingIntent = v
	}
	if v, ok := u.AvailableSlots.Get(); ok {
		out.AvailableSlots = cloneSlice(v)
	}
	u.BookingID.apply(&out.BookingID)
	u.Error.apply(&out.Error)

	if len(u.Messages) > 0 {
		out.Messages = append(out.Messages, u.Messages...)
	}
	return out
}
