package agents

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
)

// EngagementMode selects how the customer is addressed.
type EngagementMode string

const (
	// ModeDeterministic emits a templated alert per severity.
	ModeDeterministic EngagementMode = "deterministic"
	// ModeConversational talks to the driver through a TextGenerator.
	ModeConversational EngagementMode = "conversational"
)

const (
	// BookingMarker is the token a generator emits to request the booking UI.
	BookingMarker = "[SHOW_BOOKING_UI]"

	// BookingProcessingMessage acknowledges an explicit booking request.
	BookingProcessingMessage = "Processing your booking request..."

	// transcriptWindow is how many recent turns go into the prompt.
	transcriptWindow = 5
)

var (
	bookingPhrase = regexp.MustCompile(`(?i)book\s+the\s+slot\s+for\s+(\d{1,2}/\d{1,2}/\d{4})\s+at\s+(\d{1,2}):(\d{2})\s*([ap]m)`)
	affirmative   = regexp.MustCompile(`(?i)\b(yes|sure|ok|okay|book)\b`)
	bookingTopic  = regexp.MustCompile(`(?i)book|appointment`)
)

// CustomerEngagement produces the customer-facing message for a diagnosis.
type CustomerEngagement struct {
	base
	mode      EngagementMode
	generator ports.TextGenerator
}

// NewCustomerEngagement creates the engagement node. A nil generator in
// conversational mode always takes the offline fallback.
func NewCustomerEngagement(mode EngagementMode, gen ports.TextGenerator, opts ...Option) *CustomerEngagement {
	if mode == "" {
		mode = ModeDeterministic
	}
	n := &CustomerEngagement{base: newBase(), mode: mode, generator: gen}
	n.apply(opts)
	return n
}

func (n *CustomerEngagement) ID() domain.NodeID { return domain.NodeCustomerEngagement }

// Mode returns the configured mode.
func (n *CustomerEngagement) Mode() EngagementMode { return n.mode }

func (n *CustomerEngagement) Run(ctx context.Context, s *domain.State) (domain.Update, error) {
	if n.mode == ModeConversational {
		return n.converse(ctx, s), nil
	}
	return n.alert(s), nil
}

func (n *CustomerEngagement) alert(s *domain.State) domain.Update {
	stamp := n.now().Format("15:04")
	d := s.Diagnosis

	var text string
	switch s.Severity {
	case domain.SeverityCritical:
		text = fmt.Sprintf("🛑 WARNING: %s. Please stop vehicle safely and contact support.", d)
	case domain.SeverityHigh:
		text = fmt.Sprintf("⚠️ ALERT: %s. Service appointment recommended.", d)
	case domain.SeverityMedium:
		text = fmt.Sprintf("ℹ️ NOTICE: %s. We will monitor this trend.", d)
	default:
		text = "System Update: " + d
	}

	return domain.Update{
		Messages: []domain.Message{{Sender: domain.SenderAI, Content: fmt.Sprintf("[%s] %s", stamp, text)}},
	}
}

func (n *CustomerEngagement) converse(ctx context.Context, s *domain.State) domain.Update {
	userTurn, userIdx, hasUser := s.PendingUserMessage()

	if hasUser {
		if intent, ok := ParseBookingRequest(userTurn.Content); ok {
			n.logger.Info("booking request detected", "vehicle_id", s.VehicleID, "date", intent.Date, "time", intent.Time)
			return domain.Update{
				BookingIntent: domain.Set(&intent),
				Messages:      []domain.Message{{Sender: domain.SenderAI, Content: BookingProcessingMessage}},
			}
		}
	}

	reply, err := n.generate(ctx, s)
	showUI := false
	if err != nil {
		n.logger.Warn("text generator unavailable, using fallback", "vehicle_id", s.VehicleID, "error", err)
		reply = fmt.Sprintf("⚠️ Alert: %s. Please schedule service. (AI Offline)", s.Diagnosis)
	} else if strings.Contains(reply, BookingMarker) {
		showUI = true
		reply = strings.TrimSpace(strings.ReplaceAll(reply, BookingMarker, ""))
	}

	if !showUI && hasUser && affirmative.MatchString(userTurn.Content) && priorAssistantMentionsBooking(s.Messages, userIdx) {
		showUI = true
	}

	u := domain.Update{Messages: []domain.Message{{Sender: domain.SenderAI, Content: reply}}}
	if showUI {
		u.ShowBookingUI = domain.Set(true)
	}
	return u
}

func (n *CustomerEngagement) generate(ctx context.Context, s *domain.State) (string, error) {
	if n.generator == nil {
		return "", domain.ErrGeneratorUnavailable
	}
	reply, err := n.generator.Generate(ctx, buildPrompt(s))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(strings.ReplaceAll(reply, BookingMarker, "")) == "" {
		return "", errors.New("empty reply")
	}
	return reply, nil
}

func buildPrompt(s *domain.State) string {
	var b strings.Builder
	b.WriteString("You are the service assistant of an electric vehicle fleet. ")
	b.WriteString("Answer the driver briefly and calmly.\n")
	fmt.Fprintf(&b, "Vehicle: %s\n", s.VehicleID)
	fmt.Fprintf(&b, "Diagnosis: %s\n", s.Diagnosis)
	fmt.Fprintf(&b, "Severity: %s\n", s.Severity)
	fmt.Fprintf(&b, "If the driver should book a service appointment, end your reply with %s.\n", BookingMarker)
	b.WriteString("Conversation:\n")

	turns := s.Messages
	if len(turns) > transcriptWindow {
		turns = turns[len(turns)-transcriptWindow:]
	}
	for _, m := range turns {
		fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Content)
	}
	return b.String()
}

func priorAssistantMentionsBooking(msgs []domain.Message, before int) bool {
	for i := before - 1; i >= 0; i-- {
		if msgs[i].Sender == domain.SenderAI {
			return bookingTopic.MatchString(msgs[i].Content)
		}
	}
	return false
}

// ParseBookingRequest extracts a slot from "Book the slot for 12/7/2025 at
// 9:30 AM". The date is normalized to YYYY-MM-DD and the time to "09:30 AM".
func ParseBookingRequest(text string) (domain.BookingIntent, bool) {
	m := bookingPhrase.FindStringSubmatch(text)
	if m == nil {
		return domain.BookingIntent{}, false
	}
	date, err := time.Parse("1/2/2006", m[1])
	if err != nil {
		return domain.BookingIntent{}, false
	}
	clock, err := time.Parse("3:04 PM", fmt.Sprintf("%s:%s %s", m[2], m[3], strings.ToUpper(m[4])))
	if err != nil {
		return domain.BookingIntent{}, false
	}
	return domain.BookingIntent{
		Date: date.Format("2006-01-02"),
		Time: clock.Format("03:04 PM"),
	}, true
}
