package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
)

// Scheduling commits or offers service appointments.
//
// An explicit booking intent wins over the booking UI flag. With auto-booking
// enabled, an urgent diagnosis with neither books the first slot of the next
// day on the driver's behalf.
type Scheduling struct {
	base
	scheduler ports.Scheduler
	autoBook  bool
}

// NewScheduling creates the scheduling node.
func NewScheduling(s ports.Scheduler, autoBook bool, opts ...Option) *Scheduling {
	n := &Scheduling{base: newBase(), scheduler: s, autoBook: autoBook}
	n.apply(opts)
	return n
}

func (n *Scheduling) ID() domain.NodeID { return domain.NodeScheduling }

func (n *Scheduling) Run(ctx context.Context, s *domain.State) (domain.Update, error) {
	switch {
	case s.BookingIntent != nil:
		return n.book(ctx, s, *s.BookingIntent), nil
	case s.ShowBookingUI:
		return domain.Update{AvailableSlots: domain.Set(n.slots(ctx, s, n.tomorrow()))}, nil
	case n.autoBook && s.Severity.Urgent() && s.BookingID == "":
		return n.autoSchedule(ctx, s), nil
	}
	return domain.Update{}, nil
}

func (n *Scheduling) book(ctx context.Context, s *domain.State, intent domain.BookingIntent) domain.Update {
	id, err := n.commit(ctx, intent.Date, intent.Time, s.VehicleID)
	if err != nil {
		n.logger.Warn("booking failed", "vehicle_id", s.VehicleID, "date", intent.Date, "time", intent.Time, "error", err)
		return domain.Update{
			BookingIntent: domain.Set[*domain.BookingIntent](nil),
			ShowBookingUI: domain.Set(true),
			Messages: []domain.Message{{
				Sender:  domain.SenderSystem,
				Content: fmt.Sprintf("⚠️ We could not confirm your booking for %s at %s. Please pick another slot.", intent.Date, intent.Time),
			}},
		}
	}

	n.logger.Info("booking confirmed", "vehicle_id", s.VehicleID, "booking_id", id)
	return domain.Update{
		BookingIntent: domain.Set[*domain.BookingIntent](nil),
		ShowBookingUI: domain.Set(false),
		BookingID:     domain.Set(id),
		Messages: []domain.Message{{
			Sender:  domain.SenderSystem,
			Content: fmt.Sprintf("✅ Appointment confirmed for %s at %s. Booking ID: %s", intent.Date, intent.Time, id),
		}},
	}
}

func (n *Scheduling) autoSchedule(ctx context.Context, s *domain.State) domain.Update {
	date := n.tomorrow()
	slots := n.slots(ctx, s, date)
	if len(slots) == 0 {
		return domain.Update{Messages: []domain.Message{{
			Sender:  domain.SenderSystem,
			Content: "Automatic scheduling unavailable. Please book a service appointment.",
		}}}
	}

	id, err := n.commit(ctx, date, slots[0], s.VehicleID)
	if err != nil {
		n.logger.Warn("automatic booking failed", "vehicle_id", s.VehicleID, "error", err)
		return domain.Update{Messages: []domain.Message{{
			Sender:  domain.SenderSystem,
			Content: "Automatic scheduling unavailable. Please book a service appointment.",
		}}}
	}
	return domain.Update{
		BookingID: domain.Set(id),
		Messages: []domain.Message{{
			Sender:  domain.SenderSystem,
			Content: fmt.Sprintf("Automatic Appointment Scheduled: %s %s (ID: %s)", date, slots[0], id),
		}},
	}
}

func (n *Scheduling) commit(ctx context.Context, date, slot, vehicleID string) (string, error) {
	if n.scheduler == nil {
		return "", domain.ErrBookingUnavailable
	}
	id, err := n.scheduler.Book(ctx, date, slot, vehicleID)
	if err != nil {
		return "", err
	}
	if id == "" || id == domain.BookingFailed {
		return "", errors.Join(domain.ErrBookingUnavailable, fmt.Errorf("scheduler returned %q", id))
	}
	return id, nil
}

func (n *Scheduling) slots(ctx context.Context, s *domain.State, date string) []string {
	if n.scheduler == nil {
		return []string{}
	}
	slots, err := n.scheduler.ListSlots(ctx, date)
	if err != nil {
		n.logger.Warn("slot listing failed", "vehicle_id", s.VehicleID, "date", date, "error", err)
		return []string{}
	}
	if slots == nil {
		slots = []string{}
	}
	return slots
}

func (n *Scheduling) tomorrow() string {
	return n.now().AddDate(0, 0, 1).Format("2006-01-02")
}
