// Package scheduling provides Scheduler adapters: an in-process service
// center and an HTTP client for a remote one.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/google/uuid"
)

// BaseSlots are the daily appointment times of a service center.
var BaseSlots = []string{"09:30 AM", "11:00 AM", "01:00 PM", "02:30 PM", "04:00 PM"}

// ErrBookingNotFound is returned when no booking has the requested id.
var ErrBookingNotFound = errors.New("booking not found")

// BookingConfirmed is the status of a committed booking.
const BookingConfirmed = "CONFIRMED"

// Booking is a committed appointment.
type Booking struct {
	ID        string    `json:"id"`
	VehicleID string    `json:"vin"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ServiceCenter is an in-memory Scheduler. A slot can be booked once per date.
type ServiceCenter struct {
	mu       sync.RWMutex
	slots    []string
	bookings []Booking
	now      func() time.Time
}

type ServiceCenterOption func(*ServiceCenter)

// WithSlots replaces BaseSlots.
func WithSlots(slots ...string) ServiceCenterOption {
	return func(sc *ServiceCenter) { sc.slots = slices.Clone(slots) }
}

// WithClock sets the clock used to stamp bookings.
func WithClock(now func() time.Time) ServiceCenterOption {
	return func(sc *ServiceCenter) { sc.now = now }
}

// NewServiceCenter creates an empty service center.
func NewServiceCenter(opts ...ServiceCenterOption) *ServiceCenter {
	sc := &ServiceCenter{slots: slices.Clone(BaseSlots), now: time.Now}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// ListSlots returns the base slots not yet booked on date, in day order.
func (sc *ServiceCenter) ListSlots(_ context.Context, date string) ([]string, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	free := make([]string, 0, len(sc.slots))
	for _, slot := range sc.slots {
		if !sc.taken(date, slot) {
			free = append(free, slot)
		}
	}
	return free, nil
}

// Book reserves slot on date for vehicleID.
func (sc *ServiceCenter) Book(_ context.Context, date, slot, vehicleID string) (string, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !slices.Contains(sc.slots, slot) {
		return "", fmt.Errorf("%w: %q is not a service slot", domain.ErrBookingUnavailable, slot)
	}
	if sc.taken(date, slot) {
		return "", fmt.Errorf("%w: %s %s is already booked", domain.ErrBookingUnavailable, date, slot)
	}

	id := "SC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	sc.bookings = append(sc.bookings, Booking{
		ID:        id,
		VehicleID: vehicleID,
		Date:      date,
		Time:      slot,
		Status:    BookingConfirmed,
		CreatedAt: sc.now(),
	})
	return id, nil
}

// Bookings returns all bookings in the order they were made.
func (sc *ServiceCenter) Bookings(context.Context) ([]Booking, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return slices.Clone(sc.bookings), nil
}

// Booking finds a booking by id.
func (sc *ServiceCenter) Booking(_ context.Context, id string) (Booking, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	for _, b := range sc.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return Booking{}, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
}

func (sc *ServiceCenter) taken(date, slot string) bool {
	for _, b := range sc.bookings {
		if b.Date == date && b.Time == slot {
			return true
		}
	}
	return false
}
