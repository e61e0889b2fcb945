package scheduling

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/go-resty/resty/v2"
)

// BookRequest is the body of POST /api/book.
type BookRequest struct {
	VehicleID   string `json:"vin"`
	Slot        string `json:"slot"`
	Date        string `json:"date"`
	ServiceType string `json:"service_type,omitempty"`
}

// BookResponse is the reply of POST /api/book.
type BookResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// Client is a Scheduler backed by a remote service center API.
type Client struct {
	http *resty.Client
	// book never retries: a timed out POST may already have committed.
	book *resty.Client
}

// NewClient creates a client for the service center at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")
	book := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: c, book: book}
}

// ListSlots fetches free slots for date.
func (c *Client) ListSlots(ctx context.Context, date string) ([]string, error) {
	var slots []string
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("date", date).
		SetResult(&slots).
		Get("/api/slots")
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list slots: service center returned %s", resp.Status())
	}
	return slots, nil
}

// Book commits a booking. A rejection or an unreachable service center is
// reported as domain.BookingFailed with the cause as error.
func (c *Client) Book(ctx context.Context, date, slot, vehicleID string) (string, error) {
	var out BookResponse
	resp, err := c.book.R().
		SetContext(ctx).
		SetBody(BookRequest{VehicleID: vehicleID, Slot: slot, Date: date, ServiceType: "General Checkup"}).
		SetResult(&out).
		Post("/api/book")
	if err != nil {
		return domain.BookingFailed, fmt.Errorf("%w: %v", domain.ErrBookingUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return domain.BookingFailed, fmt.Errorf("%w: service center returned %s", domain.ErrBookingUnavailable, resp.Status())
	}
	if out.BookingID == "" {
		return domain.BookingFailed, fmt.Errorf("%w: empty booking id", domain.ErrBookingUnavailable)
	}
	return out.BookingID, nil
}

// Bookings fetches all bookings known to the service center.
func (c *Client) Bookings(ctx context.Context) ([]Booking, error) {
	var out []Booking
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/bookings")
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list bookings: service center returned %s", resp.Status())
	}
	return out, nil
}

// Booking fetches one booking. A booking the service center does not know
// is reported as ErrBookingNotFound.
func (c *Client) Booking(ctx context.Context, id string) (Booking, error) {
	var out Booking
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		Get("/api/booking/{id}")
	if err != nil {
		return Booking{}, fmt.Errorf("get booking: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return Booking{}, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	if resp.IsError() {
		return Booking{}, fmt.Errorf("get booking: service center returned %s", resp.Status())
	}
	return out, nil
}
