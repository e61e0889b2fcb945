package scheduling_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/adapters/scheduling"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.Scheduler = (*scheduling.ServiceCenter)(nil)
	_ ports.Scheduler = (*scheduling.Client)(nil)
)

func TestServiceCenter_BookRemovesSlot(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 12, 6, 14, 5, 0, 0, time.UTC)
	sc := scheduling.NewServiceCenter(scheduling.WithClock(func() time.Time { return now }))

	slots, err := sc.ListSlots(ctx, "2025-12-07")
	require.NoError(t, err)
	assert.Equal(t, scheduling.BaseSlots, slots)

	id, err := sc.Book(ctx, "2025-12-07", "11:00 AM", "EV-1")
	require.NoError(t, err)
	assert.Regexp(t, `^SC-[0-9A-F]{8}$`, id)

	slots, err = sc.ListSlots(ctx, "2025-12-07")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:30 AM", "01:00 PM", "02:30 PM", "04:00 PM"}, slots)

	other, err := sc.ListSlots(ctx, "2025-12-08")
	require.NoError(t, err)
	assert.Len(t, other, 5, "other dates are unaffected")

	b, err := sc.Booking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, scheduling.Booking{
		ID: id, VehicleID: "EV-1", Date: "2025-12-07", Time: "11:00 AM",
		Status: scheduling.BookingConfirmed, CreatedAt: now,
	}, b)
}

func TestServiceCenter_Rejections(t *testing.T) {
	ctx := context.Background()
	sc := scheduling.NewServiceCenter(scheduling.WithSlots("10:00 AM"))

	_, err := sc.Book(ctx, "2025-12-07", "09:30 AM", "EV-1")
	assert.ErrorIs(t, err, domain.ErrBookingUnavailable, "not a slot of this center")

	_, err = sc.Book(ctx, "2025-12-07", "10:00 AM", "EV-1")
	require.NoError(t, err)

	_, err = sc.Book(ctx, "2025-12-07", "10:00 AM", "EV-2")
	assert.ErrorIs(t, err, domain.ErrBookingUnavailable, "double booking")

	bookings, err := sc.Bookings(ctx)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	_, err = sc.Booking(ctx, "SC-MISSING")
	assert.ErrorIs(t, err, scheduling.ErrBookingNotFound)
}

func TestServiceCenter_ConcurrentBooking(t *testing.T) {
	ctx := context.Background()
	sc := scheduling.NewServiceCenter()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sc.Book(ctx, "2025-12-07", "09:30 AM", "EV"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

// remoteCenter serves the service center API over an in-process ServiceCenter.
func remoteCenter(t *testing.T, sc *scheduling.ServiceCenter) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/slots", func(w http.ResponseWriter, r *http.Request) {
		slots, _ := sc.ListSlots(r.Context(), r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(slots)
	})
	mux.HandleFunc("POST /api/book", func(w http.ResponseWriter, r *http.Request) {
		var req scheduling.BookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		id, err := sc.Book(r.Context(), req.Date, req.Slot, req.VehicleID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(scheduling.BookResponse{BookingID: id, Status: "Confirmed"})
	})
	mux.HandleFunc("GET /api/booking/{id}", func(w http.ResponseWriter, r *http.Request) {
		b, err := sc.Booking(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(b)
	})
	mux.HandleFunc("GET /api/bookings", func(w http.ResponseWriter, r *http.Request) {
		bookings, _ := sc.Bookings(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(bookings)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := remoteCenter(t, scheduling.NewServiceCenter())
	client := scheduling.NewClient(srv.URL, time.Second)

	id, err := client.Book(ctx, "2025-12-07", "09:30 AM", "EV-1")
	require.NoError(t, err)
	assert.Regexp(t, `^SC-`, id)

	slots, err := client.ListSlots(ctx, "2025-12-07")
	require.NoError(t, err)
	assert.NotContains(t, slots, "09:30 AM")
	assert.Len(t, slots, 4)

	bookings, err := client.Bookings(ctx)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "EV-1", bookings[0].VehicleID)

	b, err := client.Booking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "09:30 AM", b.Time)

	_, err = client.Booking(ctx, "SC-MISSING")
	assert.ErrorIs(t, err, scheduling.ErrBookingNotFound)
}

func TestClient_BookIsNotRetried(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client := scheduling.NewClient(srv.URL, 50*time.Millisecond)
	id, err := client.Book(context.Background(), "2025-12-07", "09:30 AM", "EV-1")
	assert.ErrorIs(t, err, domain.ErrBookingUnavailable)
	assert.Equal(t, domain.BookingFailed, id)
	assert.Equal(t, int32(1), posts.Load())
}

func TestClient_BookRejected(t *testing.T) {
	ctx := context.Background()
	srv := remoteCenter(t, scheduling.NewServiceCenter())
	client := scheduling.NewClient(srv.URL, time.Second)

	_, err := client.Book(ctx, "2025-12-07", "09:30 AM", "EV-1")
	require.NoError(t, err)

	id, err := client.Book(ctx, "2025-12-07", "09:30 AM", "EV-2")
	assert.ErrorIs(t, err, domain.ErrBookingUnavailable)
	assert.Equal(t, domain.BookingFailed, id)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := scheduling.NewClient(url, 200*time.Millisecond)

	id, err := client.Book(context.Background(), "2025-12-07", "09:30 AM", "EV-1")
	assert.ErrorIs(t, err, domain.ErrBookingUnavailable)
	assert.Equal(t, domain.BookingFailed, id)

	_, err = client.ListSlots(context.Background(), "2025-12-07")
	assert.Error(t, err)
}
