// Package http exposes the diagnostics engine over a chi REST API, a
// server-sent event stream of record diffs and a websocket telemetry feed.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/autonoma-fleet/autonoma"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/scheduling"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/telemetry"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/policy"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
	"github.com/autonoma-fleet/autonoma/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Engine is the part of the autonoma facade the API drives.
type Engine interface {
	Run(ctx context.Context, initial *domain.State) (*domain.State, error)
	Chat(ctx context.Context, prev *domain.State, message string) (*domain.State, error)
	Policy() *policy.Policy
}

// BookingService is a Scheduler that can also list what it booked.
type BookingService interface {
	ports.Scheduler
	Bookings(ctx context.Context) ([]scheduling.Booking, error)
	Booking(ctx context.Context, id string) (scheduling.Booking, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	engine    Engine
	sessions  *session.Manager
	scheduler BookingService
	insights  ports.InsightStore
	telemetry ports.TelemetrySource
	metrics   http.Handler
	streams   *StreamManager
	logger    *slog.Logger
	vehicleID string
	now       func() time.Time
}

// Option configures the Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBookingService enables the slots and bookings endpoints.
func WithBookingService(b BookingService) Option {
	return func(s *Server) { s.scheduler = b }
}

// WithInsights enables GET /api/insights.
func WithInsights(store ports.InsightStore) Option {
	return func(s *Server) { s.insights = store }
}

// WithTelemetry enables the websocket telemetry feed.
func WithTelemetry(src ports.TelemetrySource) Option {
	return func(s *Server) { s.telemetry = src }
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithDefaultVehicle is used when a request names no vehicle.
func WithDefaultVehicle(id string) Option {
	return func(s *Server) { s.vehicleID = id }
}

// WithClock sets the clock used for the default slot date.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, sessions *session.Manager, opts ...Option) http.Handler {
	s := NewServer(engine, sessions, opts...)
	return s.Routes()
}

// NewServer creates a Server without mounting routes.
func NewServer(engine Engine, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		sessions:  sessions,
		streams:   NewStreamManager(),
		logger:    slog.Default(),
		vehicleID: "EV-8823-X",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams.logger = s.logger
	return s
}

// Streams returns the SSE fan-out, for publishing diffs from other sources.
func (s *Server) Streams() *StreamManager { return s.streams }

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.Chat)
		r.Post("/diagnose", s.Diagnose)
		r.Get("/runs", s.ListRuns)
		r.Get("/runs/{vehicleID}", s.GetRun)
		r.Get("/slots", s.ListSlots)
		r.Post("/book", s.Book)
		r.Get("/bookings", s.ListBookings)
		r.Get("/booking/{bookingID}", s.GetBooking)
		r.Get("/insights", s.ListInsights)
		r.Get("/events", s.SubscribeEvents)
		r.Get("/policy", s.GetPolicy)
		r.Get("/health", s.GetHealth)
		r.Get("/info", s.GetInfo)
	})
	r.Get("/ws/telemetry", s.TelemetryFeed)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string           `json:"message"`
	VIN     string           `json:"vin"`
	History []domain.Message `json:"history,omitempty"`
}

// ChatResponse is the reply of POST /api/chat.
type ChatResponse struct {
	Response       string   `json:"response"`
	ShowBookingUI  bool     `json:"show_booking_ui"`
	AvailableSlots []string `json:"available_slots"`
	BookingID      string   `json:"booking_id,omitempty"`
}

// Chat handles POST /api/chat. A failed turn still answers 200 with the
// interference message so the client can keep the conversation open.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decode(w, r, &req); err != nil {
		s.badRequest(w, "Chat", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.badRequest(w, "Chat", errors.New("message is required"))
		return
	}
	vin := s.vehicle(req.VIN)

	var prev *domain.State
	next, err := s.sessions.Turn(r.Context(), vin, func(ctx context.Context, p *domain.State) (*domain.State, error) {
		if len(p.Messages) == 0 && len(req.History) > 0 {
			p.Messages = append(p.Messages, req.History...)
		}
		prev = p
		return s.engine.Chat(ctx, p, req.Message)
	})
	if err != nil || next == nil {
		s.logger.Error("chat turn failed", "vehicle_id", vin, "err", err)
		writeJSON(w, http.StatusOK, ChatResponse{Response: autonoma.InterferenceMessage, AvailableSlots: []string{}})
		return
	}
	s.publish(prev, next)

	resp := ChatResponse{
		ShowBookingUI:  next.ShowBookingUI,
		AvailableSlots: next.AvailableSlots,
		BookingID:      next.BookingID,
	}
	if resp.AvailableSlots == nil {
		resp.AvailableSlots = []string{}
	}
	if msgs := next.Messages; len(msgs) > 0 && msgs[len(msgs)-1].Sender != domain.SenderUser {
		resp.Response = msgs[len(msgs)-1].Content
	}
	writeJSON(w, http.StatusOK, resp)
}

// DiagnoseRequest is the body of POST /api/diagnose.
type DiagnoseRequest struct {
	VehicleID   string         `json:"vehicle_id"`
	CurrentData map[string]any `json:"current_data"`
}

// Diagnose handles POST /api/diagnose: one run on a reading, continuing the
// stored record of the vehicle.
func (s *Server) Diagnose(w http.ResponseWriter, r *http.Request) {
	var req DiagnoseRequest
	if err := decode(w, r, &req); err != nil {
		s.badRequest(w, "Diagnose", err)
		return
	}
	vin := s.vehicle(req.VehicleID)

	sample, err := telemetry.Decode(req.CurrentData)
	if err != nil {
		s.logger.Warn("malformed readings defaulted to 0", "vehicle_id", vin, "err", err)
	}

	_, next, err := s.runReading(r.Context(), vin, sample)
	if err != nil {
		http.Error(w, "diagnosis canceled", http.StatusServiceUnavailable)
		s.logger.Error("diagnose failed", "vehicle_id", vin, "err", err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

// runReading runs the engine on a new sample under the vehicle lock and
// publishes the resulting diff. It returns the record before and after.
func (s *Server) runReading(ctx context.Context, vin string, sample domain.Sample) (*domain.State, *domain.State, error) {
	var prev *domain.State
	next, err := s.sessions.Turn(ctx, vin, func(ctx context.Context, p *domain.State) (*domain.State, error) {
		prev = p
		return s.engine.Run(ctx, autonoma.NextReading(p, vin, sample))
	})
	if err != nil {
		return nil, nil, err
	}
	s.publish(prev, next)
	return prev, next, nil
}

func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.internalError(w, "ListRuns", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetRun handles GET /api/runs/{vehicleID}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	vin := chi.URLParam(r, "vehicleID")
	state, err := s.sessions.Load(r.Context(), vin)
	if errors.Is(err, domain.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, "GetRun", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ListSlots handles GET /api/slots?date=YYYY-MM-DD (default: tomorrow).
func (s *Server) ListSlots(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		http.Error(w, "scheduling disabled", http.StatusNotImplemented)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.now().AddDate(0, 0, 1).Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		s.badRequest(w, "ListSlots", err)
		return
	}
	slots, err := s.scheduler.ListSlots(r.Context(), date)
	if err != nil {
		s.internalError(w, "ListSlots", err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// Book handles POST /api/book with the same wire shape as a remote service
// center, so one deployment can schedule against another.
func (s *Server) Book(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		http.Error(w, "scheduling disabled", http.StatusNotImplemented)
		return
	}
	var req scheduling.BookRequest
	if err := decode(w, r, &req); err != nil {
		s.badRequest(w, "Book", err)
		return
	}
	if req.Date == "" || req.Slot == "" {
		s.badRequest(w, "Book", errors.New("date and slot are required"))
		return
	}

	id, err := s.scheduler.Book(r.Context(), req.Date, req.Slot, s.vehicle(req.VehicleID))
	if err != nil || id == domain.BookingFailed {
		s.logger.Warn("booking rejected", "date", req.Date, "slot", req.Slot, "err", err)
		http.Error(w, "slot unavailable", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, scheduling.BookResponse{
		BookingID: id,
		Status:    "Confirmed",
		Message:   "Appointment booked for " + req.Date + " at " + req.Slot + ".",
	})
}

func (s *Server) ListBookings(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		http.Error(w, "scheduling disabled", http.StatusNotImplemented)
		return
	}
	bookings, err := s.scheduler.Bookings(r.Context())
	if err != nil {
		s.internalError(w, "ListBookings", err)
		return
	}
	if bookings == nil {
		bookings = []scheduling.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// GetBooking handles GET /api/booking/{bookingID}.
func (s *Server) GetBooking(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		http.Error(w, "scheduling disabled", http.StatusNotImplemented)
		return
	}
	b, err := s.scheduler.Booking(r.Context(), chi.URLParam(r, "bookingID"))
	if errors.Is(err, scheduling.ErrBookingNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, "GetBooking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListInsights handles GET /api/insights?limit=N.
func (s *Server) ListInsights(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		writeJSON(w, http.StatusOK, []domain.Insight{})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.badRequest(w, "ListInsights", errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	list, err := s.insights.ListInsights(r.Context(), limit)
	if err != nil {
		s.internalError(w, "ListInsights", err)
		return
	}
	if list == nil {
		list = []domain.Insight{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetPolicy handles GET /api/policy.
func (s *Server) GetPolicy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"transitions": s.engine.Policy().Table()})
}

func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) GetInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "autonoma-http",
		"version": strings.TrimSpace(autonoma.Version),
	})
}

// publish broadcasts the diff between two records of the same vehicle.
func (s *Server) publish(prev, next *domain.State) {
	diff := domain.Diff(prev, next)
	if diff == nil {
		return
	}
	bytes, err := json.Marshal(diff)
	if err != nil {
		s.logger.Error("failed to encode diff", "err", err)
		return
	}
	s.streams.Broadcast(next.VehicleID, string(bytes))
}

func (s *Server) vehicle(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.vehicleID
}

func (s *Server) badRequest(w http.ResponseWriter, op string, err error) {
	s.logger.Warn(op+": invalid request", "err", err)
	http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}
