package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/belle-designer/AppointmentSystem/internal/appointment"
	"github.com/belle-designer/AppointmentSystem/internal/booking"
	"github.com/belle-designer/AppointmentSystem/internal/directory"
	"github.com/belle-designer/AppointmentSystem/internal/lifecycle"
)

type RouterConfig struct {
	Service   *appointment.Service
	Directory directory.Directory
	Sessions  booking.SessionStore
	PgPool    *pgxpool.Pool // optional, checked by readiness
	Redis     *redis.Client // optional, checked by readiness
	Logger    *zap.Logger
	Env       string
	Version   string
	// RateLimitPerSecond is applied per client IP; 0 disables it.
	RateLimitPerSecond int
	Now                func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sessions == nil {
		cfg.Sessions = booking.NewMemorySessionStore(30 * time.Minute)
	}

	h := &handlers{
		svc:      cfg.Service,
		dir:      cfg.Directory,
		sessions: cfg.Sessions,
		actions:  lifecycle.NewActions(cfg.Service, cfg.Directory, cfg.Service, cfg.Logger),
		log:      cfg.Logger,
		now:      cfg.Now,
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-Actor-ID", "X-Actor-Role"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitPerSecond, time.Second))
	}
	r.Use(ActorMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/slots", h.listSlots)
	r.Get("/slots/availability", h.slotAvailability)
	r.Get("/specializations", h.listSpecializations)
	r.Get("/doctors", h.listDoctors)

	r.Route("/appointments", func(r chi.Router) {
		r.With(RequireRole(RolePatient)).Post("/", h.createAppointment)
		r.Get("/", h.listAppointments)
		r.Get("/{id}", h.getAppointment)
		r.With(RequireRole(RolePatient)).Post("/{id}/cancel", h.cancelAppointment)
		r.With(RequireRole(RolePatient)).Post("/{id}/reschedule", h.rescheduleAppointment)
	})

	r.Route("/triage", func(r chi.Router) {
		r.Use(RequireRole(RoleDoctor))
		r.Get("/", h.listTriage)
		r.Post("/{id}/confirm", h.confirmAppointment)
		r.Post("/{id}/decline", h.declineAppointment)
	})

	r.Route("/bookings", func(r chi.Router) {
		r.Use(RequireRole(RolePatient))
		r.Post("/", h.startBooking)
		r.Get("/{id}", h.getBooking)
		r.Patch("/{id}", h.updateBooking)
		r.Post("/{id}/next", h.nextBooking)
		r.Post("/{id}/back", h.backBooking)
		r.Get("/{id}/review", h.reviewBooking)
		r.Post("/{id}/submit", h.submitBooking)
	})

	return r
}
