package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/serenbook/platform/internal/http/handlers"
	httpmiddleware "github.com/serenbook/platform/internal/http/middleware"
	"github.com/serenbook/platform/internal/payments"
	"github.com/serenbook/platform/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes
// unregistered so partial deployments (worker-only, webhook-only) can reuse
// the same wiring.
type Config struct {
	Logger *logging.Logger

	Blocks         *handlers.BlocksHandler
	Slots          *handlers.SlotsHandler
	Reschedule     *handlers.RescheduleHandler
	Calendar       *handlers.CalendarHandler
	Checkout       *handlers.CheckoutHandler
	AdminReconcile *handlers.AdminReconcileHandler
	Health         *handlers.HealthHandler
	StripeWebhook  *payments.StripeWebhookHandler

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// RateLimitPerSecond enables per-IP rate limiting when positive.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates the Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	// Public endpoints: health, metrics, and processor webhooks.
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Check)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.StripeWebhook != nil {
			public.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
		}
	})

	r.Route("/professionals/{professionalID}", func(pr chi.Router) {
		if cfg.Slots != nil {
			pr.Get("/slots", cfg.Slots.List)
		}
		if cfg.Blocks != nil {
			pr.Route("/blocks", func(b chi.Router) {
				b.Get("/", cfg.Blocks.List)
				b.Post("/", cfg.Blocks.Create)
				b.Put("/{blockID}", cfg.Blocks.Update)
				b.Delete("/{blockID}", cfg.Blocks.Delete)
			})
		}
		if cfg.Calendar != nil {
			pr.Post("/calendar/push", cfg.Calendar.Push)
			pr.Post("/calendar/pull", cfg.Calendar.Pull)
		}
	})

	r.Route("/appointments/{appointmentID}", func(ar chi.Router) {
		if cfg.Reschedule != nil {
			ar.Post("/reschedule", cfg.Reschedule.Reschedule)
		}
		if cfg.Checkout != nil {
			ar.Post("/checkout", cfg.Checkout.Start)
		}
	})

	if cfg.AdminReconcile != nil {
		r.Post("/admin/reconcile/payments", cfg.AdminReconcile.Run)
		r.Get("/admin/reconcile/payments/{paymentID}", cfg.AdminReconcile.Payment)
	}

	return r
}
