// Package bootstrap wires configuration into the running application graph.
// Both the API server and the background worker build from here so the two
// processes never drift in how they construct the same services.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/serenbook/platform/internal/api/router"
	"github.com/serenbook/platform/internal/appointments"
	"github.com/serenbook/platform/internal/availability"
	"github.com/serenbook/platform/internal/calendarsync"
	appconfig "github.com/serenbook/platform/internal/config"
	"github.com/serenbook/platform/internal/events"
	"github.com/serenbook/platform/internal/http/handlers"
	"github.com/serenbook/platform/internal/notify"
	"github.com/serenbook/platform/internal/observability/metrics"
	"github.com/serenbook/platform/internal/payments"
	redisclient "github.com/serenbook/platform/internal/redis"
	"github.com/serenbook/platform/internal/scheduling"
	"github.com/serenbook/platform/pkg/logging"
)

// App is the wired service graph.
type App struct {
	Config *appconfig.Config
	Logger *logging.Logger

	DB    *pgxpool.Pool
	Redis *redis.Client

	Metrics *metrics.BookingMetrics

	Blocks             *availability.Store
	Appointments       *appointments.Service
	AppointmentRepo    *appointments.Repository
	Generator          *scheduling.Generator
	Rescheduler        *scheduling.Rescheduler
	CalendarAccounts   *calendarsync.PGAccountRepository
	CalendarReconciler *calendarsync.Reconciler
	Payments           *payments.Service
	PaymentReconciler  *payments.Reconciler
	Outbox             *events.OutboxStore
	Notifications      *notify.Dispatcher

	// Handler is the fully routed HTTP surface.
	Handler http.Handler
}

// Build connects to storage and wires every service. The caller owns the
// returned App and must Close it.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}

	rdb, err := redisclient.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisTLS)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: connect redis: %w", err)
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)

	outbox := events.NewOutboxStore(pool)
	processed := events.NewProcessedStore(pool)

	blockStore := availability.NewStore(availability.NewRepository(pool), cfg.BlockCacheTTL, logger)
	apptRepo := appointments.NewRepository(pool)
	apptService := appointments.NewService(apptRepo, logger)

	generator := scheduling.NewGenerator(blockStore, apptRepo, scheduling.WorkingHours{
		Start: cfg.WorkingDayStart,
		End:   cfg.WorkingDayEnd,
	}, cfg.SlotGranularity)
	locker := redisclient.NewProfessionalLocker(rdb, cfg.BookingLockTTL)
	rescheduler := scheduling.NewRescheduler(apptRepo, generator, locker, outbox, cfg.RescheduleCutoff, logger)

	accounts := calendarsync.NewPGAccountRepository(pool)
	oauthService := calendarsync.NewOAuthService(cfg.GoogleClientID, cfg.GoogleClientSecret, accounts)
	google := calendarsync.NewGoogleClient(oauthService, logger)
	if cfg.GoogleCalendarURL != "" {
		google = google.WithBaseURL(cfg.GoogleCalendarURL)
	}
	calReconciler := calendarsync.NewReconciler(
		apptRepo, blockStore, calendarsync.NewLinkRepository(pool), google, cfg.CalendarSyncWindow, logger)

	paymentRepo := payments.NewRepository(pool)
	stripe := payments.NewStripeClient(
		cfg.StripeSecretKey,
		cfg.PublicBaseURL+"/booking/success?session_id={CHECKOUT_SESSION_ID}",
		cfg.PublicBaseURL+"/booking/cancelled",
		logger)
	if cfg.StripeBaseURL != "" {
		stripe = stripe.WithBaseURL(cfg.StripeBaseURL)
	}
	paymentService := payments.NewService(paymentRepo, stripe, apptService, apptRepo, outbox, logger)
	paymentReconciler := payments.NewReconciler(paymentRepo, stripe, paymentService, outbox, cfg.ReconcileGrace, logger)
	stripeWebhook := payments.NewStripeWebhookHandler(cfg.StripeWebhookSecret, paymentRepo, paymentService, processed, logger)

	var sender notify.EmailSender = notify.NewStubEmailSender(logger)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	}
	dispatcher := notify.NewDispatcher(outbox, notify.NewService(sender, notify.NewPGDirectory(pool), logger), logger)

	handler := router.New(&router.Config{
		Logger:             logger,
		Blocks:             handlers.NewBlocksHandler(blockStore, bookingMetrics, logger),
		Slots:              handlers.NewSlotsHandler(generator, bookingMetrics, logger),
		Reschedule:         handlers.NewRescheduleHandler(rescheduler, bookingMetrics, logger),
		Calendar:           handlers.NewCalendarHandler(calReconciler, bookingMetrics, logger),
		Checkout:           handlers.NewCheckoutHandler(apptRepo, paymentService, logger),
		AdminReconcile:     handlers.NewAdminReconcileHandler(paymentReconciler, bookingMetrics, logger),
		Health:             handlers.NewHealthHandler(pgPinger{pool}, redisPinger{rdb}),
		StripeWebhook:      stripeWebhook,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return &App{
		Config:             cfg,
		Logger:             logger,
		DB:                 pool,
		Redis:              rdb,
		Metrics:            bookingMetrics,
		Blocks:             blockStore,
		Appointments:       apptService,
		AppointmentRepo:    apptRepo,
		Generator:          generator,
		Rescheduler:        rescheduler,
		CalendarAccounts:   accounts,
		CalendarReconciler: calReconciler,
		Payments:           paymentService,
		PaymentReconciler:  paymentReconciler,
		Outbox:             outbox,
		Notifications:      dispatcher,
		Handler:            handler,
	}, nil
}

// Close releases the storage connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

type pgPinger struct{ pool *pgxpool.Pool }

func (p pgPinger) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }
