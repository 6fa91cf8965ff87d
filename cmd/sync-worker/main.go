// The sync worker runs the background loops: calendar reconciliation per
// connected professional, the payment drift sweep, and outbox delivery.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/serenbook/platform/internal/app/bootstrap"
	appconfig "github.com/serenbook/platform/internal/config"
	calendarworker "github.com/serenbook/platform/internal/worker/calendar"
	outboxworker "github.com/serenbook/platform/internal/worker/outbox"
	paymentsworker "github.com/serenbook/platform/internal/worker/payments"
	"github.com/serenbook/platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting serenbook sync worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	run(calendarworker.NewSyncer(app.CalendarAccounts, app.CalendarReconciler, app.Metrics, logger).
		WithInterval(cfg.CalendarPullEvery).Run)
	run(paymentsworker.NewSweeper(app.PaymentReconciler, app.Metrics, logger).
		WithInterval(cfg.ReconcileEvery).Run)
	run(outboxworker.NewDrainer(app.Notifications, logger).
		WithInterval(cfg.OutboxDrainEvery).Run)

	<-ctx.Done()
	logger.Info("shutting down sync worker...")
	wg.Wait()
	logger.Info("sync worker stopped")
}
