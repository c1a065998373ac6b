package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/screener/internal/api"
	"github.com/Checker-Finance/screener/internal/config"
	"github.com/Checker-Finance/screener/internal/fx"
	"github.com/Checker-Finance/screener/internal/liquidity"
	"github.com/Checker-Finance/screener/internal/pipeline"
	"github.com/Checker-Finance/screener/internal/provider"
	"github.com/Checker-Finance/screener/internal/publisher"
	"github.com/Checker-Finance/screener/internal/rate"
	intsecrets "github.com/Checker-Finance/screener/internal/secrets"
	"github.com/Checker-Finance/screener/internal/snapshot"
	"github.com/Checker-Finance/screener/internal/store"
	"github.com/Checker-Finance/screener/internal/universe"
	"github.com/Checker-Finance/screener/pkg/logger"
	pkgsecrets "github.com/Checker-Finance/screener/pkg/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [screener]...")

	// --- Resolve the provider credential before anything else ---
	var smProvider pkgsecrets.Provider
	if cfg.SecretName != "" {
		p, err := pkgsecrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to init AWS provider", "error", err)
		}
		smProvider = p
	}
	resolver := intsecrets.NewResolver(logger.L(), smProvider, cfg.SecretName, cfg.CacheTTL)
	apiKey, err := resolver.APIKey(ctx, cfg.ProviderAPIKey)
	if err != nil {
		logg.Fatalw("no usable market-data credential", "error", err)
	}

	// --- Load the instrument universe ---
	instruments, err := universe.NewLoader(logger.L()).LoadFile(cfg.UniversePath)
	if err != nil {
		logg.Fatalw("failed to load universe", "path", cfg.UniversePath, "error", err)
	}
	universeName := universe.Name(cfg.UniversePath)

	// --- Optional store (Redis latest + Postgres history) ---
	var st store.Store
	if cfg.RedisAddr != "" {
		st, err = store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{}, logger.L())
		if err != nil {
			logg.Fatalw("failed to init store", "error", err)
		}
		defer st.Close() //nolint:errcheck
	}

	// --- Optional publisher ---
	var pub *publisher.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		defer nc.Drain() //nolint:errcheck

		pub, err = publisher.New(nc, cfg.ServiceName, logger.L())
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
	}

	// --- Assemble the pipeline ---
	client := provider.NewClient(logger.L(), provider.Config{
		BaseURL: cfg.ProviderBaseURL,
		APIKey:  apiKey,
		Timeout: cfg.ProviderTimeout,
	})
	conv := fx.NewConverter(logger.L(), client)
	calc := liquidity.NewCalculator(logger.L(), conv, liquidity.CalculatorConfig{
		SingleDayDiscount: cfg.SingleDayDiscount,
		TimeSeriesWindow:  30,
	})
	credits := rate.NewCreditWindow(rate.CreditConfig{
		Budget: cfg.CreditBudget,
		Window: cfg.CreditWindow,
	})
	orch := pipeline.NewOrchestrator(
		logger.L(), client, credits, conv, calc,
		liquidity.DefaultPolicy(cfg.FallbackADVFloor), 30,
	)

	var sink pipeline.ReportSink
	if st != nil {
		sink = st
	}
	var events pipeline.EventPublisher
	if pub != nil {
		events = pub
	}
	svc := pipeline.NewService(logger.L(), orch, pipeline.Options{
		Universe:           universeName,
		PrefilterBatchSize: cfg.PrefilterBatchSize,
		EnrichBatchSize:    cfg.EnrichBatchSize,
	}, sink, events)

	// --- Run ---
	report, err := svc.Run(ctx, instruments)
	if err != nil {
		if pub != nil {
			failed := publisher.RunFailedFrom(universeName, err)
			if perr := pub.PublishRunFailed(ctx, failed); perr != nil {
				logg.Warnw("failed to publish run.failed", "error", perr)
			}
		}
		logg.Fatalw("screener run failed", "error", err)
	}

	if err := snapshot.NewWriter(logger.L(), cfg.SnapshotDir).Write(universeName, report); err != nil {
		logg.Fatalw("failed to write snapshot", "error", err)
	}

	logg.Infow("screener run finished",
		"run_id", report.RunID,
		"retained", report.RetainedCount,
		"rejected", report.RejectedCount,
		"elapsed_ms", report.ElapsedMS)

	if !cfg.ServeAPI {
		return
	}
	if st == nil {
		logg.Fatalw("SERVE_API requires REDIS_ADDR to be configured")
	}

	// --- Optional read-only HTTP surface ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	})
	api.RegisterRoutes(app, &api.Handler{Logger: logger.L(), Store: st})

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
}
