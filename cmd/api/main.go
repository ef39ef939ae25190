package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bankmirror/internal/infrastructure/postgres/listener"
	"bankmirror/internal/interfaces/scheduler"
	"bankmirror/internal/shared/config"
	"bankmirror/internal/shared/logger"
	"bankmirror/internal/shared/telemetry"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Level: "info"})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Application error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
			SampleRatio:  cfg.Telemetry.SampleRatio,
		}, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				log.Error().Err(err).Msg("Telemetry shutdown failed")
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	deps.Pool.Start()
	bg := Background{Pool: deps.Pool}

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.NewScheduler(scheduler.Config{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
			JobProvider:   scheduler.CustomerSyncJobs(deps.Customers, deps.Engine, deps.Alerts, log),
		}, deps.Pool, log)
		if err != nil {
			deps.Pool.Shutdown()
			return err
		}
		sched.Start()
		bg.Scheduler = sched
		log.Info().Strs("times", cfg.Scheduler.ScheduleTimes).Msg("Scheduler started")
	} else {
		log.Info().Msg("Scheduler is disabled")
	}

	bg.Listener = listener.NewSyncListener(cfg.Database.ConnectionString(), func(ctx context.Context, req listener.SyncRequest) {
		job := scheduler.NewCustomerSyncJob(req.Identifier, deps.Engine, deps.Alerts, log)
		if err := deps.Pool.Submit(job); err != nil {
			log.Warn().Err(err).Str("customer", req.Identifier).Str("reason", req.Reason).Msg("Requested sync not queued")
		}
	}, log)
	bg.Listener.Start(ctx)

	srv := StartServer(cfg.Server.Host+":"+cfg.Server.Port, SetupRoutes(deps, cfg, log), log)

	<-ctx.Done()
	GracefulShutdown(srv, bg, cfg.Server.ShutdownTimeout, log)
	return nil
}
