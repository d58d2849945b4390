package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentix/clinic-scheduling/internal/config"
	"github.com/dentix/clinic-scheduling/internal/db"
	"github.com/dentix/clinic-scheduling/internal/schedule"
)

// The sweeper rejects PENDING booking requests whose start time has already
// passed: nobody can confirm an appointment that was never actioned in time.
// REJECTED is terminal and the record is kept for history.
func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("config load error")
	}

	log := zerolog.New(os.Stdout).With().Timestamp().Str("component", "sweeper").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.SweepInterval).Msg("sweeper starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	repo := schedule.NewPgRepository(pgPool)
	grid := schedule.GridConfig{
		OpenHour:  cfg.ClinicOpenHour,
		CloseHour: cfg.ClinicCloseHour,
		Step:      cfg.SlotStep,
		Buffer:    cfg.SlotBuffer,
	}
	svc := schedule.NewService(repo, nil, grid, log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *schedule.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.SweepStalePending(runCtx); err != nil {
		log.Error().Err(err).Msg("sweep run error")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("sweep run complete")
}
