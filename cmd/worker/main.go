// Package main - точка входа для фоновых процессов (Worker).
//
// Worker отвечает за:
// - периодическую пересборку кэша рейтинга из хранилища;
// - реакции на события прогрессии (повышение уровня, серии дней,
//   новые профили), опубликованные любым экземпляром API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/career-roadmap/roadmap-hub/config"
	"github.com/career-roadmap/roadmap-hub/internal/app"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/scheduler"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/scheduler/jobs"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
	"github.com/career-roadmap/roadmap-hub/pkg/retry"
)

func main() {
	var (
		configFile string
		once       bool
	)
	cmd := &cobra.Command{
		Use:           "roadmap-worker",
		Short:         "Background jobs and event reactions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, once)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "config file (yaml/json/toml)")
	cmd.Flags().BoolVar(&once, "once", false, "run every job once and exit")

	if err := cmd.Execute(); err != nil {
		app.Exit(err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	v := viper.New()
	v.SetConfigFile(path)
	return config.LoadFrom(v)
}

func run(ctx context.Context, cfg *config.Config, once bool) error {
	log := app.NewLogger(cfg).Named("worker")
	log.Info("starting worker",
		logger.String("version", cfg.App.Version),
		logger.Bool("scheduler", cfg.Scheduler.Enabled),
	)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown completed with errors", logger.Err(err))
		}
	}()

	if a.HandlesEvents(app.RoleWorker) {
		if err := a.RegisterEventHandlers(); err != nil {
			return fmt.Errorf("register event handlers: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// JOBS
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:            log,
		Location:          cfg.App.Location,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		Observer:          a.Metrics,
	})

	if a.Leaderboard == nil {
		log.Warn("redis unavailable, leaderboard rebuild disabled")
	} else if cfg.Features.IsEnabled(config.FeatureLeaderboard, "") {
		rebuild := jobs.NewRebuildLeaderboardJob(a.Repo, a.Leaderboard, a.Bus, log, jobs.RebuildLeaderboardConfig{
			Size: cfg.Progression.LeaderboardSize,
			Retrier: retry.JobRetrier(func(err error) bool {
				return !errors.Is(err, context.Canceled) && !shared.IsValidation(err)
			}),
		})
		schedule, err := leaderboardSchedule(cfg.Scheduler)
		if err != nil {
			return err
		}
		if err := sched.Register(rebuild, schedule, scheduler.RunOnStart()); err != nil {
			return err
		}
		log.Info("job registered",
			logger.String("job", rebuild.Name()),
			logger.String("schedule", schedule.String()),
		)
	}

	if once {
		for _, info := range sched.ListJobs() {
			res, err := sched.RunNow(ctx, info.Name)
			if err != nil {
				return err
			}
			if res.Error != nil {
				return fmt.Errorf("%s: %w", res.JobName, res.Error)
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Scheduler.Enabled {
		g.Go(func() error { return sched.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	log.Info("worker is running")
	err = g.Wait()
	log.Info("worker stopped")
	return err
}

// leaderboardSchedule prefers the cron/descriptor expression and falls back
// to the plain interval.
func leaderboardSchedule(cfg config.SchedulerConfig) (scheduler.Schedule, error) {
	if cfg.LeaderboardSchedule != "" {
		s, err := scheduler.ParseSchedule(cfg.LeaderboardSchedule)
		if err != nil {
			return nil, fmt.Errorf("scheduler.leaderboard_schedule: %w", err)
		}
		return s, nil
	}
	interval := cfg.RebuildLeaderboardInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return scheduler.NewIntervalSchedule(interval), nil
}
