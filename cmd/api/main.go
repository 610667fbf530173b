// Package main - точка входа HTTP API прогрессии: XP, уровни, серии дней
// и рейтинг.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/career-roadmap/roadmap-hub/config"
	"github.com/career-roadmap/roadmap-hub/internal/app"
	"github.com/career-roadmap/roadmap-hub/internal/application/command"
	"github.com/career-roadmap/roadmap-hub/internal/application/query"
	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/auth"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/persistence/postgres"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/career-roadmap/roadmap-hub/internal/interface/http"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
)

var configFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		app.Exit(err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "roadmap-api",
		Short:         "Progression API: XP, levels, daily streaks and leaderboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml/json/toml); environment overrides it")
	root.AddCommand(serveCmd(), migrateCmd(), levelsCmd(), tokenCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Load()
	}
	v := viper.New()
	v.SetConfigFile(configFile)
	return config.LoadFrom(v)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVE
// ══════════════════════════════════════════════════════════════════════════════

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := app.NewLogger(cfg)
	log.Info("starting progression api",
		logger.String("version", cfg.App.Version),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("timezone", cfg.App.Location.String()),
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

	if a.HandlesEvents(app.RoleAPI) {
		if err := a.RegisterEventHandlers(); err != nil {
			return fmt.Errorf("register event handlers: %w", err)
		}
	}

	cmdDeps := a.CommandDeps()
	qDeps := a.QueryDeps()
	deps := httpserver.Dependencies{
		Progress:       query.NewGetProgressHandler(qDeps),
		AwardXP:        command.NewAwardXPHandler(cmdDeps),
		Activity:       command.NewRecordActivityHandler(cmdDeps, cfg.App.Location),
		Profiles:       command.NewEnsureProfileHandler(cmdDeps),
		Leaderboard:    query.NewGetLeaderboardHandler(qDeps),
		Curve:          a.Curve,
		Verifier:       auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience, cfg.Auth.Issuer),
		Health:         a.Health,
		Metrics:        a.Metrics,
		MetricsHandler: a.Metrics.Handler(),
		Logger:         log,
	}
	if a.Cache != nil && cfg.HTTP.RateLimitRPS > 0 {
		// Shared across instances: the per-second rate becomes a per-minute budget.
		perMinute := int(cfg.HTTP.RateLimitRPS*60) + cfg.HTTP.RateLimitBurst
		deps.Limiter = redis.NewRateLimiter(a.Cache, perMinute, time.Minute)
	}
	srv := httpserver.NewServer(httpserver.ConfigFrom(cfg), deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	log.Info("progression api is running", logger.String("addr", cfg.HTTP.Addr()))
	err = g.Wait()
	log.Info("progression api stopped")
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATE
// ══════════════════════════════════════════════════════════════════════════════

func migrateCmd() *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back one) PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.StoragePostgres {
				return fmt.Errorf("migrate: storage driver %q applies its schema on open", cfg.Storage.Driver)
			}
			log := app.NewLogger(cfg)
			defer func() { _ = log.Sync() }()

			conn, err := postgres.NewConnection(cmd.Context(), postgres.DefaultConfig(cfg.Database.URL), log)
			if err != nil {
				return err
			}
			defer conn.Close()

			m := postgres.NewMigrator(conn)
			if rollback {
				return m.Rollback(cmd.Context())
			}
			n, err := m.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			status, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
			for _, s := range status {
				fmt.Fprintf(w, "%d\t%s\t%v\n", s.Version, s.Name, s.IsApplied)
			}
			fmt.Fprintf(w, "\n%d migration(s) applied\n", n)
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the latest migration")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVELS & TOKEN
// ══════════════════════════════════════════════════════════════════════════════

func levelsCmd() *cobra.Command {
	var maxLevel int
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the XP threshold of each level",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			curve, err := progression.NewCurve(cfg.Progression.LevelBase, cfg.Progression.LevelScaling)
			if err != nil {
				return err
			}
			table, err := query.LevelTable(curve, query.LevelTableQuery{MaxLevel: maxLevel})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "LEVEL\tXP\tSTEP\t")
			for _, t := range table {
				fmt.Fprintf(w, "%d\t%d\t%d\t\n", t.Level, t.XPRequired, t.StepCost)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&maxLevel, "max", query.DefaultLevelTableSize, "highest level to print")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a development access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("token: refusing to issue tokens in production")
			}
			v := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience, cfg.Auth.Issuer)
			tok, err := v.Issue(args[0], email, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
