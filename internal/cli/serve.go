package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tplearn/tplearn-bot/config"
	"github.com/tplearn/tplearn-bot/internal/application/menu"
	"github.com/tplearn/tplearn-bot/internal/application/planner"
	extdiscord "github.com/tplearn/tplearn-bot/internal/infrastructure/external/discord"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/persistence"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/scheduler"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/scheduler/jobs"
	"github.com/tplearn/tplearn-bot/internal/interface/discord"
	"github.com/tplearn/tplearn-bot/internal/interface/discord/presenter"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and run the homework bot",
		Long: `Connect to the Discord gateway and serve prefixed commands.

Two background jobs run alongside the bot:
- the updater reconciles each guild's channels with its assignments
- the day-change detector marks assignments passed at Thailand midnight`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if err := cfg.ValidateBot(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, setupLogger(cfg))
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before the environment")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("starting tplearn bot",
		"env", cfg.App.Environment,
		"store", cfg.Store.Backend,
		"prefix", cfg.Discord.Prefix,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// Storage
	// ─────────────────────────────────────────────────────────────────────────
	store, err := persistence.Open(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// Discord
	// ─────────────────────────────────────────────────────────────────────────
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}

	thailand := timeutil.Thailand()
	client := extdiscord.NewClient(session, extdiscord.ClientConfig{
		LogChannelID:   cfg.Discord.LogChannelID,
		ImageChannelID: cfg.Discord.ImageChannelID,
		Calendar:       thailand,
		Logger:         log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Application state
	// ─────────────────────────────────────────────────────────────────────────
	plannerCfg := planner.DefaultConfig()
	plannerCfg.MaximumDays = cfg.Planner.MaximumDays
	works := planner.New(store, thailand, log, plannerCfg)
	channels := planner.NewChannels(store, client, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return works.Load(gctx) })
	g.Go(func() error { return channels.Load(gctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	render := presenter.New(thailand, cfg.Discord.Prefix, nil)
	menus := menu.NewManager(works, client, thailand, log, menu.Config{
		Timeout: cfg.Planner.MenuTimeout,
		Prefix:  cfg.Discord.Prefix,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Background jobs
	// ─────────────────────────────────────────────────────────────────────────
	updater := jobs.NewUpdateWorksJob(works, channels, client, render, client, log, jobs.UpdateWorksConfig{
		HistoryLimit: cfg.Scheduler.HistoryLimit,
		OpDelay:      cfg.Scheduler.UpdateOpDelay,
	})
	dayChange := jobs.NewDayChangeJob(works, channels, store, client, render, client,
		timeutil.Morning(), thailand, log)

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{Logger: log})
	sched.OnJobError(func(jobName string, err error) {
		client.Report(context.WithoutCancel(ctx), jobName, fmt.Sprintf("Job failed: %v", err))
	})
	if err := sched.Register(dayChange, scheduler.Every(cfg.Scheduler.DayCheckInterval), scheduler.RunOnStart()); err != nil {
		return fmt.Errorf("failed to register day change job: %w", err)
	}
	if err := sched.Register(updater, scheduler.Every(cfg.Scheduler.UpdateInterval), scheduler.RunOnStart()); err != nil {
		return fmt.Errorf("failed to register update job: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Commands
	// ─────────────────────────────────────────────────────────────────────────
	router := discord.NewRouter(client, channels, client, discord.RouterConfig{
		Prefix:  cfg.Discord.Prefix,
		OwnerID: cfg.Discord.OwnerID,
		Logger:  log,
	})
	discord.NewHandlers(works, channels, menus, render, client, updater, client, discord.HandlersConfig{
		AssignmentLimit: cfg.Planner.AssignmentLimit,
		Logger:          log,
	}).Register(router)

	bot := discord.NewBot(session, router, menus, client, channels, discord.BotConfig{Logger: log})
	if err := bot.Start(ctx); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		_ = bot.Stop()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info("bot is running",
		"guilds", len(works.Guilds()),
		"configured_guilds", len(channels.All()),
		"assignments", works.CountAll(),
	)

	<-ctx.Done()
	log.Info("shutting down")

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	logJobSummary(log, sched, updater.LastStats())
	if err := bot.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("bot: %w", err))
	}
	log.Info("closing menus", "open", menus.Count())
	menus.Shutdown()
	if !works.Save(shutdownCtx) {
		errs = append(errs, errors.New("failed to save assignments"))
	}

	log.Info("shutdown complete")
	return errors.Join(errs...)
}

// logJobSummary records how the background jobs did during this run.
func logJobSummary(log *slog.Logger, sched *scheduler.Scheduler, last *jobs.UpdateStats) {
	for _, info := range sched.ListJobs() {
		log.Info("job summary",
			"job", info.Name,
			"schedule", info.Schedule,
			"runs", info.RunCount,
			"failures", info.FailCount,
		)
	}

	snap := sched.GetMetrics().Snapshot()
	log.Info("scheduler summary",
		"executions", snap.TotalExecutions,
		"failures", snap.TotalFailures,
		"avg_duration", snap.AverageDuration.String(),
	)

	if last != nil {
		log.Info("last update pass",
			"guilds", last.Guilds,
			"failed", last.Failed,
			"deleted", last.Deleted,
			"edited", last.Edited,
			"sent", last.Sent,
			"skipped", last.Skipped,
		)
	}
}
