package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrazmi/habitsync/app/habitsync/app"
	"github.com/jrazmi/habitsync/core/syncjobs"
	"github.com/jrazmi/habitsync/infrastructure/workers"
	"github.com/jrazmi/habitsync/sdk/logger"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func (r *runner) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic sync jobs and the midnight rollover until interrupted",
		Args:  cobra.NoArgs,
		RunE:  r.withApp(runServe),
	}
}

func runServe(cmd *cobra.Command, args []string, a *app.App) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Startup(ctx); err != nil {
		return err
	}

	jobs := a.Config.Jobs
	pool := workers.New[syncjobs.Job](a.Jobs, jobs.Pool,
		workers.WithLogger(a.Log),
		workers.WithMetrics(workers.NewInMemoryMetrics(a.Log)),
		workers.WithMiddleware(workers.ConsecutiveErrorShutdown(jobs.MaxFailures)),
	)
	pool.AddPostProcessHooks(workers.LogOutcomeHook[syncjobs.Job](a.Log))

	c := cron.New(cron.WithLogger(cron.PrintfLogger(logger.NewStdLogger(a.Log, slog.LevelInfo))))
	if jobs.RolloverCron != "" {
		_, err := c.AddFunc(jobs.RolloverCron, func() {
			if _, err := a.Rollover.Check(ctx); err != nil {
				a.Log.ErrorContext(ctx, "scheduled rollover failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling rollover: %w", err)
		}
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	a.Log.InfoContext(ctx, "startup", "status", "sync jobs started",
		"backend", a.Config.Store.Backend,
		"rollover_cron", jobs.RolloverCron)

	err := pool.Start(ctx)
	a.Log.InfoContext(ctx, "shutdown", "status", "sync jobs stopped", "metrics", pool.Metrics())
	return err
}
