// Package commands is the habitsync command line.
package commands

import (
	"context"
	"fmt"

	"github.com/jrazmi/habitsync/app/habitsync/app"
	"github.com/jrazmi/habitsync/app/habitsync/config"
	"github.com/jrazmi/habitsync/sdk/logger"
	"github.com/spf13/cobra"
)

type runner struct {
	log        *logger.Logger
	configPath string
	appOpts    []app.Option
}

type appFunc func(cmd *cobra.Command, args []string, a *app.App) error

// withApp builds the application for one command invocation and closes
// it afterwards.
func (r *runner) withApp(fn appFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(r.configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		a, err := app.New(cmd.Context(), cfg, r.log, r.appOpts...)
		if err != nil {
			return fmt.Errorf("starting habitsync: %w", err)
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

// New returns the root command. opts are passed to every app.New call.
func New(log *logger.Logger, opts ...app.Option) *cobra.Command {
	r := &runner{log: log, appOpts: opts}

	root := &cobra.Command{
		Use:   "habitsync",
		Short: "Keep habit templates and the daily task list in sync",
		Long: `habitsync turns active habit templates into one task per habit per day,
resets habit completion at day rollover, and keeps the task lists in the
configured store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&r.configPath, "config", "", "config file (yaml, toml or json) applied over the environment")

	root.AddCommand(
		r.serveCommand(),
		r.scheduleCommand(),
		r.rolloverCommand(),
		r.tasksCommand(),
		r.templatesCommand(),
		r.migrateCommand(),
	)
	return root
}

// Execute runs the command line with the process arguments.
func Execute(ctx context.Context, log *logger.Logger, version string) error {
	root := New(log)
	root.Version = version
	return root.ExecuteContext(ctx)
}
