package commands

import (
	"fmt"

	"github.com/jrazmi/habitsync/app/habitsync/app"
	"github.com/jrazmi/habitsync/core/rollover"
	"github.com/spf13/cobra"
)

func (r *runner) scheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Create today's habit tasks from the active templates",
		Args:  cobra.NoArgs,
		RunE:  r.withApp(runSchedule),
	}
}

func runSchedule(cmd *cobra.Command, args []string, a *app.App) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if err := a.Startup(ctx); err != nil {
		return err
	}

	var count int
	for _, t := range a.Tasks.Tasks() {
		if t.IsHabitTask() && t.Relationships.Date == a.Rollover.Today() {
			fmt.Fprintf(out, "%s\t%s\t%s\n", t.Relationships.HabitID, t.Relationships.Date, t.Name)
			count++
		}
	}
	fmt.Fprintf(out, "%d habit tasks for today\n", count)
	return nil
}

func (r *runner) rolloverCommand() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Reset habit completion if the day changed since the last sync",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			state, last, err := a.Rollover.State(ctx)
			if err != nil {
				return err
			}
			if status {
				fmt.Fprintf(out, "%s (last sync %s)\n", state, orNever(last))
				return nil
			}
			if state == rollover.Current {
				fmt.Fprintf(out, "already current (last sync %s)\n", last)
				return nil
			}
			if _, err := a.Rollover.Check(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "rolled over from %s to %s\n", orNever(last), a.Rollover.Today())
			return nil
		}),
	}
	cmd.Flags().BoolVar(&status, "status", false, "only report whether a rollover is due")
	return cmd
}

func orNever(day string) string {
	if day == "" {
		return "never"
	}
	return day
}
