package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/jrazmi/habitsync/app/habitsync/app"
	"github.com/jrazmi/habitsync/core/model"
	"github.com/jrazmi/habitsync/sdk/validation"
	"github.com/spf13/cobra"
)

func (r *runner) tasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and change the task lists",
	}
	cmd.AddCommand(
		r.tasksListCommand(),
		r.tasksAddCommand(),
		r.tasksCompleteCommand(),
		r.tasksDeleteCommand(),
		r.tasksDismissCommand(),
	)
	return cmd
}

func (r *runner) tasksListCommand() *cobra.Command {
	var completed, asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active tasks, or completed ones with --completed",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			list := a.Tasks.Tasks()
			if completed {
				list = a.Tasks.CompletedTasks()
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			return printTasks(cmd, list)
		}),
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "list completed tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tasks as JSON")
	return cmd
}

func printTasks(cmd *cobra.Command, list []model.Task) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tHABIT\tDATE\tDONE")
	for _, t := range list {
		habit, date := "-", "-"
		if t.IsHabitTask() {
			habit, date = t.Relationships.HabitID, t.Relationships.Date
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", t.ID, t.Name, t.TaskType, habit, date, t.Completed)
	}
	return w.Flush()
}

func (r *runner) tasksAddCommand() *cobra.Command {
	var (
		taskType string
		duration int
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			t, err := a.Tasks.CreateTask(cmd.Context(), model.Task{
				Name:     args[0],
				TaskType: model.TaskType(taskType),
				Duration: duration,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&taskType, "type", string(model.TaskTypeRegular), "task type")
	cmd.Flags().IntVar(&duration, "duration", 0, "duration in seconds")
	return cmd
}

func (r *runner) tasksCompleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "complete ID",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			if _, ok := a.Tasks.CompleteTask(cmd.Context(), args[0], nil); !ok {
				return fmt.Errorf("task %s: %w", args[0], model.ErrNotFound)
			}
			return nil
		}),
	}
}

func (r *runner) tasksDeleteCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			if !a.Tasks.DeleteTask(cmd.Context(), args[0], reason) {
				return fmt.Errorf("task %s: %w", args[0], model.ErrNotFound)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&reason, "reason", "deleted from command line", "reason recorded with the deletion")
	return cmd
}

func (r *runner) tasksDismissCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss HABIT_ID [DATE]",
		Short: "Skip a habit for a day (today by default)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			date := validation.DayOf(a.Clock.Now())
			if len(args) == 2 {
				date = args[1]
			}
			return a.Tasks.DismissTask(cmd.Context(), args[0], date)
		}),
	}
}
