package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jrazmi/habitsync/app/habitsync/app"
	"github.com/jrazmi/habitsync/core/habits"
	"github.com/spf13/cobra"
)

func (r *runner) templatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage habit templates",
	}
	cmd.AddCommand(r.templatesImportCommand(), r.templatesListCommand())
	return cmd
}

func (r *runner) templatesImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Merge templates from a YAML file into the store",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			incoming, err := habits.ParseTemplatesYAML(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			n, err := a.Habits.ImportTemplates(cmd.Context(), incoming)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d templates\n", n)
			return nil
		}),
	}
}

func (r *runner) templatesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored templates",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TEMPLATE\tDAYS\tHABITS")
			for _, t := range a.Habits.Templates(cmd.Context()) {
				names := make([]string, 0, len(t.Habits))
				for _, h := range t.Habits {
					names = append(names, h.Name)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.TemplateID, strings.Join(t.ActiveDays, ","), strings.Join(names, ", "))
			}
			return w.Flush()
		}),
	}
}
