package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrazmi/habitsync/app/habitsync/app"
	"github.com/jrazmi/habitsync/app/habitsync/commands"
	"github.com/jrazmi/habitsync/core/model"
	"github.com/jrazmi/habitsync/sdk/clock"
	"github.com/jrazmi/habitsync/sdk/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templatesYAML = `
templates:
  - name: Morning
    activeDays: [Mon, Tue, Wed, Thu, Fri, Sat, Sun]
    habits:
      - name: Meditate
        metrics: {type: timer, target: 600}
`

type cli struct {
	t    *testing.T
	opts []app.Option
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("HABITSYNC_STORE_BACKEND", "file")
	t.Setenv("HABITSYNC_STORE_DATA_DIR", t.TempDir())
	t.Setenv("HABITSYNC_VERIFY_DELAY", "0s")
	clk := clock.NewFake(time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC))
	return &cli{t: t, opts: []app.Option{app.WithClock(clk)}}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	root := commands.New(logger.NewDiscard(), c.opts...)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "habitsync %s", strings.Join(args, " "))
	return out
}

func (c *cli) tasks(args ...string) []model.Task {
	c.t.Helper()
	var list []model.Task
	out := c.mustRun(append([]string{"tasks", "list", "--json"}, args...)...)
	require.NoError(c.t, json.Unmarshal([]byte(out), &list))
	return list
}

func TestCLI_Workflow(t *testing.T) {
	c := newCLI(t)

	file := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(file, []byte(templatesYAML), 0o644))

	assert.Contains(t, c.mustRun("templates", "import", file), "imported 1 templates")
	listing := c.mustRun("templates", "list")
	assert.Contains(t, listing, "morning")
	assert.Contains(t, listing, "Meditate")

	assert.Contains(t, c.mustRun("rollover", "--status"), "stale (last sync never)")
	assert.Contains(t, c.mustRun("schedule"), "1 habit tasks for today")
	assert.Contains(t, c.mustRun("rollover", "--status"), "current (last sync 2025-03-03)")

	// Scheduling again is idempotent.
	c.mustRun("schedule")
	list := c.tasks()
	require.Len(t, list, 1)
	assert.Equal(t, "meditate", list[0].Relationships.HabitID)
	assert.Equal(t, 600, list[0].Duration)
	assert.Equal(t, model.TaskTypeTimer, list[0].TaskType)

	id := strings.TrimSpace(c.mustRun("tasks", "add", "Water plants", "--duration", "300"))
	require.NotEmpty(t, id)
	assert.Len(t, c.tasks(), 2)

	c.mustRun("tasks", "complete", id)
	completed := c.tasks("--completed")
	require.Len(t, completed, 1)
	assert.Equal(t, "Water plants", completed[0].Name)

	c.mustRun("tasks", "dismiss", "meditate")
	assert.Empty(t, c.tasks())
	c.mustRun("schedule")
	assert.Empty(t, c.tasks(), "dismissed habit must not be recreated")
}

func TestCLI_Errors(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("tasks", "complete", "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = c.run("tasks", "delete", "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = c.run("tasks", "add", "Bad", "--type", "hologram")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = c.run("tasks", "dismiss", "meditate", "not-a-date")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = c.run("templates", "import", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestCLI_TaskTable(t *testing.T) {
	c := newCLI(t)
	c.mustRun("tasks", "add", "Stretch")

	out := c.mustRun("tasks", "list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Stretch")
	assert.Contains(t, lines[1], "regular")
}

func TestCLI_MigrateNeedsPostgres(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("migrate")
	assert.ErrorContains(t, err, "postgres backend")
}
