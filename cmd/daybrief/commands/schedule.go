package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jholhewres/daybrief/pkg/daybrief/scheduler"
	"github.com/jholhewres/daybrief/pkg/daybrief/store"
)

// newScheduleCmd creates the `daybrief schedule` command group.
func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and manage the notification schedule",
		Long: `The schedule lives in schedule.json inside the data directory and
controls the morning briefing, evening recap, meeting reminders and
urgent email alerts.

Examples:
  daybrief schedule show
  daybrief schedule init`,
	}

	cmd.AddCommand(newScheduleShowCmd(), newScheduleInitCmd())
	return cmd
}

// quietLogger discards logs so command output stays clean.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScheduleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			file := store.NewFile(cfg.SchedulePath())
			sched := scheduler.New(file, nil, nil, nil, nil, nil, quietLogger()).Load()

			out, err := json.MarshalIndent(sched, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			if !file.Exists() {
				fmt.Println()
				fmt.Printf("No schedule file yet (showing defaults). Run 'daybrief schedule init' to create %s.\n", cfg.SchedulePath())
			}
			return nil
		},
	}
}

func newScheduleInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default schedule file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			file := store.NewFile(cfg.SchedulePath())
			if file.Exists() && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", cfg.SchedulePath())
			}

			if err := file.Save(scheduler.Default()); err != nil {
				return fmt.Errorf("writing schedule: %w", err)
			}

			fmt.Printf("Schedule written to %s\n", cfg.SchedulePath())
			fmt.Println("Edit the file, then POST /api/schedule/reload (or restart) to apply changes.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing schedule file")
	return cmd
}
