package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-sales/internal/platform/migrate"
)

// MigrationResult reports the outcome of a migrate subcommand.
type MigrationResult struct {
	Direction string   `json:"direction"`
	Steps     int      `json:"steps,omitempty"`
	Files     []string `json:"files,omitempty"`
}

// RenderText prints a one line summary, or the file list for `migrate list`.
func (r MigrationResult) RenderText(w io.Writer) error {
	if r.Direction == "list" {
		for _, f := range r.Files {
			if _, err := fmt.Fprintln(w, f); err != nil {
				return err
			}
		}
		return nil
	}
	if r.Direction == "down" && r.Steps > 0 {
		_, err := fmt.Fprintf(w, "migrated down %d step(s)\n", r.Steps)
		return err
	}
	_, err := fmt.Fprintf(w, "migrated %s\n", r.Direction)
	return err
}

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL sales schema",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (defaults to PG_DSN)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd, dsn, "up", 0)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all of them unless --steps is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd, dsn, "down", steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back")

	list := &cobra.Command{
		Use:   "list",
		Short: "List embedded migration files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			files, err := migrate.Sources()
			if err != nil {
				return formatter.Failure(WrapExitError(ExitFailure, "read migrations", err))
			}
			return formatter.Success(MigrationResult{Direction: "list", Files: files})
		},
	}

	cmd.AddCommand(up, down, list)
	return cmd
}

func runMigrate(opts *RootOptions, cmd *cobra.Command, dsn, direction string, steps int) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if dsn == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return formatter.Failure(err)
		}
		dsn = cfg.PGDSN
	}

	logger := opts.logger(cmd.ErrOrStderr())
	var err error
	if direction == "down" {
		err = migrate.Down(dsn, steps, logger)
	} else {
		err = migrate.Up(dsn, logger)
	}
	if err != nil {
		return formatter.Failure(WrapExitError(ExitFailure, "migrate "+direction, err))
	}
	return formatter.Success(MigrationResult{Direction: direction, Steps: steps})
}
