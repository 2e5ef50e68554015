package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/veto.report/internal/db"
)

// NewMigrateCommand creates the migrate command and its subcommands.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	// withDB opens the database without migrating it.
	withDB := func(run func(cmd *cobra.Command, database *db.DB, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			path, err := rootOpts.dbPath()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid environment", err)
			}
			database, err := db.OpenDB(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer database.Close()
			return run(cmd, database, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			if err := database.MigrateUp(db.MigrationsFS()); err != nil {
				return WrapExitError(ExitFailure, "migrate up", err)
			}
			return printMigrateStatus(cmd, database)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			if err := database.MigrateDown(db.MigrationsFS()); err != nil {
				return WrapExitError(ExitFailure, "migrate down", err)
			}
			return printMigrateStatus(cmd, database)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			return printMigrateStatus(cmd, database)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations (clears dirty state)",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid version", err)
			}
			if err := database.MigrateForce(db.MigrationsFS(), v); err != nil {
				return WrapExitError(ExitFailure, "migrate force", err)
			}
			return printMigrateStatus(cmd, database)
		}),
	})

	return cmd
}

func printMigrateStatus(cmd *cobra.Command, database *db.DB) error {
	fsys := db.MigrationsFS()
	version, dirty, err := database.MigrateVersion(fsys)
	if err != nil {
		return WrapExitError(ExitFailure, "migrate status", err)
	}
	latest, err := db.LatestMigrationVersion(fsys)
	if err != nil {
		return WrapExitError(ExitFailure, "migrate status", err)
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d (%s)\n", version, latest, state)
	return nil
}
