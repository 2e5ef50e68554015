// Package cli implements the veto command line: run an analysis, import
// trigger lists, inspect and serve run history, and manage the schema.
package cli

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/banshee-data/veto.report/internal/config"
	"github.com/banshee-data/veto.report/internal/monitoring"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath string
	Quiet  bool
}

// dbPath resolves the database path: --db, then VETO_DB_PATH, then the
// default.
func (o *RootOptions) dbPath() (string, error) {
	if o.DBPath != "" {
		return o.DBPath, nil
	}
	cfg := config.Empty()
	if err := cfg.ApplyEnv(); err != nil {
		return "", err
	}
	return cfg.GetDBPath(), nil
}

// NewRootCommand creates the root command for the veto CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "veto",
		Short: "Hierarchical round-robin veto analysis",
		Long: `veto ranks auxiliary channels by how significantly their triggers
coincide with a primary channel, vetoes the winner's coincident time, and
repeats on what is left until nothing significant remains.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Quiet {
				monitoring.SetLogger(nil)
				return nil
			}
			logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
			monitoring.SetLogger(logger.Printf)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (default $VETO_DB_PATH or "+config.DefaultDBPath+")")
	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress diagnostic logging")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
