package cli

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/veto.report/internal/api"
	"github.com/banshee-data/veto.report/internal/db"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run history over HTTP",
		Long: `Serve the recorded runs read-only over HTTP until interrupted.

Endpoints:
  GET /health
  GET /runs?limit=N
  GET /runs/{runID}
  GET /runs/{runID}/rounds[?format=csv]
  GET /runs/{runID}/segments[?format=txt]
  GET /runs/{runID}/chart`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rootOpts.dbPath()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid environment", err)
			}
			database, err := db.NewDB(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer database.Close()

			srv := api.NewServer(db.NewRunStore(database))
			if err := srv.ListenAndServe(cmd.Context(), listen); err != nil {
				return WrapExitError(ExitFailure, "serve", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "listen address")
	return cmd
}
