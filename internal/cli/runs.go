package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/banshee-data/veto.report/internal/api"
	"github.com/banshee-data/veto.report/internal/db"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Limit  int
	Server string
	JSON   bool
}

type runLister interface {
	ListRuns(ctx context.Context, limit int) ([]*db.RunSummary, error)
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded veto runs",
		Long: `List recorded veto runs, newest first, from the local database or from a
remote 'veto serve' instance.

Example:
  veto runs --limit 10
  veto runs --server http://analysis-host:8080 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var lister runLister
			if opts.Server != "" {
				lister = api.NewClient(opts.Server, nil)
			} else {
				path, err := opts.dbPath()
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid environment", err)
				}
				database, err := db.NewDB(path)
				if err != nil {
					return WrapExitError(ExitCommandError, "open database", err)
				}
				defer database.Close()
				lister = db.NewRunStore(database)
			}

			runs, err := lister.ListRuns(cmd.Context(), opts.Limit)
			if err != nil {
				return WrapExitError(ExitFailure, "list runs", err)
			}
			if opts.JSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs to list")
	cmd.Flags().StringVar(&opts.Server, "server", "", "read from a remote veto server instead of the local database")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print JSON")

	return cmd
}

func printRuns(w io.Writer, runs []*db.RunSummary) {
	tw := newTable(w)
	fmt.Fprintln(tw, "RUN\tPRIMARY\tSTATUS\tSTOP\tROUNDS\tEFFICIENCY\tDEADTIME\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f%%\t%.4f%%\t%s\n",
			r.RunID, r.Primary, r.Status, r.StopReason, r.Rounds,
			100*r.Efficiency, 100*r.Deadtime, r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}
